// Package config provides configuration management for blastdbget.
//
// This package handles:
//   - Default configuration values
//   - Loading settings from YAML or JSON files with environment overrides
//   - Saving settings as YAML
//   - Deriving the download set from the requested databases
//
// # Default Settings
//
// Use DefaultSettings() to get the NCBI defaults:
//
//	settings := config.DefaultSettings()
//	// ftp.ncbi.nlm.nih.gov:21, directory blast/db
//	// 8 workers, 2 retries per archive, 10s socket timeout
//
// # Loading from File
//
//	settings, err := config.Load("/etc/blastdbget.yaml")
//	if err != nil {
//	    // the file exists but could not be parsed
//	}
//
// Every key can be overridden from the environment with the BLASTDBGET_
// prefix, e.g. BLASTDBGET_WORKERS=4 or BLASTDBGET_TIMEOUT=30s.
//
// # Taxonomy Database
//
// The taxonomy database (taxdb by default) is appended to any non-empty
// request by Databases so that BLAST output can carry taxonomy names. It is
// downloaded but never structurally checked.
package config
