// Package ftp provides an FTP client configured for the NCBI BLAST
// database mirror.
//
// The Client in this package handles:
//   - Anonymous login
//   - Directory listing (NLST)
//   - Binary file retrieval with progress tracking
//   - A bounded socket timeout on every read and write
//
// # Basic Usage
//
//	client := ftp.NewClient(ftp.Options{
//	    Address:  "ftp.ncbi.nlm.nih.gov:21",
//	    User:     "anonymous",
//	    Password: "password",
//	    Timeout:  10 * time.Second,
//	}, logger)
//
//	names, err := client.List(ctx, "blast/db")
//
// # Errors
//
// Errors returned by List and Fetch wrap one of two sentinels so callers
// can branch with errors.Is instead of inspecting messages:
//
//	switch {
//	case errors.Is(err, ftp.ErrNotFound):
//	    // empty or missing directory, or 550 from the server
//	case errors.Is(err, ftp.ErrConnection):
//	    // unreachable server or timeout
//	}
package ftp
