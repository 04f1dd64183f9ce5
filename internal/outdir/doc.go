// Package outdir prepares the directory a run writes into.
//
// Without dating, the output directory is used as given. With dating, each
// run writes to a YYYY-MM-DD subdirectory and a "latest" symlink next to the
// subdirectories points at the newest one:
//
//	/data/blastdb/
//	    2026-10-12/
//	    2026-10-19/
//	    latest -> 2026-10-19
package outdir
