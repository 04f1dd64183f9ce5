// Package ioutils provides file system utilities.
//
// # File Operations
//
//	// Copy a file
//	err := ioutils.CopyFile("/src/nr.00.tar.gz", "/dst/nr.00.tar.gz")
//
//	// Move a file, across devices if needed
//	err := ioutils.MoveFile("/tmp/x/nr.00.tar.gz", "/data/nr.00.tar.gz")
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/path/to/new/directory")
//
// # Scratch Directories
//
// Downloads and extractions work in private scratch directories that are
// removed on every exit path:
//
//	tmp, err := ioutils.ScratchDir(outputDir, ".extract-*")
//	if err != nil {
//	    return err
//	}
//	defer ioutils.RemoveDir(tmp)
//
// # Archives
//
// ExtractTarGz unpacks a .tar.gz, and MoveNoClobber places the results
// without overwriting files that are already there:
//
//	if err := ioutils.ExtractTarGz(archive, tmp); err != nil {
//	    return err
//	}
//	moved, skipped, err := ioutils.MoveNoClobber(tmp, outputDir)
package ioutils
