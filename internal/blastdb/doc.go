// Package blastdb knows the layout of the NCBI BLAST database directory.
//
// The remote directory is flat and holds pairs of files:
//
//	nr.00.tar.gz
//	nr.00.tar.gz.md5
//	nr.01.tar.gz
//	nr.01.tar.gz.md5
//	taxdb.tar.gz
//	taxdb.tar.gz.md5
//
// The logical database name is the file name up to the first dot.
//
// # Selecting Files
//
//	files := []string{"nr.00.tar.gz", "nr.00.tar.gz.md5", "nt.00.tar.gz"}
//	selected := blastdb.FilterFiles(files, []string{"nr"})
//	archives := blastdb.Archives(selected, ".tar.gz")
//	// archives == []string{"nr.00.tar.gz"}
//
// # Listing Databases
//
//	blastdb.AvailableDatabases(files) // []string{"nr", "nt"}
//
// # Checksums
//
// Each archive is published with an MD5 companion whose first token is the
// hex digest. Validate recomputes the digest and compares:
//
//	if err := blastdb.Validate(archive, archive+".md5", blastdb.DefaultBlockSize); err != nil {
//	    var mismatch *blastdb.MismatchError
//	    if errors.As(err, &mismatch) {
//	        // re-download
//	    }
//	}
package blastdb
