// Package model defines the core data structures used throughout
// blastdbget.
//
// # WorkItem
//
// WorkItem describes one archive and its checksum companion, with both the
// remote sources and the local destinations computed up front:
//
//	loc := model.Location{
//	    Server:    "ftp.ncbi.nlm.nih.gov:21",
//	    RemoteDir: "blast/db",
//	    OutputDir: "/data/blastdb",
//	}
//	item := model.NewWorkItem("nr.00.tar.gz", loc)
//	fmt.Println(item.ArchiveURL)    // ftp://ftp.ncbi.nlm.nih.gov:21/blast/db/nr.00.tar.gz
//	fmt.Println(item.LocalChecksum) // /data/blastdb/nr.00.tar.gz.md5
//
// A WorkItem is owned by one worker at a time. Its Attempts counter is the
// only field that changes after construction.
package model
