// Package http provides an HTTPS transport for the BLAST database mirror.
//
// NCBI publishes the same blast/db directory over FTP and HTTPS. This
// Client implements the same List and Fetch methods as the FTP client, so
// either can drive a run.
//
// # Basic Usage
//
//	client := http.NewClient(http.Options{
//	    BaseURL: "https://ftp.ncbi.nlm.nih.gov",
//	    Timeout: 10 * time.Second,
//	}, logger)
//
//	// List the directory index
//	names, err := client.List(ctx, "blast/db")
//
//	// Stream a file with a progress callback
//	client.Fetch(ctx, "blast/db/nr.00.tar.gz", file, func(written int64) {
//	    fmt.Printf("%d bytes\n", written)
//	})
//
// # Timeouts
//
// Options.Timeout bounds connecting and waiting for headers, and aborts a
// body that stalls for that long. Large transfers that keep moving are
// never cut off.
package http
