// Package verify runs structural checks against extracted BLAST databases
// once the download pipeline has drained.
//
// The default Checker shells out to NCBI's blastdbcheck:
//
//	if err := verify.RequireTools(nil, "blastdbcheck"); err != nil {
//	    return err // *verify.MissingToolError
//	}
//
//	checker := verify.NewBlastDBCheck("blastdbcheck", 10)
//	report := verify.Validate(ctx, "/data/blastdb", []string{"nr", "taxdb"}, "taxdb", checker, logger)
//	if err := report.Err(); err != nil {
//	    fmt.Println(err) // one line per database that failed
//	}
//
// A failing database never stops the remaining checks.
package verify
