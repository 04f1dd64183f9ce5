// Package app drives one blastdbget run from remote listing to
// post-validation.
//
// # Flow
//
//  1. Check that the validation tool is installed
//  2. List the remote directory
//  3. Select the archives of the requested databases (plus taxdb)
//  4. Prepare the output directory
//  5. Download, validate and extract every archive with a worker pool
//  6. Run the structural check on each database
//  7. Re-point the latest link when writing into dated directories
//
// # Errors
//
// Run never exits the process. Precondition failures come back as typed
// errors so the caller can choose an exit status:
//
//	res, err := app.NewRunner(settings, logger).Run(ctx, []string{"nr"}, nil)
//	var none *app.NoDatabasesError
//	switch {
//	case errors.As(err, &none):
//	    fmt.Println(strings.Join(none.Available, "\n"))
//	case errors.Is(err, app.ErrNoMatches):
//	    // nothing published under those names
//	}
package app
