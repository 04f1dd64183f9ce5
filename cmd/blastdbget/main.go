// Command blastdbget downloads, verifies and extracts BLAST databases from
// the NCBI FTP server.
//
// Usage:
//
//	blastdbget [output] -d nr -d nt [-t 8]
//
// Without -d it prints the databases available on the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/brwnj/blastdbget/internal/app"
	"github.com/brwnj/blastdbget/internal/verify"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitListing     = 3
	exitNoMatches   = 4
	exitMissingTool = 5
	exitValidation  = 6
	exitDownload    = 7
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// After the first signal, restore default handling so a second one
	// kills the process while transfers wind down.
	context.AfterFunc(ctx, stop)

	c := newCLI(stdout, stderr)
	defer c.close()

	cmd := c.rootCommand()
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var none *app.NoDatabasesError
	if !errors.As(err, &none) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(ctx, err)
}

// usageError marks bad command-line input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func exitCode(ctx context.Context, err error) int {
	var (
		usage   *usageError
		none    *app.NoDatabasesError
		listing *app.ListingError
		missing *verify.MissingToolError
		invalid *app.ValidationError
		failed  *app.DownloadError
	)

	switch {
	case err == nil:
		return exitOK
	case ctx.Err() != nil:
		return exitInterrupted
	case errors.As(err, &usage), errors.As(err, &none), errors.Is(err, app.ErrInvalidSettings):
		return exitUsage
	case errors.As(err, &listing):
		return exitListing
	case errors.Is(err, app.ErrNoMatches):
		return exitNoMatches
	case errors.As(err, &missing):
		return exitMissingTool
	case errors.As(err, &invalid):
		return exitValidation
	case errors.As(err, &failed):
		return exitDownload
	}
	return exitError
}
