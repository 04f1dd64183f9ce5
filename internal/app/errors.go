package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brwnj/blastdbget/internal/model"
	"github.com/brwnj/blastdbget/internal/verify"
)

var (
	// ErrNoMatches is returned when none of the requested databases has an
	// archive in the remote listing.
	ErrNoMatches = errors.New("no remote files match the requested databases")

	// ErrInvalidSettings wraps a settings validation failure.
	ErrInvalidSettings = errors.New("invalid settings")
)

// NoDatabasesError is returned when no database was requested. Available
// lists what the server offers, sorted.
type NoDatabasesError struct {
	Available []string
}

func (e *NoDatabasesError) Error() string {
	return fmt.Sprintf("no databases selected (%d available)", len(e.Available))
}

// ListingError is returned when the remote directory cannot be listed.
type ListingError struct {
	Dir string
	Err error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("list remote directory %s: %v", e.Dir, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when at least one database fails the
// structural check.
type ValidationError struct {
	Report verify.Report
}

func (e *ValidationError) Error() string {
	return "post-validation failed for " + strings.Join(e.Report.Failed(), ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.Report.Err()
}

// DownloadError is returned when archives exhausted their retries but every
// checked database still validated.
type DownloadError struct {
	Failed []*model.WorkItem
}

func (e *DownloadError) Error() string {
	names := make([]string, len(e.Failed))
	for i, item := range e.Failed {
		names[i] = item.FileName
	}
	return fmt.Sprintf("%d archive(s) failed: %s", len(e.Failed), strings.Join(names, ", "))
}
