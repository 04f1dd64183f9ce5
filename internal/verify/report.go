package verify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
)

// Result is the check outcome for one database.
type Result struct {
	Database string
	Path     string
	Err      error
}

// OK reports whether the check passed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Report holds one Result per checked database, in check order.
type Report struct {
	Results []Result
}

// Passed maps each database path to whether it validated.
func (r Report) Passed() map[string]bool {
	out := make(map[string]bool, len(r.Results))
	for _, res := range r.Results {
		out[res.Path] = res.OK()
	}
	return out
}

// OK reports whether every database validated. An empty report is OK.
func (r Report) OK() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return false
		}
	}
	return true
}

// Failed returns the names of the databases that did not validate.
func (r Report) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res.Database)
		}
	}
	return out
}

// Err aggregates every failure, or returns nil.
func (r Report) Err() error {
	var errs *multierror.Error
	for _, res := range r.Results {
		if !res.OK() {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", res.Database, res.Err))
		}
	}
	return errs.ErrorOrNil()
}

// Validate checks each database in names under dir, skipping the taxonomy
// database, which has no sequences to check. Duplicate names are checked
// once. Every database is checked even after a failure.
func Validate(ctx context.Context, dir string, names []string, taxonomy string, checker Checker, logger *slog.Logger) Report {
	if logger == nil {
		logger = slog.Default()
	}

	var report Report
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, name := range names {
		if name == "" || name == taxonomy || !seen.Add(name) {
			continue
		}

		path := filepath.Join(dir, name)
		dbLog := logger.With(slog.String("database", name), slog.String("path", path))
		dbLog.Info("Validating database")

		err := checker.Check(ctx, path)
		if err != nil {
			dbLog.Error("Database did not validate", slog.Any("error", err))
		} else {
			dbLog.Info("Database validated")
		}
		report.Results = append(report.Results, Result{Database: name, Path: path, Err: err})
	}
	return report
}
