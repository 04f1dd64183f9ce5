package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/brwnj/blastdbget/internal/blastdb"
	"github.com/brwnj/blastdbget/internal/config"
	"github.com/brwnj/blastdbget/internal/download"
	"github.com/brwnj/blastdbget/internal/ftp"
	"github.com/brwnj/blastdbget/internal/http"
	"github.com/brwnj/blastdbget/internal/model"
	"github.com/brwnj/blastdbget/internal/outdir"
	"github.com/brwnj/blastdbget/internal/verify"
)

// Lister returns the file names in a remote directory. Both transport clients
// satisfy it.
type Lister interface {
	List(ctx context.Context, dir string) ([]string, error)
}

// Result describes a finished run.
type Result struct {
	RunID string

	// OutputDir is where archives were extracted.
	OutputDir string

	// Databases is the download set: the requested names plus taxdb.
	Databases []string

	// Archives are the matched remote archive names, in listing order.
	Archives []string

	Summary *download.Summary
	Report  verify.Report
}

// Runner holds the collaborators of a run. NewRunner wires the real ones;
// tests swap them out.
type Runner struct {
	Settings *config.Settings
	Logger   *slog.Logger

	Lister   Lister
	Fetcher  download.Fetcher
	Checker  verify.Checker
	LookPath func(string) (string, error)
	Now      func() time.Time

	manager atomic.Pointer[download.Manager]
}

// NewRunner creates a Runner talking to the server in settings over FTP or
// HTTPS, as settings.Protocol selects.
func NewRunner(settings *config.Settings, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		Settings: settings,
		Logger:   logger,
		Checker:  verify.NewBlastDBCheck(settings.CheckTool, settings.CheckRandom),
		LookPath: exec.LookPath,
		Now:      time.Now,
	}

	switch settings.Protocol {
	case config.ProtocolHTTPS:
		client := http.NewClient(http.Options{BaseURL: settings.BaseURL(), Timeout: settings.Timeout}, logger)
		r.Lister, r.Fetcher = client, client
	default:
		client := ftp.NewClient(ftp.Options{
			Address:  settings.Address(),
			User:     settings.User,
			Password: settings.Password,
			Timeout:  settings.Timeout,
		}, logger)
		r.Lister, r.Fetcher = client, client
	}
	return r
}

// Progress reports how many archives have finished (successfully or not)
// out of the total. It is zero until downloading starts.
func (r *Runner) Progress() (finished, failed, total int32) {
	m := r.manager.Load()
	if m == nil {
		return 0, 0, 0
	}
	_, finished, failed, total = m.GetProgress()
	return finished, failed, total
}

// Run fetches, verifies and extracts the requested databases.
//
// The returned Result is non-nil once the pipeline has run, even when the
// error reports failed archives or databases.
func (r *Runner) Run(ctx context.Context, databases []string, onProgress func(download.ProgressEvent)) (*Result, error) {
	s := r.Settings
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	res := &Result{RunID: uuid.NewString()}
	logger := r.Logger.With(slog.String("run_id", res.RunID))
	progress := func(msg string, level download.ProgressLevel) {
		if onProgress != nil {
			onProgress(download.ProgressEvent{Message: msg, Level: level})
		}
	}

	if !s.SkipCheck {
		if err := verify.RequireTools(r.LookPath, s.CheckTool); err != nil {
			return nil, err
		}
	}

	logger.Info("Communicating with BLAST server",
		slog.String("protocol", s.Protocol), slog.String("server", s.Server()), slog.String("dir", s.RemoteDir))
	progress("Communicating with BLAST server", download.LevelInfo)

	files, err := r.Lister.List(ctx, s.RemoteDir)
	if err != nil {
		return nil, &ListingError{Dir: s.RemoteDir, Err: err}
	}

	requested := normalize(databases)
	if len(requested) == 0 {
		return nil, &NoDatabasesError{Available: blastdb.AvailableDatabases(files)}
	}

	own := blastdb.Archives(blastdb.FilterFiles(files, requested), s.ArchiveSuffix)
	if len(own) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, strings.Join(requested, ", "))
	}
	for _, name := range blastdb.Unmatched(blastdb.Archives(files, s.ArchiveSuffix), requested) {
		logger.Warn("No archives published for database", slog.String("database", name))
		progress(fmt.Sprintf("No archives found for %s", name), download.LevelWarning)
	}

	res.Databases = s.Databases(requested)
	res.Archives = blastdb.Archives(blastdb.FilterFiles(files, res.Databases), s.ArchiveSuffix)

	dir, err := outdir.Prepare(s.OutputDir, s.DatedSubdir, r.Now())
	if err != nil {
		return nil, fmt.Errorf("prepare output directory: %w", err)
	}
	res.OutputDir = dir
	logger.Info("Using output directory", slog.String("dir", dir))

	loc := model.Location{
		Scheme:         s.Protocol,
		Server:         s.Server(),
		RemoteDir:      s.RemoteDir,
		OutputDir:      dir,
		ChecksumSuffix: s.ChecksumSuffix,
	}

	logger.Debug("File manifest", slog.Int("archives", len(res.Archives)))
	items := make([]*model.WorkItem, 0, len(res.Archives))
	for _, name := range res.Archives {
		item := model.NewWorkItem(name, loc)
		logger.Debug("Queued archive", slog.String("database", item.Name), slog.String("url", item.ArchiveURL))
		items = append(items, item)
	}
	progress(fmt.Sprintf("Found %d archives for %s", len(items), strings.Join(res.Databases, ", ")), download.LevelInfo)

	manager := download.NewManager(download.Options{
		Workers:       s.Workers,
		MaxRetries:    s.MaxRetries,
		RetryCooldown: s.RetryCooldown,
		BlockSize:     s.BlockSize,
		KeepArchives:  s.KeepArchives,
	}, r.Fetcher, logger, onProgress)
	r.manager.Store(manager)

	res.Summary = manager.Run(ctx, items)
	logger.Info("Downloads finished",
		slog.Int("succeeded", len(res.Summary.Succeeded)),
		slog.Int("failed", len(res.Summary.Failed)),
		slog.Int("dequeues", res.Summary.Dequeues))

	if !s.SkipCheck {
		res.Report = verify.Validate(ctx, dir, res.Databases, s.TaxonomyDB, r.Checker, logger)
		for _, result := range res.Report.Results {
			if result.OK() {
				progress(fmt.Sprintf("%s created successfully", result.Path), download.LevelSuccess)
			} else {
				progress(fmt.Sprintf("%s failed validation", result.Path), download.LevelError)
			}
		}
	}

	var runErr error
	switch {
	case !res.Report.OK():
		runErr = &ValidationError{Report: res.Report}
	case !res.Summary.OK():
		runErr = &DownloadError{Failed: res.Summary.Failed}
	}

	if runErr == nil && s.DatedSubdir && s.UpdateLatest {
		if err := outdir.UpdateLatest(filepath.Dir(dir), dir); err != nil {
			logger.Warn("Could not update latest link", slog.Any("error", err))
		}
	}

	if runErr != nil {
		logger.Error("Run finished with errors", slog.Any("error", runErr))
		return res, runErr
	}
	logger.Info("Process complete")
	progress("Process complete", download.LevelSuccess)
	return res, nil
}

// normalize trims names, drops empties and duplicates, and keeps order.
func normalize(names []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || !seen.Add(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// IsPrecondition reports whether err stopped the run before any download.
func IsPrecondition(err error) bool {
	var none *NoDatabasesError
	var missing *verify.MissingToolError
	return errors.As(err, &none) || errors.As(err, &missing) ||
		errors.Is(err, ErrNoMatches) || errors.Is(err, ErrInvalidSettings)
}
