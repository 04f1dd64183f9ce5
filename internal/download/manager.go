package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brwnj/blastdbget/internal/blastdb"
	ioutils "github.com/brwnj/blastdbget/internal/io"
	"github.com/brwnj/blastdbget/internal/model"
	"golang.org/x/sync/errgroup"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a pipeline progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Step names one stage of the per-item pipeline.
type Step string

const (
	StepArchive  Step = "download-archive"
	StepChecksum Step = "download-checksum"
	StepValidate Step = "validate"
	StepExtract  Step = "extract"
)

// StepError records which stage of an item failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Fetcher streams a remote file into w. *ftp.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, remotePath string, w io.Writer, onProgress func(written int64)) error
}

// Options configures a Manager.
type Options struct {
	// Workers is the size of the worker pool.
	Workers int

	// MaxRetries is how many times a failed item is re-queued before it is
	// reported as permanently failed. 2 means at most 3 attempts.
	MaxRetries int

	// RetryCooldown is how long a worker waits before re-queueing a failed
	// item. Zero re-queues immediately.
	RetryCooldown time.Duration

	// BlockSize is the read size used when digesting archives.
	BlockSize int

	// KeepArchives leaves the archive and checksum in place after a
	// successful extraction. When false they are removed.
	KeepArchives bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Workers:      8,
		MaxRetries:   2,
		BlockSize:    blastdb.DefaultBlockSize,
		KeepArchives: true,
	}
}

// Summary is the outcome of a Run.
type Summary struct {
	// Succeeded and Failed hold each original item exactly once.
	Succeeded []*model.WorkItem
	Failed    []*model.WorkItem

	// Dequeues counts every Get, retries included.
	Dequeues int
}

// OK reports whether every item succeeded.
func (s *Summary) OK() bool {
	return len(s.Failed) == 0
}

// Manager runs the download, validate and extract pipeline over a pool of
// workers.
//
// Each item is processed by one worker at a time:
//
//  1. Acquire the archive (skipped when already on disk)
//  2. Acquire the checksum file (same)
//  3. Validate the archive digest; on mismatch both files are deleted
//  4. Extract into a scratch directory and move entries into place
//     without overwriting existing files
//
// A failure at any step re-queues the item, up to Options.MaxRetries times.
// A retried item starts again at step 1.
type Manager struct {
	opts    Options
	fetcher Fetcher
	logger  *slog.Logger

	receivedBytes int64
	totalFiles    int32
	finishedFiles int32
	failedFiles   int32

	onProgress func(ProgressEvent)

	mu      sync.Mutex
	summary *Summary
}

// NewManager creates a new Manager. onProgress may be nil.
func NewManager(opts Options, fetcher Fetcher, logger *slog.Logger, onProgress func(ProgressEvent)) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BlockSize < 1 {
		opts.BlockSize = blastdb.DefaultBlockSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		opts:       opts,
		fetcher:    fetcher,
		logger:     logger,
		onProgress: onProgress,
	}
}

// GetProgress returns current pipeline progress.
func (m *Manager) GetProgress() (received int64, finished, failed, total int32) {
	return atomic.LoadInt64(&m.receivedBytes),
		atomic.LoadInt32(&m.finishedFiles),
		atomic.LoadInt32(&m.failedFiles),
		atomic.LoadInt32(&m.totalFiles)
}

// Run processes items until each one has succeeded or exhausted its
// retries. It blocks until the queue is fully drained.
//
// Cancelling ctx aborts in-flight transfers; the affected items are then
// reported as failed instead of being retried.
func (m *Manager) Run(ctx context.Context, items []*model.WorkItem) *Summary {
	m.mu.Lock()
	m.summary = &Summary{}
	m.mu.Unlock()

	atomic.StoreInt32(&m.totalFiles, int32(len(items)))
	atomic.StoreInt32(&m.finishedFiles, 0)
	atomic.StoreInt32(&m.failedFiles, 0)

	if len(items) == 0 {
		return m.summary
	}

	q := NewQueue[*model.WorkItem]()
	for _, item := range items {
		_ = q.Put(item)
	}

	workers := m.opts.Workers
	if workers > len(items) {
		workers = len(items)
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error {
			m.work(ctx, id, q)
			return nil
		})
	}

	q.Join()
	q.Close()
	_ = g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

func (m *Manager) work(ctx context.Context, id int, q *Queue[*model.WorkItem]) {
	logger := m.logger.With(slog.Int("worker", id))

	for {
		item, ok := q.Get()
		if !ok {
			return
		}

		m.mu.Lock()
		m.summary.Dequeues++
		m.mu.Unlock()

		itemLog := logger.With(
			slog.String("database", item.Name),
			slog.String("file", item.FileName),
			slog.Int("attempt", item.Attempts+1),
		)

		err := m.process(ctx, item, itemLog)
		switch {
		case err == nil:
			m.succeed(item, itemLog)
			q.Done()

		case item.Attempts < m.opts.MaxRetries && ctx.Err() == nil:
			item.Attempts++
			itemLog.Warn("Item failed, retrying",
				slog.Any("error", err), slog.String("step", stepOf(err)), slog.Int("unfinished", q.Unfinished()))
			m.progress(ProgressEvent{
				Message: fmt.Sprintf("Retry %d/%d for %s: %v", item.Attempts, m.opts.MaxRetries, item.FileName, err),
				Level:   LevelWarning,
			})
			m.waitForRetry(ctx)
			q.Requeue(item)

		default:
			m.fail(item, err, itemLog)
			q.Done()
		}
	}
}

func (m *Manager) process(ctx context.Context, item *model.WorkItem, logger *slog.Logger) error {
	if err := m.Acquire(ctx, item.RemoteArchive, item.LocalArchive); err != nil {
		return &StepError{Step: StepArchive, Err: err}
	}
	if err := m.Acquire(ctx, item.RemoteChecksum, item.LocalChecksum); err != nil {
		return &StepError{Step: StepChecksum, Err: err}
	}
	if err := m.Validate(item); err != nil {
		return &StepError{Step: StepValidate, Err: err}
	}
	logger.Debug("Checksum verified")

	if err := m.Extract(item); err != nil {
		return &StepError{Step: StepExtract, Err: err}
	}
	return nil
}

func (m *Manager) succeed(item *model.WorkItem, logger *slog.Logger) {
	if !m.opts.KeepArchives {
		for _, p := range []string{item.LocalArchive, item.LocalChecksum} {
			if err := ioutils.RemoveFile(p); err != nil {
				logger.Warn("Could not remove archive", slog.String("path", p), slog.Any("error", err))
			}
		}
	}

	m.mu.Lock()
	m.summary.Succeeded = append(m.summary.Succeeded, item)
	m.mu.Unlock()
	atomic.AddInt32(&m.finishedFiles, 1)

	logger.Info("Archive ready")
	m.progress(ProgressEvent{Message: fmt.Sprintf("Extracted: %s", item.FileName), Level: LevelSuccess})
}

func (m *Manager) fail(item *model.WorkItem, err error, logger *slog.Logger) {
	m.mu.Lock()
	m.summary.Failed = append(m.summary.Failed, item)
	m.mu.Unlock()
	atomic.AddInt32(&m.finishedFiles, 1)
	atomic.AddInt32(&m.failedFiles, 1)

	logger.Error("Item permanently failed", slog.Any("error", err), slog.String("step", stepOf(err)))
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Failed %s after %d attempts: %v", item.FileName, item.Attempts+1, err),
		Level:   LevelError,
	})
}

// Acquire downloads remotePath to localPath unless localPath already
// exists. The transfer goes to a private scratch directory next to
// localPath and is renamed into place only when complete, so a partial file
// never sits at localPath.
func (m *Manager) Acquire(ctx context.Context, remotePath, localPath string) error {
	if ioutils.Exists(localPath) {
		m.logger.Debug("Skipping existing file", slog.String("path", localPath))
		m.progress(ProgressEvent{Message: fmt.Sprintf("Skipping existing: %s", filepath.Base(localPath)), Level: LevelVerbose})
		return nil
	}

	tmp, err := ioutils.ScratchDir(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer ioutils.RemoveDir(tmp)

	part := filepath.Join(tmp, filepath.Base(localPath))
	if err := m.fetchTo(ctx, remotePath, part); err != nil {
		_ = ioutils.RemoveFile(localPath)
		return err
	}

	if err := ioutils.MoveFile(part, localPath); err != nil {
		_ = ioutils.RemoveFile(localPath)
		return fmt.Errorf("move %s into place: %w", filepath.Base(localPath), err)
	}

	m.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", filepath.Base(localPath)), Level: LevelVerbose})
	return nil
}

func (m *Manager) fetchTo(ctx context.Context, remotePath, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var last int64
	err = m.fetcher.Fetch(ctx, remotePath, f, func(written int64) {
		atomic.AddInt64(&m.receivedBytes, written-last)
		last = written
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", remotePath, err)
	}
	return nil
}

// Validate checks the item's archive against its checksum file. On any
// failure both local files are deleted so the next attempt downloads them
// afresh.
func (m *Manager) Validate(item *model.WorkItem) error {
	err := blastdb.Validate(item.LocalArchive, item.LocalChecksum, m.opts.BlockSize)
	if err == nil {
		return nil
	}

	var mismatch *blastdb.MismatchError
	if errors.As(err, &mismatch) {
		m.logger.Warn("Checksum mismatch",
			slog.String("file", item.FileName),
			slog.String("published", mismatch.Want),
			slog.String("computed", mismatch.Got))
	}

	for _, p := range []string{item.LocalArchive, item.LocalChecksum} {
		if rmErr := ioutils.RemoveFile(p); rmErr != nil {
			m.logger.Warn("Could not remove invalid file", slog.String("path", p), slog.Any("error", rmErr))
		}
	}
	return err
}

// Extract unpacks the item's archive next to it. The archive is copied to a
// scratch directory and unpacked there; each top-level entry is then moved
// into the archive's directory unless an entry of that name already exists.
func (m *Manager) Extract(item *model.WorkItem) error {
	tmp, err := ioutils.ScratchDir(item.Dir(), ".extract-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer ioutils.RemoveDir(tmp)

	archive := filepath.Join(tmp, item.FileName)
	if err := ioutils.CopyFile(item.LocalArchive, archive); err != nil {
		return fmt.Errorf("copy archive: %w", err)
	}

	contents := filepath.Join(tmp, "contents")
	if err := ioutils.EnsureDir(contents); err != nil {
		return err
	}
	if err := ioutils.ExtractTarGz(archive, contents); err != nil {
		return err
	}
	if err := ioutils.RemoveFile(archive); err != nil {
		return err
	}

	moved, skipped, err := ioutils.MoveNoClobber(contents, item.Dir())
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		m.logger.Debug("Kept existing files", slog.String("file", item.FileName), slog.Any("names", skipped))
	}
	m.logger.Debug("Extracted archive", slog.String("file", item.FileName), slog.Int("entries", len(moved)))
	return nil
}

func (m *Manager) waitForRetry(ctx context.Context) {
	if m.opts.RetryCooldown <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(m.opts.RetryCooldown):
	}
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

func stepOf(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return string(se.Step)
	}
	return ""
}
