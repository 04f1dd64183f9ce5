package download

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brwnj/blastdbget/internal/model"
)

var errNoSuchFile = errors.New("550 no such file")

// fakeFetcher serves files from memory. failures[path] makes the next n
// fetches of path fail after writing half of the content.
type fakeFetcher struct {
	mu       sync.Mutex
	files    map[string][]byte
	failures map[string]int
	calls    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		files:    make(map[string][]byte),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, remotePath string, w io.Writer, onProgress func(int64)) error {
	f.mu.Lock()
	f.calls[remotePath]++
	data, ok := f.files[remotePath]
	fail := f.failures[remotePath] > 0
	if fail {
		f.failures[remotePath]--
	}
	f.mu.Unlock()

	if !ok {
		return errNoSuchFile
	}
	if fail {
		_, _ = w.Write(data[:len(data)/2])
		return errors.New("connection reset by peer")
	}

	n, err := w.Write(data)
	if onProgress != nil {
		onProgress(int64(n))
	}
	return err
}

func (f *fakeFetcher) callCount(remotePath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[remotePath]
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func md5Line(data []byte, name string) []byte {
	sum := md5.Sum(data)
	return []byte(hex.EncodeToString(sum[:]) + "  " + name + "\n")
}

// publish adds an archive holding files, plus its checksum, to the fake
// server and returns the matching work item.
func publish(t *testing.T, f *fakeFetcher, outDir, fileName string, files map[string]string) *model.WorkItem {
	t.Helper()

	item := model.NewWorkItem(fileName, model.Location{
		Server:    "ftp.example.org:21",
		RemoteDir: "blast/db",
		OutputDir: outDir,
	})

	archive := buildTarGz(t, files)
	f.files[item.RemoteArchive] = archive
	f.files[item.RemoteChecksum] = md5Line(archive, fileName)
	return item
}

func testManager(f Fetcher, opts Options) *Manager {
	return NewManager(opts, f, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func assertNoScratch(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".download-") || strings.HasPrefix(e.Name(), ".extract-"),
			"scratch directory left behind: %s", e.Name())
	}
}

func TestAcquire_Downloads(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	f.files["blast/db/nr.00.tar.gz.md5"] = []byte("abc  nr.00.tar.gz\n")

	m := testManager(f, DefaultOptions())
	local := filepath.Join(dir, "nr.00.tar.gz.md5")

	require.NoError(t, m.Acquire(context.Background(), "blast/db/nr.00.tar.gz.md5", local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "abc  nr.00.tar.gz\n", string(data))

	received, _, _, _ := m.GetProgress()
	assert.Equal(t, int64(len(data)), received)
	assertNoScratch(t, dir)
}

func TestAcquire_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	f.files["blast/db/nr.00.tar.gz"] = []byte("remote")

	local := filepath.Join(dir, "nr.00.tar.gz")
	require.NoError(t, os.WriteFile(local, []byte("local"), 0644))

	m := testManager(f, DefaultOptions())
	for i := 0; i < 2; i++ {
		require.NoError(t, m.Acquire(context.Background(), "blast/db/nr.00.tar.gz", local))
	}

	assert.Equal(t, 0, f.callCount("blast/db/nr.00.tar.gz"))
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestAcquire_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	f.files["blast/db/nr.00.tar.gz"] = []byte("0123456789")
	f.failures["blast/db/nr.00.tar.gz"] = 1

	m := testManager(f, DefaultOptions())
	local := filepath.Join(dir, "nr.00.tar.gz")

	err := m.Acquire(context.Background(), "blast/db/nr.00.tar.gz", local)
	require.Error(t, err)
	assert.NoFileExists(t, local)
	assertNoScratch(t, dir)

	err = m.Acquire(context.Background(), "blast/db/missing.tar.gz", filepath.Join(dir, "missing.tar.gz"))
	assert.ErrorIs(t, err, errNoSuchFile)
}

func TestValidate_MismatchRemovesBoth(t *testing.T) {
	dir := t.TempDir()
	item := model.NewWorkItem("nr.00.tar.gz", model.Location{RemoteDir: "blast/db", OutputDir: dir})

	archive := []byte("archive bytes")
	sum := md5.Sum(archive)
	digest := hex.EncodeToString(sum[:])
	require.NoError(t, os.WriteFile(item.LocalArchive, archive, 0644))
	require.NoError(t, os.WriteFile(item.LocalChecksum, []byte(digest+"  nr.00.tar.gz\n"), 0644))

	m := testManager(newFakeFetcher(), DefaultOptions())
	require.NoError(t, m.Validate(item))
	assert.FileExists(t, item.LocalArchive)

	flipped := "f" + digest[1:]
	if digest[0] == 'f' {
		flipped = "0" + digest[1:]
	}
	require.NoError(t, os.WriteFile(item.LocalChecksum, []byte(flipped+"  nr.00.tar.gz\n"), 0644))

	assert.Error(t, m.Validate(item))
	assert.NoFileExists(t, item.LocalArchive)
	assert.NoFileExists(t, item.LocalChecksum)
}

func TestExtract_NoClobber(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	item := publish(t, f, dir, "nr.00.tar.gz", map[string]string{
		"nr.00.pin": "new pin",
		"nr.00.psq": "new psq",
		"taxdb.btd": "new btd",
	})
	require.NoError(t, os.WriteFile(item.LocalArchive, f.files[item.RemoteArchive], 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "taxdb.btd"), []byte("old btd"), 0644))

	m := testManager(f, DefaultOptions())
	require.NoError(t, m.Extract(item))

	for name, want := range map[string]string{
		"nr.00.pin": "new pin",
		"nr.00.psq": "new psq",
		"taxdb.btd": "old btd",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(data), name)
	}
	assert.FileExists(t, item.LocalArchive)
	assertNoScratch(t, dir)
}

func TestExtract_CorruptArchive(t *testing.T) {
	dir := t.TempDir()
	item := model.NewWorkItem("nr.00.tar.gz", model.Location{RemoteDir: "blast/db", OutputDir: dir})
	require.NoError(t, os.WriteFile(item.LocalArchive, []byte("garbage"), 0644))

	m := testManager(newFakeFetcher(), DefaultOptions())
	assert.Error(t, m.Extract(item))
	assertNoScratch(t, dir)
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	item := publish(t, f, dir, "nr.00.tar.gz", map[string]string{
		"nr.00.pin": "pin",
		"nr.00.psq": "psq",
	})
	publish(t, f, dir, "nt.00.tar.gz", map[string]string{"nt.00.nin": "nin"})

	var mu sync.Mutex
	var events []ProgressEvent
	m := NewManager(DefaultOptions(), f, slog.New(slog.NewTextHandler(io.Discard, nil)), func(e ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	summary := m.Run(context.Background(), []*model.WorkItem{item})

	require.True(t, summary.OK())
	assert.Len(t, summary.Succeeded, 1)
	assert.Equal(t, 1, summary.Dequeues)

	assert.FileExists(t, filepath.Join(dir, "nr.00.pin"))
	assert.FileExists(t, filepath.Join(dir, "nr.00.psq"))
	assert.FileExists(t, item.LocalArchive)
	assert.FileExists(t, item.LocalChecksum)
	assert.NoFileExists(t, filepath.Join(dir, "nt.00.nin"))
	assert.Equal(t, 0, f.callCount("blast/db/nt.00.tar.gz"))
	assertNoScratch(t, dir)

	_, finished, failed, total := m.GetProgress()
	assert.Equal(t, int32(1), finished)
	assert.Equal(t, int32(0), failed)
	assert.Equal(t, int32(1), total)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, LevelSuccess, events[len(events)-1].Level)
}

func TestRun_RetryBound(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	item := publish(t, f, dir, "nr.00.tar.gz", map[string]string{"nr.00.pin": "pin"})
	f.files[item.RemoteChecksum] = []byte("00000000000000000000000000000000  nr.00.tar.gz\n")

	m := testManager(f, DefaultOptions())
	summary := m.Run(context.Background(), []*model.WorkItem{item})

	assert.False(t, summary.OK())
	require.Len(t, summary.Failed, 1)
	assert.Empty(t, summary.Succeeded)
	assert.Equal(t, 3, summary.Dequeues)
	assert.Equal(t, 2, item.Attempts)
	assert.Equal(t, 3, f.callCount(item.RemoteArchive), "each attempt downloads again after the files are removed")
	assert.NoFileExists(t, item.LocalArchive)
	assert.NoFileExists(t, item.LocalChecksum)
}

func TestRun_NoRetries(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	item := publish(t, f, dir, "nr.00.tar.gz", map[string]string{"nr.00.pin": "pin"})
	f.failures[item.RemoteArchive] = 1

	opts := DefaultOptions()
	opts.MaxRetries = 0
	summary := testManager(f, opts).Run(context.Background(), []*model.WorkItem{item})

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, 1, summary.Dequeues)
	assert.Equal(t, 0, item.Attempts)
	assert.NoFileExists(t, item.LocalArchive)
}

func TestStepError(t *testing.T) {
	err := error(&StepError{Step: StepChecksum, Err: errNoSuchFile})

	assert.ErrorIs(t, err, errNoSuchFile)
	assert.Equal(t, "download-checksum", stepOf(err))
	assert.Equal(t, "", stepOf(errNoSuchFile))
	assert.Equal(t, "download-checksum: 550 no such file", err.Error())
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()

	var items []*model.WorkItem
	for _, name := range []string{"nr.00.tar.gz", "nr.01.tar.gz", "nt.00.tar.gz", "taxdb.tar.gz"} {
		items = append(items, publish(t, f, dir, name, map[string]string{
			strings.TrimSuffix(name, ".tar.gz") + ".dat": name,
		}))
	}
	// k = 2 items fail once each, at different steps.
	f.failures[items[0].RemoteArchive] = 1
	f.failures[items[2].RemoteChecksum] = 1

	opts := DefaultOptions()
	opts.Workers = 3
	summary := testManager(f, opts).Run(context.Background(), items)

	require.True(t, summary.OK())
	assert.Len(t, summary.Succeeded, 4)
	assert.Equal(t, 4+2, summary.Dequeues)
	assert.Equal(t, 1, items[0].Attempts)
	assert.Equal(t, 0, items[1].Attempts)
	assert.Equal(t, 1, items[2].Attempts)

	for _, item := range items {
		assert.FileExists(t, filepath.Join(dir, strings.TrimSuffix(item.FileName, ".tar.gz")+".dat"))
	}
	assertNoScratch(t, dir)
}

func TestRun_DiscardArchives(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	item := publish(t, f, dir, "nr.00.tar.gz", map[string]string{"nr.00.pin": "pin"})

	opts := DefaultOptions()
	opts.KeepArchives = false
	summary := testManager(f, opts).Run(context.Background(), []*model.WorkItem{item})

	require.True(t, summary.OK())
	assert.FileExists(t, filepath.Join(dir, "nr.00.pin"))
	assert.NoFileExists(t, item.LocalArchive)
	assert.NoFileExists(t, item.LocalChecksum)
}

func TestRun_CancelledContextStopsRetrying(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFetcher()
	item := publish(t, f, dir, "nr.00.tar.gz", map[string]string{"nr.00.pin": "pin"})
	f.failures[item.RemoteArchive] = 5

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := testManager(f, DefaultOptions()).Run(ctx, []*model.WorkItem{item})
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, 1, summary.Dequeues)
}

func TestRun_Empty(t *testing.T) {
	summary := testManager(newFakeFetcher(), DefaultOptions()).Run(context.Background(), nil)
	assert.True(t, summary.OK())
	assert.Zero(t, summary.Dequeues)
}
