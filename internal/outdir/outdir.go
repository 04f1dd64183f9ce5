package outdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ioutils "github.com/brwnj/blastdbget/internal/io"
)

// LatestName is the name of the link to the newest dated directory.
const LatestName = "latest"

// DateLayout formats dated subdirectory names.
const DateLayout = "2006-01-02"

// Directory creation is retried because network mounts can refuse it
// briefly.
var (
	MkdirTries = 5
	MkdirPause = 2 * time.Second
)

// Prepare resolves base to an absolute path, appends the date of now when
// dated is set, and creates the resulting directory. It returns the
// directory the run should write into.
func Prepare(base string, dated bool, now time.Time) (string, error) {
	if base == "" {
		base = "."
	}
	dir, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", base, err)
	}
	if dated {
		dir = filepath.Join(dir, now.Format(DateLayout))
	}

	if err := ioutils.EnsureDirRetry(dir, MkdirTries, MkdirPause); err != nil {
		return "", err
	}
	return dir, nil
}

// UpdateLatest points base/latest at target, replacing any previous link
// in a single rename. The link is relative when target lives under base.
// A regular file or directory already named latest is left alone and
// reported as an error.
func UpdateLatest(base, target string) error {
	link := filepath.Join(base, LatestName)

	if info, err := os.Lstat(link); err == nil && info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("%s exists and is not a symlink", link)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	dest := target
	if rel, err := filepath.Rel(base, target); err == nil && filepath.IsLocal(rel) {
		dest = rel
	}

	tmp := filepath.Join(base, fmt.Sprintf(".%s-%d", LatestName, time.Now().UnixNano()))
	if err := os.Symlink(dest, tmp); err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", link, err)
	}
	return nil
}
