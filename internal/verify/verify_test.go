package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingChecker struct {
	mu    sync.Mutex
	fail  map[string]bool
	paths []string
}

func (c *recordingChecker) Check(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
	if c.fail[filepath.Base(path)] {
		return errors.New("exit status 1")
	}
	return nil
}

func TestValidate_SkipsTaxonomyAndContinues(t *testing.T) {
	checker := &recordingChecker{fail: map[string]bool{"nt": true}}

	report := Validate(context.Background(), "/data", []string{"nt", "taxdb", "nr", "nr"}, "taxdb", checker, discardLogger())

	assert.Equal(t, []string{filepath.Join("/data", "nt"), filepath.Join("/data", "nr")}, checker.paths)
	assert.Equal(t, map[string]bool{
		filepath.Join("/data", "nt"): false,
		filepath.Join("/data", "nr"): true,
	}, report.Passed())
	assert.False(t, report.OK())
	assert.Equal(t, []string{"nt"}, report.Failed())

	err := report.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nt: exit status 1")
}

func TestValidate_AllPass(t *testing.T) {
	checker := CheckerFunc(func(context.Context, string) error { return nil })

	report := Validate(context.Background(), "/data", []string{"nr", "nt"}, "taxdb", checker, discardLogger())
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
	assert.Empty(t, report.Failed())
	assert.Len(t, report.Results, 2)
}

func TestValidate_OnlyTaxonomy(t *testing.T) {
	checker := &recordingChecker{}
	report := Validate(context.Background(), "/data", []string{"taxdb"}, "taxdb", checker, nil)

	assert.Empty(t, checker.paths)
	assert.True(t, report.OK())
	assert.Empty(t, report.Passed())
}

func TestRequireTools(t *testing.T) {
	lookPath := func(name string) (string, error) {
		if name == "blastdbcheck" {
			return "/usr/bin/blastdbcheck", nil
		}
		return "", exec.ErrNotFound
	}

	assert.NoError(t, RequireTools(lookPath, "blastdbcheck"))

	err := RequireTools(lookPath, "blastdbcheck", "makeblastdb")
	var missing *MissingToolError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "makeblastdb", missing.Tool)
	assert.Contains(t, err.Error(), `"makeblastdb"`)
}

func TestBlastDBCheck_Args(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		random int
		want   []string
	}{
		{"defaults", "", 0, []string{"-db", "/data/nr", "-random", "10", "-verbosity", "0", "-no_isam"}},
		{"custom", "/opt/blast/bin/blastdbcheck", 3, []string{"-db", "/data/nr", "-random", "3", "-verbosity", "0", "-no_isam"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBlastDBCheck(tt.tool, tt.random)
			assert.Equal(t, tt.want, c.Args("/data/nr"))
		})
	}
}

func TestBlastDBCheck_MissingBinary(t *testing.T) {
	c := NewBlastDBCheck(filepath.Join(t.TempDir(), "no-such-tool"), 1)
	assert.Error(t, c.Check(context.Background(), "/data/nr"))
}

func TestBlastDBCheck_ExitStatus(t *testing.T) {
	for _, tool := range []string{"true", "false"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}

	assert.NoError(t, NewBlastDBCheck("true", 1).Check(context.Background(), "/data/nr"))
	assert.Error(t, NewBlastDBCheck("false", 1).Check(context.Background(), "/data/nr"))
}
