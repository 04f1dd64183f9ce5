package verify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Checker confirms that the database at path can be queried.
type Checker interface {
	Check(ctx context.Context, path string) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, path string) error

// Check calls f(ctx, path).
func (f CheckerFunc) Check(ctx context.Context, path string) error {
	return f(ctx, path)
}

// MissingToolError is returned when a required executable is not on PATH.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("required tool %q not found in PATH", e.Tool)
}

// RequireTools checks that every tool can be found with lookPath. A nil
// lookPath means exec.LookPath. The first missing tool is reported as a
// *MissingToolError.
func RequireTools(lookPath func(string) (string, error), tools ...string) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, tool := range tools {
		if _, err := lookPath(tool); err != nil {
			return &MissingToolError{Tool: tool}
		}
	}
	return nil
}

// BlastDBCheck runs blastdbcheck against a database path.
type BlastDBCheck struct {
	tool   string
	random int
}

// NewBlastDBCheck creates a checker running tool with "-random n", which
// samples n random sequences instead of reading the whole database.
func NewBlastDBCheck(tool string, random int) *BlastDBCheck {
	if tool == "" {
		tool = "blastdbcheck"
	}
	if random < 1 {
		random = 10
	}
	return &BlastDBCheck{tool: tool, random: random}
}

// Args returns the command line used for path.
func (b *BlastDBCheck) Args(path string) []string {
	return []string{
		"-db", path,
		"-random", strconv.Itoa(b.random),
		"-verbosity", "0",
		"-no_isam",
	}
}

// Check runs the tool and fails on a non-zero exit. The tool's output is
// included in the error.
func (b *BlastDBCheck) Check(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, b.tool, b.Args(path)...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", b.tool, path, err, msg)
		}
		return fmt.Errorf("%s %s: %w", b.tool, path, err)
	}
	return nil
}
