package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	// ErrNotFound is returned for a 404, or a directory index without files.
	ErrNotFound = errors.New("http: not found")

	// ErrConnection is returned when the server cannot be reached or a
	// timeout expires.
	ErrConnection = errors.New("http: connection failed")
)

// DefaultUserAgent identifies blastdbget to the server.
const DefaultUserAgent = "blastdbget"

// Options configures a Client.
type Options struct {
	// BaseURL is the server root, eg. "https://ftp.ncbi.nlm.nih.gov".
	BaseURL string

	// Timeout bounds connecting, waiting for response headers, and every
	// pause between body reads. It never limits a whole transfer.
	Timeout time.Duration

	UserAgent string
}

// Client lists and retrieves files from an HTTP mirror of the BLAST FTP
// directory.
//
// Client provides:
//   - Directory listing parsed from the server's HTML index
//   - Streaming retrieval with progress tracking
//   - An idle timeout that aborts stalled transfers
//
// Example usage:
//
//	client := NewClient(Options{BaseURL: "https://ftp.ncbi.nlm.nih.gov", Timeout: 10 * time.Second}, logger)
//
//	// List a directory
//	names, err := client.List(ctx, "blast/db")
//
//	// Download file with progress
//	err = client.Fetch(ctx, "blast/db/nr.00.tar.gz", file, func(written int64) {
//	    fmt.Printf("%d bytes\r", written)
//	})
type Client struct {
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
}

// NewClient creates a new HTTP client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.Timeout}).DialContext,
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		opts:       opts,
		logger:     logger,
	}
}

// ProgressWriter wraps a writer to track download progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    OnUpdate: func(written int64) {
//	        fmt.Printf("%d bytes\n", written)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	OnUpdate func(written int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written)
	}
	return n, err
}

// hrefPattern matches relative links in an Apache or nginx autoindex page.
var hrefPattern = regexp.MustCompile(`href="([^"?/][^"?]*)"`)

// List returns the file names in dir, in index order. Subdirectories,
// parent links and sort links are skipped.
//
// Returns an error wrapping:
//   - ErrNotFound for a 404 or an index without files
//   - ErrConnection if the server cannot be reached or a timeout expires
//
// Example:
//
//	names, err := client.List(ctx, "blast/db")
func (c *Client) List(ctx context.Context, dir string) ([]string, error) {
	body, err := c.get(ctx, strings.TrimRight(dir, "/")+"/")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	page, err := io.ReadAll(body)
	if err != nil {
		return nil, classify("list "+dir, err)
	}

	names := ParseIndex(string(page))
	if len(names) == 0 {
		return nil, fmt.Errorf("list %s: %w: no files", dir, ErrNotFound)
	}

	c.logger.Debug("Listed remote directory", slog.String("url", c.URL(dir)), slog.Int("files", len(names)))
	return names, nil
}

// ParseIndex extracts file names from an HTML directory index. Duplicate
// links are reported once.
func ParseIndex(page string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()

	var names []string
	for _, match := range hrefPattern.FindAllStringSubmatch(page, -1) {
		name := match[1]
		if strings.HasSuffix(name, "/") || strings.Contains(name, "://") || strings.HasPrefix(name, "#") {
			continue
		}
		if !seen.Add(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Fetch streams the file at remotePath into w. onProgress, if not nil, is
// called with the running byte count.
//
// Example:
//
//	err := client.Fetch(ctx, "blast/db/nr.00.tar.gz.md5", file, nil)
func (c *Client) Fetch(ctx context.Context, remotePath string, w io.Writer, onProgress func(written int64)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := c.get(ctx, remotePath)
	if err != nil {
		return err
	}
	defer body.Close()

	var writer io.Writer = w
	if onProgress != nil {
		writer = &ProgressWriter{Writer: w, OnUpdate: onProgress}
	}

	idle := &idleReader{r: body, timer: time.AfterFunc(c.opts.Timeout, cancel), timeout: c.opts.Timeout}
	defer idle.timer.Stop()

	if _, err := io.Copy(writer, idle); err != nil {
		return classify("retrieve "+remotePath, err)
	}
	return nil
}

// URL returns the absolute URL of remotePath.
func (c *Client) URL(remotePath string) string {
	return c.opts.BaseURL + "/" + strings.TrimLeft(remotePath, "/")
}

func (c *Client) get(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	url := c.URL(remotePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify("get "+url, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: %w: %s", url, ErrNotFound, resp.Status)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: HTTP %d: %s", url, resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

// idleReader cancels the request when no data arrives for timeout.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	ir.timer.Reset(ir.timeout)
	return n, err
}

func classify(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, ErrConnection, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
