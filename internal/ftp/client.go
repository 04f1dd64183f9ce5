package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"path"
	"time"

	goftp "github.com/jlaffaye/ftp"
)

var (
	// ErrNotFound is returned when a remote directory is empty or does not
	// exist, or a remote file is unavailable (FTP reply 550).
	ErrNotFound = errors.New("ftp: not found")

	// ErrConnection is returned when the server cannot be reached or a
	// connection times out.
	ErrConnection = errors.New("ftp: connection failed")
)

// Options configures a Client.
type Options struct {
	// Address is the server host:port.
	Address string

	// User and Password are the login credentials.
	// NCBI accepts anonymous logins.
	User     string
	Password string

	// Timeout bounds the dial and every individual read or write on the
	// control and data connections.
	Timeout time.Duration
}

// Client wraps FTP operations against a single server.
//
// Client provides:
//   - Directory listing with classified errors (ErrNotFound, ErrConnection)
//   - Streaming retrieval with progress tracking
//   - A bounded socket timeout on every network operation
//
// Every call opens its own connection, so a Client is safe for concurrent
// use by several workers.
//
// Example usage:
//
//	client := NewClient(Options{Address: "ftp.ncbi.nlm.nih.gov:21", User: "anonymous", Timeout: 10 * time.Second}, logger)
//
//	// List a directory
//	names, err := client.List(ctx, "blast/db")
//
//	// Stream a file to disk
//	err = client.Fetch(ctx, "blast/db/nr.00.tar.gz", file, func(written int64) {
//	    fmt.Printf("%d bytes\r", written)
//	})
type Client struct {
	opts   Options
	logger *slog.Logger
}

// NewClient creates a new FTP client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{opts: opts, logger: logger}
}

// ProgressWriter wraps a writer to track transfer progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    OnUpdate: func(written int64) {
//	        fmt.Printf("%d bytes\n", written)
//	    },
//	}
//	io.Copy(pw, response)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with the bytes written so far.
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

// List returns the file names in dir, in the order the server sends them.
//
// Returns an error wrapping:
//   - ErrNotFound if the directory is empty or the server replies 550
//   - ErrConnection if the server cannot be reached or a timeout expires
//
// List never retries; the caller decides whether to abort the run.
//
// Example:
//
//	names, err := client.List(ctx, "blast/db")
//	if errors.Is(err, ftp.ErrNotFound) {
//	    // nothing published
//	}
func (c *Client) List(ctx context.Context, dir string) ([]string, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.quit(conn)

	names, err := conn.NameList(dir)
	if err != nil {
		return nil, classify("list "+dir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("list %s: %w: no files", dir, ErrNotFound)
	}

	// Some servers answer NLST with full paths.
	for i, name := range names {
		names[i] = path.Base(name)
	}

	c.logger.Debug("Listed remote directory", slog.String("dir", dir), slog.Int("files", len(names)))
	return names, nil
}

// Fetch streams the remote file at remotePath into w.
//
// The transfer is done in binary mode over a fresh connection. onProgress,
// if not nil, is called with the running byte count. Cancelling ctx aborts
// the transfer mid-stream. A transfer the server reports as aborted (426,
// 451) is an error even when the data connection closed cleanly.
//
// Example:
//
//	err := client.Fetch(ctx, "blast/db/nr.00.tar.gz.md5", file, nil)
func (c *Client) Fetch(ctx context.Context, remotePath string, w io.Writer, onProgress func(written int64)) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer c.quit(conn)

	c.logger.Debug("Retrieving file", slog.String("url", c.URL(remotePath)))

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return classify("retrieve "+remotePath, err)
	}
	// No-op once the explicit Close below has run.
	defer resp.Close()

	var writer io.Writer = w
	if onProgress != nil {
		writer = &ProgressWriter{Writer: w, OnUpdate: onProgress}
	}

	if _, err := io.Copy(writer, resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("retrieve %s: %w: %w", remotePath, ErrConnection, ctxErr)
		}
		return classify("retrieve "+remotePath, err)
	}

	// Close reads the end-of-transfer reply from the control connection.
	if err := resp.Close(); err != nil {
		return classify("retrieve "+remotePath, err)
	}
	return nil
}

// URL returns the ftp:// location of remotePath on this client's server.
func (c *Client) URL(remotePath string) string {
	return fmt.Sprintf("ftp://%s/%s", c.opts.Address, remotePath)
}

func (c *Client) connect(ctx context.Context) (*goftp.ServerConn, error) {
	conn, err := goftp.Dial(c.opts.Address,
		goftp.DialWithContext(ctx),
		goftp.DialWithTimeout(c.opts.Timeout),
		goftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			return c.dial(ctx, network, address)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %v", c.opts.Address, ErrConnection, err)
	}

	if err := conn.Login(c.opts.User, c.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, classify("login "+c.opts.Address, err)
	}
	return conn, nil
}

// dial is used for both the control and the data connections.
func (c *Client) dial(ctx context.Context, network, address string) (net.Conn, error) {
	d := net.Dialer{Timeout: c.opts.Timeout}
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return newDeadlineConn(ctx, conn, c.opts.Timeout), nil
}

func (c *Client) quit(conn *goftp.ServerConn) {
	if err := conn.Quit(); err != nil {
		c.logger.Debug("FTP quit failed", slog.Any("error", err))
	}
}

// deadlineConn pushes the connection deadline forward before every read
// and write, so an idle transfer fails after timeout instead of hanging.
// Cancelling ctx expires the deadline at once, waking a blocked call.
type deadlineConn struct {
	net.Conn
	ctx     context.Context
	timeout time.Duration
	stop    func() bool
}

func newDeadlineConn(ctx context.Context, conn net.Conn, timeout time.Duration) *deadlineConn {
	return &deadlineConn{
		Conn:    conn,
		ctx:     ctx,
		timeout: timeout,
		stop: context.AfterFunc(ctx, func() {
			_ = conn.SetDeadline(time.Now())
		}),
	}
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	if err := d.extend(); err != nil {
		return 0, err
	}
	return d.Conn.Read(p)
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	if err := d.extend(); err != nil {
		return 0, err
	}
	return d.Conn.Write(p)
}

func (d *deadlineConn) Close() error {
	d.stop()
	return d.Conn.Close()
}

// extend checks ctx only after moving the deadline, so a cancel that races
// with it still lands on the new deadline.
func (d *deadlineConn) extend() error {
	if err := d.Conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
		return err
	}
	return d.ctx.Err()
}

// classify maps a raw error from the FTP library onto ErrNotFound or
// ErrConnection. Anything else is wrapped unchanged.
func classify(op string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case goftp.StatusFileUnavailable:
			return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
		case goftp.StatusNotAvailable, goftp.StatusCanNotOpenDataConnection,
			goftp.StatusTransfertAborted, goftp.StatusActionAborted:
			return fmt.Errorf("%s: %w: %v", op, ErrConnection, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, ErrConnection, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
