package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/brwnj/blastdbget/internal/app"
	"github.com/brwnj/blastdbget/internal/config"
	"github.com/brwnj/blastdbget/internal/download"
)

type cli struct {
	stdout io.Writer
	stderr io.Writer

	// Flags
	cfgFile      string
	protocol     string
	databases    []string
	threads      int
	logLevel     string
	logFormat    string
	logFile      string
	dated        bool
	keepArchives bool
	skipCheck    bool
	noTaxonomy   bool
	verbose      bool

	// Populated in PersistentPreRunE
	logger   *slog.Logger
	settings *config.Settings
	logClose func() error

	newRunner func(*config.Settings, *slog.Logger) *app.Runner
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{stdout: stdout, stderr: stderr, newRunner: app.NewRunner}
}

func (c *cli) close() {
	if c.logClose != nil {
		_ = c.logClose()
	}
}

func (c *cli) rootCommand() *cobra.Command {
	defaults := config.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "blastdbget [output]",
		Short: "Download, verify and extract BLAST databases from NCBI.",
		Long: `blastdbget fetches the archives of the requested BLAST databases from the
NCBI FTP server, checks each against its published MD5, extracts it into the
output directory and finally runs blastdbcheck on every database.

Archives already present in the output directory are not downloaded again.
Run without -d to list the databases available on the server.`,
		Example: `  blastdbget /data/blastdb -d nr -d nt
  blastdbget /data/blastdb -d refseq_protein -t 16 --dated`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE:              c.runE,
	}

	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	f := cmd.Flags()
	f.StringArrayVarP(&c.databases, "database", "d", nil, `database to download, eg. "-d nr"; repeat for several`)
	f.IntVarP(&c.threads, "threads", "t", defaults.Workers, "number of concurrent downloads and extractions")
	f.BoolVar(&c.dated, "dated", defaults.DatedSubdir, "write into a dated subdirectory and update the latest link")
	f.BoolVar(&c.keepArchives, "keep-archives", defaults.KeepArchives, "keep archives and checksum files after extraction")
	f.BoolVar(&c.skipCheck, "skip-check", defaults.SkipCheck, "do not run blastdbcheck after downloading")
	f.BoolVar(&c.noTaxonomy, "no-taxdb", !defaults.IncludeTaxonomy, "do not download the taxonomy database")
	f.StringVar(&c.protocol, "protocol", defaults.Protocol, "transport: ftp or https")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "show per-file progress")

	pf := cmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (YAML or JSON)")
	pf.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&c.logFormat, "log-format", "text", "log format (text, json)")
	pf.StringVar(&c.logFile, "log-file", "", "also write logs to this file")

	return cmd
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	logger, closer, err := newLogger(c.stderr, c.logLevel, c.logFormat, c.logFile)
	if err != nil {
		return &usageError{err: err}
	}
	c.logger = logger
	c.logClose = closer

	settings, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if len(args) == 1 {
		settings.OutputDir = args[0]
	}
	if flags.Changed("protocol") {
		settings.Protocol = c.protocol
	}
	if flags.Changed("threads") {
		settings.Workers = c.threads
	}
	if flags.Changed("dated") {
		settings.DatedSubdir = c.dated
	}
	if flags.Changed("keep-archives") {
		settings.KeepArchives = c.keepArchives
	}
	if flags.Changed("skip-check") {
		settings.SkipCheck = c.skipCheck
	}
	if flags.Changed("no-taxdb") {
		settings.IncludeTaxonomy = !c.noTaxonomy
	}

	if err := settings.Validate(); err != nil {
		return &usageError{err: err}
	}
	c.settings = settings
	c.logger.Debug("Configuration loaded", slog.Any("settings", settings))
	return nil
}

func (c *cli) runE(cmd *cobra.Command, _ []string) error {
	res, err := c.newRunner(c.settings, c.logger).Run(cmd.Context(), c.databases, c.printProgress)

	var none *app.NoDatabasesError
	if errors.As(err, &none) {
		fmt.Fprintln(c.stdout, "Usage: Set -d to an available database:")
		for _, name := range none.Available {
			fmt.Fprintln(c.stdout, name)
		}
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Complete! %d archive(s) in %s\n", len(res.Summary.Succeeded), res.OutputDir)
	return nil
}

func (c *cli) printProgress(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !c.verbose {
		return
	}

	var prefix string
	switch event.Level {
	case download.LevelError:
		prefix = "✗ "
	case download.LevelWarning:
		prefix = "! "
	case download.LevelSuccess:
		prefix = "✓ "
	case download.LevelInfo:
		prefix = "› "
	default:
		prefix = "  "
	}

	fmt.Fprintln(c.stdout, prefix+event.Message)
}

// newLogger builds the run logger. With a log file, records go to both w
// and the file.
func newLogger(w io.Writer, level, format, file string) (*slog.Logger, func() error, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	newHandler := func(out io.Writer) (slog.Handler, error) {
		switch strings.ToLower(format) {
		case "json":
			return slog.NewJSONHandler(out, opts), nil
		case "text", "":
			return slog.NewTextHandler(out, opts), nil
		}
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	handler, err := newHandler(w)
	if err != nil {
		return nil, nil, err
	}
	if file == "" {
		return slog.New(handler), func() error { return nil }, nil
	}

	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", file, err)
	}
	fileHandler, _ := newHandler(f)
	return slog.New(slogmulti.Fanout(handler, fileHandler)), f.Close, nil
}
