// Command blastdbget-tui is the interactive front end of blastdbget.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brwnj/blastdbget/internal/config"
	"github.com/brwnj/blastdbget/internal/tui"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		cfgFile string
		logFile string
		threads int
	)

	cmd := &cobra.Command{
		Use:          "blastdbget-tui [output]",
		Short:        "Interactive BLAST database downloader.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				settings.OutputDir = args[0]
			}
			if cmd.Flags().Changed("threads") {
				settings.Workers = threads
			}

			// The terminal belongs to the UI, so logs only go to a file.
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("open log file %s: %w", logFile, err)
				}
				defer f.Close()
				w = f
			}
			logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))

			return tui.Run(settings, logger)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	cmd.Flags().IntVarP(&threads, "threads", "t", config.DefaultSettings().Workers, "number of concurrent downloads and extractions")
	return cmd
}
