// Command nwm reads National Water Model streamflow from the public cloud
// buckets.
//
// Usage:
//
//	nwm <command> [flags]
//
// Run "nwm help" for the list of commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/nwm-streamflow/internal/config"
	"github.com/couchcryptid/nwm-streamflow/internal/dataset"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/download"
	"github.com/couchcryptid/nwm-streamflow/internal/forecast"
	"github.com/couchcryptid/nwm-streamflow/internal/observability"
	"github.com/couchcryptid/nwm-streamflow/internal/storage"
)

// Command is one nwm subcommand.
type Command struct {
	Name      string
	UsageLine string
	Short     string
	Long      string
	Flag      *flag.FlagSet
	Run       func(ctx context.Context, args []string) error
}

func (c *Command) usage(w io.Writer) {
	fmt.Fprintf(w, "usage: nwm %s\n\n%s\n", c.UsageLine, strings.TrimSpace(c.Long))
	if c.Flag != nil {
		fmt.Fprintln(w, "\nflags:")
		c.Flag.SetOutput(w)
		c.Flag.PrintDefaults()
	}
}

// commands is printed in this order by "nwm help".
var commands []*Command

func init() {
	commands = []*Command{cmdPaths, cmdForecast, cmdReanalysis, cmdDownload, cmdCheck}
}

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return help(os.Stdout, args)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, cmd := range commands {
		if cmd.Name != args[0] {
			continue
		}
		cmd.Flag.SetOutput(io.Discard)
		if err := cmd.Flag.Parse(args[1:]); err != nil {
			cmd.usage(os.Stderr)
			return 2
		}
		if err := cmd.Run(ctx, cmd.Flag.Args()); err != nil {
			if errors.Is(err, errUsage) {
				cmd.usage(os.Stderr)
				return 2
			}
			fmt.Fprintf(os.Stderr, "nwm %s: %v\n", cmd.Name, err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(os.Stderr, "nwm: unknown command %q\nRun 'nwm help' for usage.\n", args[0])
	return 2
}

func help(w io.Writer, args []string) int {
	if len(args) >= 2 {
		for _, cmd := range commands {
			if cmd.Name == args[1] {
				cmd.usage(w)
				return 0
			}
		}
		fmt.Fprintf(os.Stderr, "nwm help: unknown topic %q\n", args[1])
		return 2
	}

	fmt.Fprintln(w, "Nwm reads National Water Model streamflow forecasts and reanalysis.")
	fmt.Fprintln(w, "\nUsage:\n\n\tnwm <command> [flags]\n\nCommands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "\t%-12s %s\n", cmd.Name, cmd.Short)
	}
	fmt.Fprintln(w, "\nStorage is selected with STORAGE_BACKEND (gcs, s3 or local) and NWM_BUCKET.")
	fmt.Fprintln(w, "Reanalysis reads use REANALYSIS_BACKEND (archive) and REANALYSIS_ALT_BACKEND (v2).")
	fmt.Fprintln(w, "Use \"nwm help <command>\" for more information about a command.")
	return 0
}

// env is the storage stack shared by commands that touch remote data.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storage.Store
	closer  io.Closer
	src     forecast.Source
	layout  domain.Layout
	metrics *observability.Metrics
}

func newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openEnv(ctx, cfg, cfg.StorageBackend)
}

// openEnv builds the storage stack over backend rather than STORAGE_BACKEND.
func openEnv(ctx context.Context, cfg *config.Config, backend string) (*env, error) {
	logger := observability.NewCLILogger(os.Stderr, cfg.LogLevel)
	metrics := observability.NewMetrics()

	store, closer, err := storage.ForBackend(ctx, cfg, backend, logger, metrics)
	if err != nil {
		return nil, err
	}
	layout := layoutFromConfig(cfg)
	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		closer:  closer,
		layout:  layout,
		metrics: metrics,
		src: forecast.Source{
			Opener:     dataset.NewOpener(store, logger, metrics),
			Downloader: download.New(store, cfg.DownloadWorkers, logger, metrics),
			Layout:     layout,
			Logger:     logger,
			Metrics:    metrics,
		},
	}, nil
}

func (e *env) Close() {
	if err := e.closer.Close(); err != nil {
		e.logger.Warn("close storage", "error", err)
	}
}

func layoutFromConfig(cfg *config.Config) domain.Layout {
	return domain.Layout{
		Bucket:        cfg.Bucket,
		ProductMarker: cfg.ProductMarker,
		Extension:     cfg.FileExtension,
	}
}
