package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/adapter/filesystem"
	"github.com/vertextoedge/gdc-fetch/internal/adapter/httpclient"
	"github.com/vertextoedge/gdc-fetch/internal/adapter/sqlite"
	"github.com/vertextoedge/gdc-fetch/internal/config"
	"github.com/vertextoedge/gdc-fetch/internal/logger"
	"github.com/vertextoedge/gdc-fetch/internal/manifest"
	"github.com/vertextoedge/gdc-fetch/internal/metrics"
	"github.com/vertextoedge/gdc-fetch/internal/port"
	"github.com/vertextoedge/gdc-fetch/internal/progress"
	"github.com/vertextoedge/gdc-fetch/internal/service/batch"
	"github.com/vertextoedge/gdc-fetch/internal/service/transfer"
)

const version = "1.0.0"

// Exit codes
const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		return exitError
	}

	// Load configuration
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: opts.configFile,
		Overrides:  opts.overrides,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()

	// Interrupts cancel the run; a second one kills the process
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	fsManager, err := filesystem.NewManager(cfg.SaveDir)
	if err != nil {
		zapLogger.Error("failed to prepare save directory", zap.Error(err), zap.String("path", cfg.SaveDir))
		return exitError
	}

	entries, err := manifest.Load(cfg.Manifest)
	if err != nil {
		zapLogger.Error("failed to load manifest", zap.Error(err), zap.String("path", cfg.Manifest))
		return exitError
	}
	tasks, err := manifest.Tasks(entries, cfg.BaseURL, fsManager)
	if err != nil {
		zapLogger.Error("invalid manifest", zap.Error(err), zap.String("path", cfg.Manifest))
		return exitError
	}

	var (
		journal port.TransferJournal
		store   *sqlite.Store
	)
	if cfg.Journal.Path != "" {
		store, err = sqlite.Open(cfg.Journal.Path)
		if err != nil {
			zapLogger.Error("failed to open journal", zap.Error(err), zap.String("path", cfg.Journal.Path))
			return exitError
		}
		defer store.Close()
		journal = store
	}

	fetcher := httpclient.NewClient(httpclient.Config{
		SkipTLSVerify:         cfg.HTTP.SkipTLSVerify,
		DialTimeout:           cfg.HTTP.GetDialTimeout(),
		ResponseHeaderTimeout: cfg.HTTP.GetResponseHeaderTimeout(),
		BufferSizeKB:          cfg.HTTP.BufferSizeKB,
	}, zapLogger)

	reporter := progress.NewReporter(progress.Options{
		Output:          os.Stdout,
		Disabled:        !cfg.Progress.Enabled,
		Window:          cfg.Progress.GetWindow(),
		RefreshInterval: cfg.Progress.GetRefreshInterval(),
		LogInterval:     cfg.Progress.GetLogInterval(),
	})

	downloader := transfer.NewDownloader(fetcher, fsManager, reporter, transfer.Config{
		Retry: transfer.RetryConfig{
			Delay:       cfg.Retry.GetSleepTime(),
			MaxAttempts: cfg.Retry.MaxAttempts,
		},
		ChunkSize: cfg.Download.ChunkSize,
	}, zapLogger)

	runner := batch.New(batch.Config{
		ContinueOnFatal: cfg.Download.ContinueOnFatal(),
		MetricsTextfile: cfg.Metrics.Textfile,
	}, downloader, journal, metrics.NewCollector(), zapLogger)

	zapLogger.Info("starting gdc-fetch",
		zap.String("version", version),
		zap.String("run_id", runner.RunID()),
		zap.String("manifest", cfg.Manifest),
		zap.String("save_dir", fsManager.RootDir()),
		zap.Int("tasks", len(tasks)),
		zap.Duration("sleep_time", cfg.Retry.GetSleepTime()),
	)

	_, err = runner.Run(ctx, tasks)

	if store != nil {
		if stats, serr := store.GetRunStats(runner.RunID()); serr == nil {
			zapLogger.Info("journal updated",
				zap.String("path", cfg.Journal.Path),
				zap.Int("complete", stats.Complete),
				zap.Int("skipped", stats.Skipped),
				zap.Int("failed", stats.Failed),
				zap.Int("interrupted", stats.Interrupted))
		}
	}

	code := exitCode(err)
	switch code {
	case exitInterrupted:
		zapLogger.Warn("stopped by user")
	case exitError:
		zapLogger.Error("download run failed", zap.Error(err))
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitInterrupted
	default:
		return exitError
	}
}
