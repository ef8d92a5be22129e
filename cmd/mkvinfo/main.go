package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/mkvbridge/internal/config"
	"github.com/woxQAQ/mkvbridge/internal/report"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	backend := flag.String("backend", "", "Parser backend (ebml or wasm), overrides the configuration")
	packets := flag.Bool("packets", false, "Read every packet and count them per track")
	parallel := flag.Int("j", 4, "Number of files inspected concurrently")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.mkv...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Backend = *backend
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid backend: %v\n", err)
			os.Exit(2)
		}
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Debug("Starting mkvinfo",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
		zap.String("backend", cfg.Backend),
	)

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	inspector, err := report.NewInspector(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to prepare parser backend", zap.Error(err))
	}
	defer inspector.Close(context.Background())

	files, err := inspector.InspectAll(ctx, flag.Args(), report.Options{
		CountPackets: *packets,
		Parallel:     *parallel,
	})
	if err != nil {
		logger.Error("Inspection aborted", zap.Error(err))
		return
	}

	if err := report.Write(os.Stdout, files); err != nil {
		logger.Error("Failed to write report", zap.Error(err))
	}
}

// newLogger logs to stderr so stdout carries only the report.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
