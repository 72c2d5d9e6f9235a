package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/VickramC07/BikeGuard/internal/config"
	"github.com/VickramC07/BikeGuard/internal/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

type cliOptions struct {
	configPath string
	overrides  config.Overrides
}

// parseFlags parses args. Only flags given on the command line become overrides.
func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	fs := flag.NewFlagSet("bikeguard", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts       cliOptions
		source     string
		model      string
		confidence float64
		classes    string
		noFPS      bool
		mode       string
	)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (short)")
	fs.StringVar(&source, "source", "0", "Video source: camera index, file path or stream URL")
	fs.StringVar(&model, "model", "yolov8n.pt", "Model reference passed to the inference service")
	fs.Float64Var(&confidence, "confidence", 0.5, "Minimum detection confidence")
	fs.StringVar(&classes, "classes", "0,1", "Target class ids, comma separated")
	fs.BoolVar(&noFPS, "no-fps", false, "Hide the FPS counter")
	fs.StringVar(&mode, "mode", config.ModeDisplay, "Output mode: display or stream")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			opts.overrides.Source = &source
		case "model":
			opts.overrides.Model = &model
		case "confidence":
			opts.overrides.Confidence = &confidence
		case "classes":
			opts.overrides.Classes = &classes
		case "no-fps":
			opts.overrides.NoFPS = &noFPS
		case "mode":
			opts.overrides.Mode = &mode
		}
	})

	return &opts, nil
}

func loadConfig(opts *cliOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg)
	if err := opts.overrides.Apply(cfg); err != nil {
		return nil, fmt.Errorf("invalid command line: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting BikeGuard",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"mode", cfg.Pipeline.Mode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdout); err != nil {
		log.Error("BikeGuard stopped with error", "error", err)
		log.Sync()
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}
