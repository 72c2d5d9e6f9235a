package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/VickramC07/BikeGuard/internal/ai"
	"github.com/VickramC07/BikeGuard/internal/annotate"
	"github.com/VickramC07/BikeGuard/internal/config"
	"github.com/VickramC07/BikeGuard/internal/display"
	"github.com/VickramC07/BikeGuard/internal/health"
	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/opencv"
	"github.com/VickramC07/BikeGuard/internal/pipeline"
	"github.com/VickramC07/BikeGuard/internal/service"
	"github.com/VickramC07/BikeGuard/internal/storage"
	"github.com/VickramC07/BikeGuard/internal/stream"
	"github.com/VickramC07/BikeGuard/internal/video"
	"github.com/VickramC07/BikeGuard/internal/web"
)

const (
	shutdownTimeout = 10 * time.Second
	staleFrameAfter = 5 * time.Second
)

// components shared by both output modes
type components struct {
	spec      video.Spec
	classes   ai.ClassSet
	opener    video.Opener
	client    *ai.Client
	annotator *annotate.Annotator
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, out io.Writer) error {
	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}

	printBanner(out, cfg, c.classes)

	switch cfg.Pipeline.Mode {
	case config.ModeStream:
		return runStream(ctx, cfg, c, log)
	default:
		return runDisplay(ctx, cfg, c, log)
	}
}

func buildComponents(cfg *config.Config, log *logger.Logger) (*components, error) {
	opener, err := newOpener(cfg, log)
	if err != nil {
		return nil, err
	}

	classes := ai.NewClassSet(cfg.Detector.Classes...)
	client := ai.NewClient(ai.ClientConfig{
		ServiceURL:          cfg.Detector.ServiceURL,
		Model:               cfg.Detector.Model,
		ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
		Timeout:             cfg.Detector.Timeout,
		JPEGQuality:         cfg.Detector.JPEGQuality,
	}, log.Named("ai"))

	return &components{
		spec:    video.ParseSpec(cfg.Source.Spec),
		classes: classes,
		opener:  opener,
		client:  client,
		annotator: annotate.New(annotate.Options{
			Threshold:       cfg.Detector.ConfidenceThreshold,
			Classes:         classes,
			InstanceNumbers: cfg.InstanceNumbering(),
			ShowFPS:         !cfg.Annotate.DisableFPS,
		}),
	}, nil
}

func newOpener(cfg *config.Config, log *logger.Logger) (video.Opener, error) {
	switch cfg.Source.Backend {
	case config.BackendOpenCV:
		if !opencv.Available {
			return nil, fmt.Errorf("source backend %q: %w", cfg.Source.Backend, opencv.ErrUnavailable)
		}
		return opencv.NewCaptureOpener(opencv.CaptureOptions{
			Width:  cfg.Source.Width,
			Height: cfg.Source.Height,
			FPS:    cfg.Source.FPS,
		}, log.Named("opencv")), nil
	default:
		opener, err := video.NewFFmpegOpener(video.FFmpegOptions{
			Path:     cfg.Source.FFmpegPath,
			Realtime: cfg.Source.Realtime,
			Width:    cfg.Source.Width,
			Height:   cfg.Source.Height,
			FPS:      cfg.Source.FPS,
		}, log.Named("video"))
		if err != nil {
			return nil, err
		}
		return opener, nil
	}
}

func loopConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Interval:         cfg.Pipeline.Interval,
		ReadBackoff:      cfg.Pipeline.ReadBackoff,
		MaxReadFailures:  cfg.Pipeline.MaxReadFailures,
		FPSWindow:        cfg.Pipeline.FPSWindow,
		InferenceTimeout: cfg.Detector.Timeout,
	}
}

func runDisplay(ctx context.Context, cfg *config.Config, c *components, log *logger.Logger) error {
	window, err := opencv.NewWindow(cfg.Display.WindowName)
	if err != nil {
		return fmt.Errorf("failed to open display window: %w", err)
	}

	saver, err := storage.NewFrameSaver(storage.SaverConfig{
		OutputDir:    cfg.Display.OutputDir,
		Quality:      cfg.Display.JPEGQuality,
		MaxDiskUsage: cfg.Display.MaxDiskUsage,
	}, log.Named("storage"))
	if err != nil {
		return multierr.Append(err, window.Close())
	}

	if check := health.NewStorageChecker(saver.Dir(), saver.Monitor()).Check(ctx); check.Status != health.StatusHealthy {
		log.Warn("Saving frames may fail", "dir", saver.Dir(), "reason", check.Message)
	}

	loop := pipeline.New(loopConfig(cfg), pipeline.Deps{
		Opener:    c.opener,
		Spec:      c.spec,
		Detector:  c.client,
		Classes:   c.classes,
		Annotator: c.annotator,
		Sink:      display.NewSink(window, saver, display.Config{}, log),
		Logger:    log,
	})

	return loop.Run(ctx)
}

func runStream(ctx context.Context, cfg *config.Config, c *components, log *logger.Logger) error {
	hub := stream.NewHub(stream.HubConfig{SendTimeout: cfg.Stream.SendTimeout}, log)
	sink := stream.NewSink(hub, stream.NewJPEGEncoder(cfg.Stream.JPEGQuality), log)

	loop := pipeline.New(loopConfig(cfg), pipeline.Deps{
		Opener:    c.opener,
		Spec:      c.spec,
		Detector:  c.client,
		Classes:   c.classes,
		Annotator: c.annotator,
		Sink:      sink,
		Logger:    log,
	})

	svcMgr := service.NewManager(log)
	healthMgr := health.NewManager(log, svcMgr)
	healthMgr.RegisterChecker(health.NewLoopChecker(loop, staleFrameAfter))
	healthMgr.RegisterChecker(health.NewInferenceChecker(c.client))

	server := web.NewServer(&cfg.Web, web.Deps{
		Sink:   sink,
		Loop:   loop,
		Health: healthMgr,
		WS:     stream.WSConfig{PingInterval: cfg.Stream.PingInterval},
	}, log)
	server.SetVersion(version)
	svcMgr.Register(server)

	if err := svcMgr.Start(ctx); err != nil {
		return multierr.Append(err, sink.Close())
	}

	runErr := loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error during shutdown", "error", err)
	}

	return runErr
}

func printBanner(out io.Writer, cfg *config.Config, classes ai.ClassSet) {
	fmt.Fprintf(out, "BikeGuard %s\n", version)
	fmt.Fprintf(out, "Source: %s\n", video.ParseSpec(cfg.Source.Spec))
	fmt.Fprintf(out, "Detecting: %s (confidence >= %.2f)\n", strings.Join(classes.Names(), ", "), cfg.Detector.ConfidenceThreshold)

	switch cfg.Pipeline.Mode {
	case config.ModeStream:
		addr := cfg.Web.Address()
		fmt.Fprintf(out, "Streaming on ws://%s/ws/stream and http://%s/api/stream.mjpeg\n", addr, addr)
		fmt.Fprintln(out, "Press Ctrl+C to stop")
	default:
		fmt.Fprintln(out, "Controls:")
		fmt.Fprintln(out, "  q / ESC  quit")
		fmt.Fprintln(out, "  s        save the current frame")
	}
}
