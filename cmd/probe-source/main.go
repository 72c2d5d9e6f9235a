// Command probe-source opens a video source, reads a few frames and
// optionally runs them through the inference service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/VickramC07/BikeGuard/internal/ai"
	"github.com/VickramC07/BikeGuard/internal/config"
	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/video"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		source     = flag.String("source", "", "Video source (overrides config)")
		frames     = flag.Int("frames", 10, "Number of frames to read")
		infer      = flag.Bool("infer", false, "Send each frame to the inference service")
		list       = flag.Bool("list", false, "List local capture devices and exit")
	)
	flag.Parse()

	if *list {
		if err := listDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.ApplyEnv(cfg)
	if *source != "" {
		cfg.Source.Spec = *source
	}

	log, err := logger.New(logger.LogConfig{Level: "info", Format: "text"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := probe(ctx, cfg, *frames, *infer, log); err != nil {
		fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
		os.Exit(1)
	}
}

func listDevices() error {
	devices, err := video.NewDeviceScanner().Scan()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%d\t%s\t%s\n", d.Index, d.Path, d.Name)
	}
	return nil
}

func probe(ctx context.Context, cfg *config.Config, n int, infer bool, log *logger.Logger) error {
	spec := video.ParseSpec(cfg.Source.Spec)
	fmt.Printf("Source: %s (%s)\n", spec, spec.Kind)

	if scheme := spec.Scheme(); scheme == "rtsp" || scheme == "rtsps" {
		medias, err := video.DescribeRTSP(spec.Target, 5*time.Second)
		if err != nil {
			return err
		}
		for _, m := range medias {
			fmt.Printf("  track %s: %s\n", m.Type, strings.Join(m.Codecs, ", "))
		}
	}

	opener, err := video.NewFFmpegOpener(video.FFmpegOptions{
		Path:     cfg.Source.FFmpegPath,
		Realtime: cfg.Source.Realtime,
		Width:    cfg.Source.Width,
		Height:   cfg.Source.Height,
		FPS:      cfg.Source.FPS,
	}, log)
	if err != nil {
		return err
	}

	var client *ai.Client
	classes := ai.NewClassSet(cfg.Detector.Classes...)
	if infer {
		client = ai.NewClient(ai.ClientConfig{
			ServiceURL:          cfg.Detector.ServiceURL,
			Model:               cfg.Detector.Model,
			ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
			Timeout:             cfg.Detector.Timeout,
			JPEGQuality:         cfg.Detector.JPEGQuality,
		}, log)
		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("inference service at %s: %w", client.ServiceURL(), err)
		}
		fmt.Printf("Inference service %s is healthy\n", client.ServiceURL())
	}

	src, err := opener.Open(ctx, spec)
	if err != nil {
		return err
	}
	defer src.Close()

	start := time.Now()
	read := 0
	for read < n {
		frame, err := src.Next(ctx)
		if errors.Is(err, video.ErrEndOfStream) {
			fmt.Println("End of stream")
			break
		}
		if err != nil {
			return err
		}
		read++

		b := frame.Image.Bounds()
		fmt.Printf("[Frame %d] %dx%d\n", frame.Seq, b.Dx(), b.Dy())

		if client == nil {
			continue
		}
		detections, err := client.Infer(ctx, frame, classes)
		if err != nil {
			fmt.Printf("  inference failed: %v\n", err)
			continue
		}
		for _, d := range detections {
			fmt.Printf("  %s %.2f\n", ai.ClassName(d.ClassID), d.Confidence)
		}
	}

	elapsed := time.Since(start)
	if read > 0 {
		fmt.Printf("Read %d frames in %s (%.1f fps)\n", read, elapsed.Round(time.Millisecond), float64(read)/elapsed.Seconds())
	}
	if client != nil {
		stats := client.Stats()
		fmt.Printf("Inference: %d calls, %d failures, %.1fms average\n", stats.TotalInferences, stats.Failures, stats.AverageTimeMs)
	}
	return nil
}
