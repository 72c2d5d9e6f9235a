package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the configuration with detailed error messages
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	// Source
	if strings.TrimSpace(c.Source.Spec) == "" {
		errors = append(errors, "source.spec is required")
	}
	if c.Source.Backend != BackendFFmpeg && c.Source.Backend != BackendOpenCV {
		errors = append(errors, fmt.Sprintf("invalid source.backend: %s (must be: ffmpeg or opencv)", c.Source.Backend))
	}
	if c.Source.Width < 0 || c.Source.Height < 0 {
		errors = append(errors, fmt.Sprintf("source.width and source.height must be >= 0, got: %dx%d", c.Source.Width, c.Source.Height))
	}
	if (c.Source.Width == 0) != (c.Source.Height == 0) {
		errors = append(errors, "source.width and source.height must be set together")
	}
	if c.Source.FPS < 0 {
		errors = append(errors, fmt.Sprintf("source.fps must be >= 0, got: %d", c.Source.FPS))
	}

	// Detector
	if c.Detector.ServiceURL == "" {
		errors = append(errors, "detector.service_url is required")
	} else if u, err := url.Parse(c.Detector.ServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid detector.service_url: %s", c.Detector.ServiceURL))
	}
	if c.Detector.Model == "" {
		errors = append(errors, "detector.model is required")
	}
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		errors = append(errors, fmt.Sprintf("detector.confidence_threshold must be between 0 and 1, got: %.2f", c.Detector.ConfidenceThreshold))
	}
	if len(c.Detector.Classes) == 0 {
		errors = append(errors, "detector.classes must list at least one class id")
	}
	for _, id := range c.Detector.Classes {
		if id < 0 {
			errors = append(errors, fmt.Sprintf("detector.classes contains negative class id: %d", id))
		}
	}
	if c.Detector.Timeout < 0 {
		errors = append(errors, fmt.Sprintf("detector.timeout must be >= 0, got: %v", c.Detector.Timeout))
	}

	// Pipeline
	if c.Pipeline.Mode != ModeDisplay && c.Pipeline.Mode != ModeStream {
		errors = append(errors, fmt.Sprintf("invalid pipeline.mode: %s (must be: display or stream)", c.Pipeline.Mode))
	}
	if c.Pipeline.Interval < 0 {
		errors = append(errors, fmt.Sprintf("pipeline.interval must be >= 0, got: %v", c.Pipeline.Interval))
	}
	if c.Pipeline.ReadBackoff < 0 {
		errors = append(errors, fmt.Sprintf("pipeline.read_backoff must be >= 0, got: %v", c.Pipeline.ReadBackoff))
	}
	if c.Pipeline.MaxReadFailures < 0 {
		errors = append(errors, fmt.Sprintf("pipeline.max_read_failures must be >= 0, got: %d", c.Pipeline.MaxReadFailures))
	}
	if c.Pipeline.FPSWindow <= 0 {
		errors = append(errors, fmt.Sprintf("pipeline.fps_window must be > 0, got: %d", c.Pipeline.FPSWindow))
	}

	// Sinks
	for name, q := range map[string]int{
		"detector.jpeg_quality": c.Detector.JPEGQuality,
		"display.jpeg_quality":  c.Display.JPEGQuality,
		"stream.jpeg_quality":   c.Stream.JPEGQuality,
	} {
		if q < 1 || q > 100 {
			errors = append(errors, fmt.Sprintf("%s must be between 1 and 100, got: %d", name, q))
		}
	}
	if c.Display.MaxDiskUsage < 0 || c.Display.MaxDiskUsage > 100 {
		errors = append(errors, fmt.Sprintf("display.max_disk_usage must be between 0 and 100, got %.1f", c.Display.MaxDiskUsage))
	}
	if c.Display.OutputDir == "" {
		errors = append(errors, "display.output_dir is required")
	}
	if c.Stream.SendTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("stream.send_timeout must be > 0, got: %v", c.Stream.SendTimeout))
	}
	if c.Stream.PingInterval <= 0 {
		errors = append(errors, fmt.Sprintf("stream.ping_interval must be > 0, got: %v", c.Stream.PingInterval))
	}

	// Web
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errors = append(errors, fmt.Sprintf("web.port must be between 1 and 65535, got: %d", c.Web.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
