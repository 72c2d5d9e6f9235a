package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Pipeline modes
const (
	ModeDisplay = "display"
	ModeStream  = "stream"
)

// Source backends
const (
	BackendFFmpeg = "ffmpeg"
	BackendOpenCV = "opencv"
)

// Config represents the application configuration
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Detector DetectorConfig `yaml:"detector"`
	Annotate AnnotateConfig `yaml:"annotate"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Display  DisplayConfig  `yaml:"display"`
	Stream   StreamConfig   `yaml:"stream"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// SourceConfig selects the video source and the backend used to read it
type SourceConfig struct {
	Spec       string `yaml:"spec"`    // device index, file path or stream URL
	Backend    string `yaml:"backend"` // "ffmpeg" or "opencv"
	FFmpegPath string `yaml:"ffmpeg_path"`
	Realtime   bool   `yaml:"realtime"` // read files at native frame rate (ffmpeg -re)
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FPS        int    `yaml:"fps"`
}

// DetectorConfig contains inference service configuration
type DetectorConfig struct {
	ServiceURL          string        `yaml:"service_url"`
	Model               string        `yaml:"model"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	Classes             []int         `yaml:"classes"`
	Timeout             time.Duration `yaml:"timeout"` // 0 means no timeout
	JPEGQuality         int           `yaml:"jpeg_quality"`
}

// AnnotateConfig controls the overlay drawn on each frame
type AnnotateConfig struct {
	DisableFPS bool `yaml:"disable_fps"`
	// InstanceNumbers numbers labels per class ("person 2: 0.91").
	// Unset means on for stream mode and off for display mode.
	InstanceNumbers *bool `yaml:"instance_numbers,omitempty"`
}

// PipelineConfig contains frame loop configuration
type PipelineConfig struct {
	Mode            string        `yaml:"mode"`
	Interval        time.Duration `yaml:"interval"` // target tick interval, 0 disables pacing
	ReadBackoff     time.Duration `yaml:"read_backoff"`
	MaxReadFailures int           `yaml:"max_read_failures"` // 0 means unlimited for live sources
	FPSWindow       int           `yaml:"fps_window"`
}

// DisplayConfig contains local display configuration
type DisplayConfig struct {
	WindowName   string  `yaml:"window_name"`
	OutputDir    string  `yaml:"output_dir"`
	JPEGQuality  int     `yaml:"jpeg_quality"`
	MaxDiskUsage float64 `yaml:"max_disk_usage"` // percent; saves are refused above it
}

// StreamConfig contains stream fan-out configuration
type StreamConfig struct {
	JPEGQuality  int           `yaml:"jpeg_quality"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// WebConfig contains web server configuration
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Address returns the host:port the web server listens on
func (w WebConfig) Address() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// InstanceNumbering reports whether labels carry per-class instance numbers
func (c *Config) InstanceNumbering() bool {
	if c.Annotate.InstanceNumbers != nil {
		return *c.Annotate.InstanceNumbers
	}
	return c.Pipeline.Mode == ModeStream
}

// DefaultConfidenceThreshold applies when detector.confidence_threshold is absent
const DefaultConfidenceThreshold = 0.5

// newConfig presets the fields whose zero value is a valid setting, so that
// decoding only overwrites them when the key is present
func newConfig() *Config {
	return &Config{Detector: DetectorConfig{ConfidenceThreshold: DefaultConfidenceThreshold}}
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := newConfig()
	cfg.setDefaults()
	return cfg
}

// Load reads and parses the configuration file.
// An empty path falls back to well-known locations and then to defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = findDefaultConfigPath()
		if configPath == "" {
			return Default(), nil
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg := newConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.setDefaults()

	return cfg, nil
}

// findDefaultConfigPath returns the first existing well-known config file, or ""
func findDefaultConfigPath() string {
	paths := []string{
		"./config/bikeguard.yaml",
		"./bikeguard.yaml",
		"/etc/bikeguard/config.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Source.Spec == "" {
		c.Source.Spec = "0"
	}
	if c.Source.Backend == "" {
		c.Source.Backend = BackendFFmpeg
	}
	if c.Source.FFmpegPath == "" {
		c.Source.FFmpegPath = "ffmpeg"
	}

	if c.Detector.ServiceURL == "" {
		c.Detector.ServiceURL = "http://localhost:8080"
	}
	if c.Detector.Model == "" {
		c.Detector.Model = "yolov8n.pt"
	}
	if len(c.Detector.Classes) == 0 {
		c.Detector.Classes = []int{0, 1}
	}
	if c.Detector.JPEGQuality == 0 {
		c.Detector.JPEGQuality = 90
	}

	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = ModeDisplay
	}
	if c.Pipeline.Interval == 0 && c.Pipeline.Mode == ModeStream {
		c.Pipeline.Interval = 30 * time.Millisecond
	}
	if c.Pipeline.ReadBackoff == 0 {
		c.Pipeline.ReadBackoff = 100 * time.Millisecond
	}
	if c.Pipeline.FPSWindow == 0 {
		c.Pipeline.FPSWindow = 30
	}

	if c.Display.WindowName == "" {
		c.Display.WindowName = "YOLOv8 Object Detection"
	}
	if c.Display.OutputDir == "" {
		c.Display.OutputDir = "."
	}
	if c.Display.JPEGQuality == 0 {
		c.Display.JPEGQuality = 95
	}
	if c.Display.MaxDiskUsage == 0 {
		c.Display.MaxDiskUsage = 95
	}

	if c.Stream.JPEGQuality == 0 {
		c.Stream.JPEGQuality = 80
	}
	if c.Stream.SendTimeout == 0 {
		c.Stream.SendTimeout = 250 * time.Millisecond
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = 30 * time.Second
	}

	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8765
	}
}
