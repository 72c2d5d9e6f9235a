package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func createTestConfig(t *testing.T, configPath string, cfg *Config) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0", cfg.Source.Spec)
	assert.Equal(t, BackendFFmpeg, cfg.Source.Backend)
	assert.Equal(t, 0.5, cfg.Detector.ConfidenceThreshold)
	assert.Equal(t, []int{0, 1}, cfg.Detector.Classes)
	assert.Equal(t, time.Duration(0), cfg.Detector.Timeout)
	assert.Equal(t, ModeDisplay, cfg.Pipeline.Mode)
	assert.Equal(t, time.Duration(0), cfg.Pipeline.Interval)
	assert.Equal(t, 100*time.Millisecond, cfg.Pipeline.ReadBackoff)
	assert.Equal(t, 30, cfg.Pipeline.FPSWindow)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.SendTimeout)
	assert.Equal(t, "0.0.0.0:8765", cfg.Web.Address())
	assert.False(t, cfg.InstanceNumbering())
	require.NoError(t, cfg.Validate())
}

func TestLoad_StreamModeDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlText := `
source:
  spec: rtsp://camera.local/stream
detector:
  service_url: http://inference:9000
  classes: [1, 2, 3]
  timeout: 2s
pipeline:
  mode: stream
stream:
  send_timeout: 100ms
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlText), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "rtsp://camera.local/stream", cfg.Source.Spec)
	assert.Equal(t, []int{1, 2, 3}, cfg.Detector.Classes)
	assert.Equal(t, 2*time.Second, cfg.Detector.Timeout)
	assert.Equal(t, 30*time.Millisecond, cfg.Pipeline.Interval)
	assert.Equal(t, 100*time.Millisecond, cfg.Stream.SendTimeout)
	assert.True(t, cfg.InstanceNumbering())
	require.NoError(t, cfg.Validate())
}

func TestLoad_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := Default()
	cfg.Display.OutputDir = tmpDir
	off := false
	cfg.Annotate.InstanceNumbers = &off
	cfg.Pipeline.Mode = ModeStream
	createTestConfig(t, configPath, cfg)

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, tmpDir, loaded.Display.OutputDir)
	assert.False(t, loaded.InstanceNumbering())
}

func TestLoad_ConfidenceThreshold(t *testing.T) {
	tmpDir := t.TempDir()

	zeroPath := filepath.Join(tmpDir, "zero.yaml")
	require.NoError(t, os.WriteFile(zeroPath, []byte("detector:\n  confidence_threshold: 0\n"), 0644))
	cfg, err := Load(zeroPath)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Detector.ConfidenceThreshold)
	require.NoError(t, cfg.Validate())

	absentPath := filepath.Join(tmpDir, "absent.yaml")
	require.NoError(t, os.WriteFile(absentPath, []byte("detector:\n  model: custom.pt\n"), 0644))
	cfg, err = Load(absentPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfidenceThreshold, cfg.Detector.ConfidenceThreshold)

	// the command line and the file agree on an explicit zero
	zero := 0.0
	fromFlag := Default()
	require.NoError(t, Overrides{Confidence: &zero}.Apply(fromFlag))
	assert.Equal(t, 0.0, fromFlag.Detector.ConfidenceThreshold)
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("source: [unclosed"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse configuration")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Source.Backend = "gstreamer"
	cfg.Detector.ConfidenceThreshold = 1.5
	cfg.Detector.Classes = []int{0, -3}
	cfg.Pipeline.Mode = "headless"
	cfg.Stream.JPEGQuality = 101
	cfg.Web.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "source.backend")
	assert.Contains(t, msg, "confidence_threshold")
	assert.Contains(t, msg, "negative class id: -3")
	assert.Contains(t, msg, "pipeline.mode")
	assert.Contains(t, msg, "stream.jpeg_quality")
	assert.Contains(t, msg, "web.port")
}

func TestValidate_ServiceURL(t *testing.T) {
	cfg := Default()
	cfg.Detector.ServiceURL = "localhost"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector.service_url")
}

func TestOverrides_Apply(t *testing.T) {
	cfg := Default()

	source := "clip.mp4"
	model := "custom.pt"
	conf := 0.9
	classes := "0, 2"
	noFPS := true
	mode := ModeStream

	err := Overrides{
		Source:     &source,
		Model:      &model,
		Confidence: &conf,
		Classes:    &classes,
		NoFPS:      &noFPS,
		Mode:       &mode,
	}.Apply(cfg)
	require.NoError(t, err)

	assert.Equal(t, "clip.mp4", cfg.Source.Spec)
	assert.Equal(t, "custom.pt", cfg.Detector.Model)
	assert.Equal(t, 0.9, cfg.Detector.ConfidenceThreshold)
	assert.Equal(t, []int{0, 2}, cfg.Detector.Classes)
	assert.True(t, cfg.Annotate.DisableFPS)
	assert.Equal(t, 30*time.Millisecond, cfg.Pipeline.Interval)
}

func TestOverrides_BadClasses(t *testing.T) {
	cfg := Default()
	bad := "person,bicycle"
	err := Overrides{Classes: &bad}.Apply(cfg)
	require.Error(t, err)
	assert.Equal(t, []int{0, 1}, cfg.Detector.Classes)
}

func TestParseClassIDs(t *testing.T) {
	ids, err := ParseClassIDs("0 1,2\t3")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, ids)

	_, err = ParseClassIDs(" , ")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BIKEGUARD_SOURCE", "1")
	t.Setenv("BIKEGUARD_CLASSES", "3")
	t.Setenv("BIKEGUARD_SEND_TIMEOUT", "1s")
	t.Setenv("BIKEGUARD_PORT", "not-a-port")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Default()
	ApplyEnv(cfg)

	assert.Equal(t, "1", cfg.Source.Spec)
	assert.Equal(t, []int{3}, cfg.Detector.Classes)
	assert.Equal(t, time.Second, cfg.Stream.SendTimeout)
	assert.Equal(t, 8765, cfg.Web.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}
