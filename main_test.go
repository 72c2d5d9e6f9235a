package main

import (
	"bytes"
	"flag"
	"testing"
	"time"

	"github.com/VickramC07/BikeGuard/internal/ai"
	"github.com/VickramC07/BikeGuard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	opts, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Empty(t, opts.configPath)
	assert.Nil(t, opts.overrides.Source)
	assert.Nil(t, opts.overrides.Model)
	assert.Nil(t, opts.overrides.Confidence)
	assert.Nil(t, opts.overrides.Classes)
	assert.Nil(t, opts.overrides.NoFPS)
	assert.Nil(t, opts.overrides.Mode)
}

func TestParseFlags_SetFlagsBecomeOverrides(t *testing.T) {
	opts, err := parseFlags([]string{
		"-c", "/tmp/bg.yaml",
		"-source", "rtsp://cam/stream",
		"-confidence", "0.7",
		"-classes", "0,2",
		"-no-fps",
		"-mode", "stream",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/bg.yaml", opts.configPath)
	require.NotNil(t, opts.overrides.Source)
	assert.Equal(t, "rtsp://cam/stream", *opts.overrides.Source)
	require.NotNil(t, opts.overrides.Confidence)
	assert.Equal(t, 0.7, *opts.overrides.Confidence)
	require.NotNil(t, opts.overrides.Classes)
	assert.Equal(t, "0,2", *opts.overrides.Classes)
	require.NotNil(t, opts.overrides.NoFPS)
	assert.True(t, *opts.overrides.NoFPS)
	require.NotNil(t, opts.overrides.Mode)
	assert.Equal(t, "stream", *opts.overrides.Mode)
	assert.Nil(t, opts.overrides.Model)

	cfg := config.Default()
	require.NoError(t, opts.overrides.Apply(cfg))
	assert.Equal(t, "rtsp://cam/stream", cfg.Source.Spec)
	assert.Equal(t, []int{0, 2}, cfg.Detector.Classes)
	assert.True(t, cfg.Annotate.DisableFPS)
	assert.Equal(t, config.ModeStream, cfg.Pipeline.Mode)
}

func TestParseFlags_Invalid(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseFlags([]string{"-confidence", "high"}, &stderr)
	assert.Error(t, err)
	assert.NotEmpty(t, stderr.String())

	_, err = parseFlags([]string{"-h"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestLoadConfig_BadClasses(t *testing.T) {
	t.Chdir(t.TempDir())
	opts, err := parseFlags([]string{"-classes", "person"}, &bytes.Buffer{})
	require.NoError(t, err)

	_, err = loadConfig(opts)
	assert.ErrorContains(t, err, "invalid command line")
}

func TestPrintBanner(t *testing.T) {
	cfg := config.Default()
	var out bytes.Buffer
	printBanner(&out, cfg, ai.NewClassSet(cfg.Detector.Classes...))
	assert.Contains(t, out.String(), "q / ESC")
	assert.Contains(t, out.String(), "person")

	cfg.Pipeline.Mode = config.ModeStream
	out.Reset()
	printBanner(&out, cfg, ai.NewClassSet(cfg.Detector.Classes...))
	assert.Contains(t, out.String(), "/ws/stream")
}

func TestLoopConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Detector.Timeout = 2 * time.Second
	cfg.Pipeline.MaxReadFailures = 7

	lc := loopConfig(cfg)
	assert.Equal(t, 2*time.Second, lc.InferenceTimeout)
	assert.Equal(t, 7, lc.MaxReadFailures)
	assert.Equal(t, cfg.Pipeline.Interval, lc.Interval)
	assert.Equal(t, cfg.Pipeline.FPSWindow, lc.FPSWindow)
}
