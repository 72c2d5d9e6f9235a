package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegOptions controls how ffmpeg decodes a source
type FFmpegOptions struct {
	Path     string // ffmpeg executable, looked up in PATH when empty
	Realtime bool   // read files at native frame rate (-re)
	Width    int    // output size, 0 keeps the source size
	Height   int
	FPS      int // output frame rate, 0 keeps the source rate
	Quality  int // mjpeg -q:v, 2 (best) to 31
}

// DetectFFmpeg finds an ffmpeg executable, trying preferred first
func DetectFFmpeg(preferred string) (string, error) {
	paths := []string{"ffmpeg", "/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	if preferred != "" {
		paths = append([]string{preferred}, paths...)
	}

	for _, path := range paths {
		if resolved, err := exec.LookPath(path); err == nil {
			return resolved, nil
		}
	}

	return "", fmt.Errorf("ffmpeg not found in PATH or common locations")
}

// FFmpegVersion returns the first line of `ffmpeg -version`
func FFmpegVersion(ctx context.Context, path string) (string, error) {
	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0]), nil
	}

	return "unknown", nil
}

// BuildArgs returns the ffmpeg arguments that decode spec into an MJPEG
// stream on stdout
func BuildArgs(spec Spec, opts FFmpegOptions) []string {
	input := ffmpeg.KwArgs{}
	output := ffmpeg.KwArgs{
		"f":      "image2pipe",
		"vcodec": "mjpeg",
	}

	quality := opts.Quality
	if quality <= 0 || quality > 31 {
		quality = 3
	}
	output["q:v"] = quality

	var target string
	switch spec.Kind {
	case KindDevice:
		target = spec.DevicePath()
		input["f"] = "v4l2"
		if opts.Width > 0 && opts.Height > 0 {
			input["video_size"] = fmt.Sprintf("%dx%d", opts.Width, opts.Height)
		}
		if opts.FPS > 0 {
			input["framerate"] = opts.FPS
		}
	case KindNetwork:
		target = spec.Target
		if spec.Scheme() == "rtsp" {
			input["rtsp_transport"] = "tcp"
		}
	default:
		target = spec.Target
		if opts.Realtime {
			input["re"] = ""
		}
	}

	if spec.Kind != KindDevice {
		if opts.Width > 0 && opts.Height > 0 {
			output["s"] = fmt.Sprintf("%dx%d", opts.Width, opts.Height)
		}
		if opts.FPS > 0 {
			output["r"] = opts.FPS
		}
	}

	return ffmpeg.Input(target, input).
		Output("pipe:", output).
		GlobalArgs("-hide_banner", "-loglevel", "error", "-nostdin").
		GetArgs()
}
