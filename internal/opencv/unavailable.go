//go:build !opencv

package opencv

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/video"
)

// Available reports whether the binary was built with OpenCV support
const Available = false

type CaptureOptions struct {
	Width  int
	Height int
	FPS    int
}

type CaptureOpener struct{}

func NewCaptureOpener(CaptureOptions, *logger.Logger) *CaptureOpener {
	return &CaptureOpener{}
}

func (o *CaptureOpener) Open(context.Context, video.Spec) (video.Source, error) {
	return nil, errors.Join(video.ErrSourceUnavailable, ErrUnavailable)
}

type Window struct{}

func NewWindow(string) (*Window, error) {
	return nil, ErrUnavailable
}

func (w *Window) Show(image.Image) error    { return ErrUnavailable }
func (w *Window) PollKey(time.Duration) int { return -1 }
func (w *Window) Close() error              { return nil }
