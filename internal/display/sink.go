// Package display renders annotated frames in a local window and handles
// the single-key quit and save commands.
package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/pipeline"
	"github.com/VickramC07/BikeGuard/internal/video"
)

// Key codes understood by the sink
const (
	KeyNone   = -1
	KeyEscape = 27
	KeyQuit   = 'q'
	KeySave   = 's'
)

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("display sink closed")

// Window is an on-screen surface
type Window interface {
	Show(img image.Image) error
	// PollKey waits up to wait for a key press and returns KeyNone if there was none
	PollKey(wait time.Duration) int
	Close() error
}

// Saver persists a frame and returns where it was written
type Saver interface {
	Save(frame *video.Frame) (string, error)
}

// Config contains display sink configuration
type Config struct {
	PollWait time.Duration // default 1ms
	Out      io.Writer     // user-facing confirmations, default stdout
}

// Sink renders each frame and polls the keyboard once per tick
type Sink struct {
	logger   *logger.Logger
	window   Window
	saver    Saver
	pollWait time.Duration
	out      io.Writer

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewSink creates a display sink; saver may be nil to disable saving
func NewSink(window Window, saver Saver, cfg Config, log *logger.Logger) *Sink {
	if cfg.PollWait <= 0 {
		cfg.PollWait = time.Millisecond
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	return &Sink{
		logger:   log.Named("display"),
		window:   window,
		saver:    saver,
		pollWait: cfg.PollWait,
		out:      cfg.Out,
	}
}

// Dispatch shows frame, then handles at most one key press
func (s *Sink) Dispatch(_ context.Context, frame *video.Frame) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := s.window.Show(frame.Image); err != nil {
		return fmt.Errorf("failed to show frame %d: %w", frame.Seq, err)
	}

	switch key := s.window.PollKey(s.pollWait); key {
	case KeyQuit, KeyEscape:
		s.logger.Info("Quit key pressed", "frame", frame.Seq)
		return pipeline.ErrStopRequested
	case KeySave:
		return s.save(frame)
	}
	return nil
}

func (s *Sink) save(frame *video.Frame) error {
	if s.saver == nil {
		s.logger.Warn("Save requested but no output directory is configured")
		return nil
	}

	path, err := s.saver.Save(frame)
	if err != nil {
		return fmt.Errorf("failed to save frame %d: %w", frame.Seq, err)
	}
	fmt.Fprintf(s.out, "Frame saved as %s\n", path)
	return nil
}

// Close destroys the window; later calls return the first result
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.closeErr = s.window.Close()
		s.logger.Debug("Display window closed")
	})
	return s.closeErr
}
