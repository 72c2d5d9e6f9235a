// Package pipeline drives frames from a source through detection and
// annotation into a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VickramC07/BikeGuard/internal/ai"
	"github.com/VickramC07/BikeGuard/internal/annotate"
	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/video"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

var (
	// ErrAlreadyRun is returned when Run is called on a loop that has run before
	ErrAlreadyRun = errors.New("frame loop already ran")
	// ErrStopRequested is returned by a sink when the user asked to quit
	ErrStopRequested = errors.New("stop requested")
)

// Sink receives every annotated frame
type Sink interface {
	Dispatch(ctx context.Context, frame *video.Frame) error
	Close() error
}

// Annotator draws detections onto a copy of a frame
type Annotator interface {
	DrawWithFPS(frame *video.Frame, detections []ai.Detection, fps float64) (*video.Frame, []annotate.Label)
}

// Config contains frame loop settings
type Config struct {
	Interval         time.Duration // target tick interval, 0 disables pacing
	ReadBackoff      time.Duration // wait after a failed read on a live source
	MaxReadFailures  int           // consecutive live read failures tolerated, 0 means unlimited
	FPSWindow        int
	InferenceTimeout time.Duration // 0 means no timeout
}

// Deps are the collaborators owned by a Loop
type Deps struct {
	Opener    video.Opener
	Spec      video.Spec
	Detector  ai.Detector
	Classes   ai.ClassSet
	Annotator Annotator
	Sink      Sink
	Logger    *logger.Logger
	Clock     clock.Clock
}

// Stats is a snapshot of loop counters
type Stats struct {
	State             string    `json:"state"`
	Source            string    `json:"source"`
	FramesProcessed   uint64    `json:"frames_processed"`
	InferenceFailures uint64    `json:"inference_failures"`
	ReadErrors        uint64    `json:"read_errors"`
	DispatchErrors    uint64    `json:"dispatch_errors"`
	LastDetections    int       `json:"last_detections"`
	FPS               float64   `json:"fps"`
	StartedAt         time.Time `json:"started_at"`
	LastFrameAt       time.Time `json:"last_frame_at"`
}

// Loop is a single-use frame pipeline: Idle -> Running -> Stopping -> Stopped
type Loop struct {
	cfg    Config
	deps   Deps
	logger *logger.Logger
	clk    clock.Clock

	mu    sync.RWMutex
	state State
	ran   bool
	stats Stats
}

// New creates a loop. Nothing is opened until Run.
func New(cfg Config, deps Deps) *Loop {
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if cfg.FPSWindow <= 0 {
		cfg.FPSWindow = 30
	}

	return &Loop{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.Named("pipeline"),
		clk:    deps.Clock,
		state:  StateIdle,
		stats:  Stats{State: StateIdle.String(), Source: deps.Spec.String()},
	}
}

// State returns the current state
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Stats returns a snapshot of the loop counters
func (l *Loop) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.stats.State = s.String()
	l.mu.Unlock()

	l.logger.Info("Frame loop state changed", "from", prev.String(), "to", s.String())
}

// Run opens the source and processes frames until the source ends, the sink
// requests a stop or ctx is cancelled. It returns nil for all three. Only a
// source that cannot be opened or an unrecoverable read failure is an error.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.ran {
		l.mu.Unlock()
		return ErrAlreadyRun
	}
	l.ran = true
	l.mu.Unlock()

	l.logger.Info("Opening video source", "source", l.deps.Spec.String(), "live", l.deps.Spec.Live())

	src, err := l.deps.Opener.Open(ctx, l.deps.Spec)
	if err != nil {
		if !errors.Is(err, video.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", video.ErrSourceUnavailable, err)
		}
		if closeErr := l.deps.Sink.Close(); closeErr != nil {
			l.logger.Warn("Failed to close sink", "error", closeErr)
		}
		l.logger.Error("Failed to open video source", "source", l.deps.Spec.String(), "error", err)
		return err
	}

	l.mu.Lock()
	l.stats.StartedAt = l.clk.Now()
	l.mu.Unlock()
	l.setState(StateRunning)

	runErr := l.process(ctx, src)

	l.setState(StateStopping)
	if err := multierr.Combine(src.Close(), l.deps.Sink.Close()); err != nil {
		l.logger.Warn("Teardown finished with errors", "error", err)
	}
	l.setState(StateStopped)

	stats := l.Stats()
	l.logger.Info("Frame loop finished",
		"frames", stats.FramesProcessed,
		"inference_failures", stats.InferenceFailures,
		"read_errors", stats.ReadErrors,
	)

	return runErr
}

func (l *Loop) process(ctx context.Context, src video.Source) error {
	counter := NewThroughputCounter(l.cfg.FPSWindow, l.clk)
	pacer := NewPacer(l.cfg.Interval, l.clk)
	consecutiveFailures := 0

	for {
		if ctx.Err() != nil {
			l.logger.Info("Frame loop interrupted")
			return nil
		}

		tickStart := l.clk.Now()

		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("Frame loop interrupted")
				return nil
			}
			if errors.Is(err, video.ErrEndOfStream) {
				l.logger.Info("End of stream reached")
				return nil
			}

			l.mu.Lock()
			l.stats.ReadErrors++
			l.mu.Unlock()

			if !src.Live() {
				l.logger.Error("Failed to read frame from file source", "error", err)
				return fmt.Errorf("unrecoverable read failure: %w", err)
			}

			consecutiveFailures++
			if l.cfg.MaxReadFailures > 0 && consecutiveFailures >= l.cfg.MaxReadFailures {
				l.logger.Error("Too many consecutive read failures", "count", consecutiveFailures, "error", err)
				return fmt.Errorf("unrecoverable read failure after %d attempts: %w", consecutiveFailures, err)
			}

			l.logger.Warn("Failed to grab frame", "attempt", consecutiveFailures, "error", err)
			if sleep(ctx, l.clk, l.cfg.ReadBackoff) != nil {
				return nil
			}
			continue
		}
		consecutiveFailures = 0

		detections, err := l.infer(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.mu.Lock()
			l.stats.InferenceFailures++
			l.mu.Unlock()
			l.logger.Warn("Inference failed, forwarding frame unannotated", "frame", frame.Seq, "error", err)
			detections = nil
		}

		annotated, labels := l.deps.Annotator.DrawWithFPS(frame, detections, counter.FPS())

		if err := l.deps.Sink.Dispatch(ctx, annotated); err != nil {
			if errors.Is(err, ErrStopRequested) {
				l.recordFrame(frame, len(labels), counter)
				l.logger.Info("Stop requested by sink")
				return nil
			}
			l.mu.Lock()
			l.stats.DispatchErrors++
			l.mu.Unlock()
			l.logger.Warn("Failed to dispatch frame", "frame", frame.Seq, "error", err)
		}

		l.recordFrame(frame, len(labels), counter)

		if pacer.Wait(ctx, tickStart) != nil {
			l.logger.Info("Frame loop interrupted")
			return nil
		}
	}
}

func (l *Loop) infer(ctx context.Context, frame *video.Frame) ([]ai.Detection, error) {
	if l.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.InferenceTimeout)
		defer cancel()
	}
	return l.deps.Detector.Infer(ctx, frame, l.deps.Classes)
}

func (l *Loop) recordFrame(frame *video.Frame, detections int, counter *ThroughputCounter) {
	fps, updated := counter.Tick()

	l.mu.Lock()
	l.stats.FramesProcessed++
	l.stats.LastDetections = detections
	l.stats.LastFrameAt = frame.CapturedAt
	l.stats.FPS = fps
	l.mu.Unlock()

	if updated {
		l.logger.Debug("Throughput updated", "fps", fps, "frame", frame.Seq)
	}
}
