// Package videotest provides in-memory sources and frames for tests.
package videotest

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/VickramC07/BikeGuard/internal/video"
)

// SolidFrame returns a w×h frame filled with c
func SolidFrame(w, h int, seq uint64, c color.RGBA) *video.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return &video.Frame{Image: img, Seq: seq, CapturedAt: time.Unix(1700000000, 0).Add(time.Duration(seq) * time.Millisecond)}
}

// Step is one scripted result of Source.Next
type Step struct {
	Frame *video.Frame
	Err   error
}

// Source replays scripted steps. Once the script is exhausted it returns
// ErrEndOfStream for files and blocks until ctx ends for live sources.
type Source struct {
	IsLive bool

	mu     sync.Mutex
	steps  []Step
	next   int
	closes int
}

// NewFileSource returns a non-live source producing n black frames
func NewFileSource(n, w, h int) *Source {
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = Step{Frame: SolidFrame(w, h, uint64(i+1), color.RGBA{A: 255})}
	}
	return &Source{steps: steps}
}

// NewScripted returns a source replaying steps
func NewScripted(live bool, steps ...Step) *Source {
	return &Source{IsLive: live, steps: steps}
}

func (s *Source) Next(ctx context.Context) (*video.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next < len(s.steps) {
		step := s.steps[s.next]
		s.next++
		s.mu.Unlock()
		return step.Frame, step.Err
	}
	s.mu.Unlock()

	if !s.IsLive {
		return nil, video.ErrEndOfStream
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *Source) Live() bool { return s.IsLive }

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes returns how many times Close was called
func (s *Source) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Consumed returns how many scripted steps were returned
func (s *Source) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Opener returns src for any spec, or err when set
type Opener struct {
	Source *Source
	Err    error

	mu    sync.Mutex
	specs []video.Spec
}

func (o *Opener) Open(_ context.Context, spec video.Spec) (video.Source, error) {
	o.mu.Lock()
	o.specs = append(o.specs, spec)
	o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Source, nil
}

// Opened returns the specs passed to Open
func (o *Opener) Opened() []video.Spec {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]video.Spec(nil), o.specs...)
}
