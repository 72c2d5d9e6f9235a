package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"time"
)

var (
	// ErrSourceUnavailable is returned when a source cannot be opened
	ErrSourceUnavailable = errors.New("video source unavailable")
	// ErrEndOfStream is returned by Next once a finite source is drained
	ErrEndOfStream = errors.New("end of stream")
	// ErrRead matches every *ReadError
	ErrRead = errors.New("frame read failed")
)

// ReadError reports a single failed frame read
type ReadError struct {
	Seq uint64 // sequence number the frame would have had
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("frame %d read failed: %v", e.Seq, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrRead }

// Frame represents a single decoded video frame.
// A frame is never modified after capture.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64 // monotonic from 1 per source
	CapturedAt time.Time
}

// Bounds returns the frame rectangle
func (f *Frame) Bounds() image.Rectangle {
	return f.Image.Bounds()
}

// Clone returns a frame with a copied pixel buffer and the same identity
func (f *Frame) Clone() *Frame {
	return &Frame{
		Image:      ToRGBA(f.Image),
		Seq:        f.Seq,
		CapturedAt: f.CapturedAt,
	}
}

// Source yields frames from an opened video source
type Source interface {
	// Next returns the next frame, ErrEndOfStream or a *ReadError
	Next(ctx context.Context) (*Frame, error)
	// Live reports whether the source is a device or network stream
	Live() bool
	// Close releases the source. Calling it more than once is safe.
	Close() error
}

// Opener opens the source a Spec describes
type Opener interface {
	Open(ctx context.Context, spec Spec) (Source, error)
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(ctx context.Context, spec Spec) (Source, error)

func (f OpenerFunc) Open(ctx context.Context, spec Spec) (Source, error) {
	return f(ctx, spec)
}

// ToRGBA copies img into a new RGBA buffer with origin at (0,0)
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
