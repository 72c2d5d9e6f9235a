// Package stream fans annotated frames out to remote subscribers over
// WebSocket and MJPEG.
package stream

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"time"

	"github.com/VickramC07/BikeGuard/internal/video"
)

// Payload is one encoded frame shared read-only by every subscriber
type Payload struct {
	Seq        uint64
	CapturedAt time.Time
	JPEG       []byte
	Base64     string
}

// Encoder turns a frame into a Payload
type Encoder interface {
	Encode(frame *video.Frame) (*Payload, error)
}

// JPEGEncoder encodes frames as JPEG plus its base64 text form
type JPEGEncoder struct {
	Quality int
}

// NewJPEGEncoder creates an encoder; quality outside 1-100 becomes 80
func NewJPEGEncoder(quality int) *JPEGEncoder {
	if quality < 1 || quality > 100 {
		quality = 80
	}
	return &JPEGEncoder{Quality: quality}
}

func (e *JPEGEncoder) Encode(frame *video.Frame) (*Payload, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame %d: %w", frame.Seq, err)
	}

	data := buf.Bytes()
	return &Payload{
		Seq:        frame.Seq,
		CapturedAt: frame.CapturedAt,
		JPEG:       data,
		Base64:     base64.StdEncoding.EncodeToString(data),
	}, nil
}
