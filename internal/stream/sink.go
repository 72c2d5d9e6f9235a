package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/video"
)

// Sink encodes each frame once and fans it out through a Hub
type Sink struct {
	logger  *logger.Logger
	hub     *Hub
	encoder Encoder

	mu      sync.RWMutex
	latest  *Payload
	encoded atomic.Uint64
}

// NewSink creates a stream sink
func NewSink(hub *Hub, encoder Encoder, log *logger.Logger) *Sink {
	return &Sink{
		logger:  log.Named("stream"),
		hub:     hub,
		encoder: encoder,
	}
}

// Hub returns the subscriber hub
func (s *Sink) Hub() *Hub {
	return s.hub
}

// Dispatch encodes frame and offers it to every subscriber.
// Nothing is encoded while no subscriber is connected.
func (s *Sink) Dispatch(_ context.Context, frame *video.Frame) error {
	if s.hub.Count() == 0 {
		return nil
	}

	payload, err := s.encoder.Encode(frame)
	if err != nil {
		return err
	}
	s.encoded.Add(1)

	s.mu.Lock()
	s.latest = payload
	s.mu.Unlock()

	s.hub.Broadcast(payload)
	return nil
}

// Latest returns the most recently encoded payload, or nil
func (s *Sink) Latest() *Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Encoded returns how many frames were encoded
func (s *Sink) Encoded() uint64 {
	return s.encoded.Load()
}

// Close disconnects all subscribers
func (s *Sink) Close() error {
	return s.hub.Close()
}
