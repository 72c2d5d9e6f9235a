package stream

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/VickramC07/BikeGuard/internal/logger"
)

// Transport names
const (
	TransportWebSocket = "websocket"
	TransportMJPEG     = "mjpeg"
)

var (
	// ErrSubscriberSend wraps a failed or timed-out write to one subscriber
	ErrSubscriberSend = errors.New("subscriber send failed")
	// ErrHubClosed is returned by Register after Close
	ErrHubClosed = errors.New("stream hub closed")
)

// Conn is the write side of one subscriber connection
type Conn interface {
	// Send writes p, giving up at deadline
	Send(p *Payload, deadline time.Time) error
	Close() error
}

// HubConfig contains hub settings
type HubConfig struct {
	SendTimeout time.Duration // default 250ms
}

// Hub is the set of live subscribers
type Hub struct {
	logger      *logger.Logger
	sendTimeout time.Duration

	mu     sync.Mutex
	subs   map[string]*Subscriber
	closed bool
}

// NewHub creates an empty hub
func NewHub(cfg HubConfig, log *logger.Logger) *Hub {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 250 * time.Millisecond
	}
	return &Hub{
		logger:      log.Named("stream"),
		sendTimeout: cfg.SendTimeout,
		subs:        make(map[string]*Subscriber),
	}
}

// Subscriber is one connected client with a single-slot send queue
type Subscriber struct {
	ID         string
	Transport  string
	RemoteAddr string

	hub      *Hub
	conn     Conn
	slot     chan *Payload
	done     chan struct{}
	finished chan struct{}

	closeOnce sync.Once
	closeErr  error
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// Register adds conn to the hub and starts its writer
func (h *Hub) Register(conn Conn, transport, remoteAddr string) (*Subscriber, error) {
	sub := &Subscriber{
		ID:         uuid.New().String(),
		Transport:  transport,
		RemoteAddr: remoteAddr,
		hub:        h,
		conn:       conn,
		slot:       make(chan *Payload, 1),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.subs[sub.ID] = sub
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Info("Subscriber connected",
		"id", sub.ID,
		"transport", transport,
		"remote_addr", remoteAddr,
		"subscribers", count,
	)

	go sub.writeLoop()
	return sub, nil
}

// Unregister removes the subscriber with id and closes its connection
func (h *Hub) Unregister(id string, reason error) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}

	closeErr := sub.close()

	fields := []interface{}{
		"id", sub.ID,
		"transport", sub.Transport,
		"remote_addr", sub.RemoteAddr,
		"subscribers", count,
		"sent", sub.Sent(),
	}
	if reason != nil {
		h.logger.Warn("Subscriber disconnected", append(fields, "error", reason)...)
	} else {
		h.logger.Info("Subscriber disconnected", fields...)
	}
	if closeErr != nil {
		h.logger.Debug("Subscriber close returned error", "id", sub.ID, "error", closeErr)
	}
}

// Count returns the number of live subscribers
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast offers p to every subscriber without blocking
func (h *Hub) Broadcast(p *Payload) int {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.offer(p)
	}
	return len(subs)
}

// Close disconnects every subscriber; later Register calls fail
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()

	var err error
	for _, sub := range subs {
		err = multierr.Append(err, sub.close())
	}
	if len(subs) > 0 {
		h.logger.Info("All subscribers disconnected", "count", len(subs))
	}
	return err
}

// offer replaces a stale pending payload with p
func (s *Subscriber) offer(p *Payload) {
	select {
	case <-s.done:
		return
	default:
	}

	for {
		select {
		case s.slot <- p:
			return
		default:
		}
		select {
		case <-s.slot:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscriber) writeLoop() {
	defer close(s.finished)

	for {
		select {
		case <-s.done:
			return
		case p := <-s.slot:
			if err := s.conn.Send(p, time.Now().Add(s.hub.sendTimeout)); err != nil {
				s.hub.Unregister(s.ID, fmt.Errorf("%w: frame %d: %w", ErrSubscriberSend, p.Seq, err))
				return
			}
			s.sent.Add(1)
		}
	}
}

func (s *Subscriber) close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Done is closed once the subscriber is removed from the hub
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Finished is closed once the writer goroutine has exited
func (s *Subscriber) Finished() <-chan struct{} {
	return s.finished
}

// Pending returns the number of queued payloads (0 or 1)
func (s *Subscriber) Pending() int {
	return len(s.slot)
}

// Sent returns the number of payloads written
func (s *Subscriber) Sent() uint64 {
	return s.sent.Load()
}

// Dropped returns the number of stale payloads replaced before sending
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}
