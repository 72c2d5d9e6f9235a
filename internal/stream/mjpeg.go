package stream

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const mjpegBoundary = "frame"

// MJPEGConn writes payloads as multipart/x-mixed-replace parts
type MJPEGConn struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu     sync.Mutex
	closed atomic.Bool
}

// NewMJPEGConn writes the multipart response header and returns the conn
func NewMJPEGConn(w http.ResponseWriter) *MJPEGConn {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()
	return &MJPEGConn{w: w, rc: rc}
}

func (c *MJPEGConn) Send(p *Payload, deadline time.Time) error {
	if c.closed.Load() {
		return errors.New("connection closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := fmt.Fprintf(c.w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(p.JPEG)); err != nil {
		return err
	}
	if _, err := c.w.Write(p.JPEG); err != nil {
		return err
	}
	if _, err := c.w.Write([]byte("\r\n")); err != nil {
		return err
	}
	if err := c.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Close stops further writes; the handler owns the underlying response
func (c *MJPEGConn) Close() error {
	c.closed.Store(true)
	return nil
}

// ServeMJPEG registers the response as a subscriber and blocks until the
// client goes away or the hub drops it.
func ServeMJPEG(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn := NewMJPEGConn(w)

	sub, err := hub.Register(conn, TransportMJPEG, r.RemoteAddr)
	if err != nil {
		return
	}

	select {
	case <-r.Context().Done():
		hub.Unregister(sub.ID, nil)
	case <-sub.Done():
	}
	<-sub.Finished()
}
