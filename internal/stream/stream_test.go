package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/video"
	"github.com/VickramC07/BikeGuard/internal/video/videotest"
)

type fakeConn struct {
	failAt int  // fail the n-th Send (1-based), 0 never
	block  bool // Send blocks until Close

	mu        sync.Mutex
	got       []uint64
	attempts  int
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) Send(p *Payload, _ time.Time) error {
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	if c.block {
		<-c.closed
		return errors.New("closed")
	}
	if c.failAt > 0 && attempt >= c.failAt {
		return errors.New("broken pipe")
	}

	c.mu.Lock()
	c.got = append(c.got, p.Seq)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) received() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.got...)
}

func (c *fakeConn) attemptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func hasSeq(seqs []uint64, seq uint64) bool {
	for _, s := range seqs {
		if s == seq {
			return true
		}
	}
	return false
}

type countingEncoder struct {
	inner Encoder
	calls atomic.Int64
}

func (e *countingEncoder) Encode(frame *video.Frame) (*Payload, error) {
	e.calls.Add(1)
	return e.inner.Encode(frame)
}

func frame(seq uint64) *video.Frame {
	return videotest.SolidFrame(16, 12, seq, color.RGBA{G: 128, A: 255})
}

func newTestSink(t *testing.T) (*Sink, *Hub, *countingEncoder) {
	t.Helper()
	hub := NewHub(HubConfig{SendTimeout: 100 * time.Millisecond}, logger.NewNopLogger())
	enc := &countingEncoder{inner: NewJPEGEncoder(80)}
	sink := NewSink(hub, enc, logger.NewNopLogger())
	t.Cleanup(func() { _ = sink.Close() })
	return sink, hub, enc
}

func TestJPEGEncoder(t *testing.T) {
	p, err := NewJPEGEncoder(0).Encode(frame(4))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), p.Seq)

	raw, err := base64.StdEncoding.DecodeString(p.Base64)
	require.NoError(t, err)
	assert.Equal(t, p.JPEG, raw)

	img, err := jpeg.Decode(bytes.NewReader(p.JPEG))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestSink_SkipsEncodingWithoutSubscribers(t *testing.T) {
	sink, _, enc := newTestSink(t)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, sink.Dispatch(context.Background(), frame(i)))
	}
	assert.Zero(t, enc.calls.Load())
	assert.Nil(t, sink.Latest())
}

func TestSink_EncodesOncePerTick(t *testing.T) {
	sink, hub, enc := newTestSink(t)

	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for _, c := range conns {
		_, err := hub.Register(c, TransportWebSocket, "127.0.0.1:1")
		require.NoError(t, err)
	}

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, sink.Dispatch(context.Background(), frame(i)))
		for _, c := range conns {
			require.Eventually(t, func() bool { return hasSeq(c.received(), i) }, time.Second, time.Millisecond)
		}
	}

	assert.Equal(t, int64(5), enc.calls.Load())
	assert.Equal(t, uint64(5), sink.Encoded())
	require.NotNil(t, sink.Latest())
	assert.Equal(t, uint64(5), sink.Latest().Seq)
}

func TestHub_BlockedSubscriberDoesNotSlowProducer(t *testing.T) {
	sink, hub, _ := newTestSink(t)

	blocked := newFakeConn()
	blocked.block = true
	slow, err := hub.Register(blocked, TransportMJPEG, "10.0.0.2:5000")
	require.NoError(t, err)

	fast := newFakeConn()
	_, err = hub.Register(fast, TransportWebSocket, "10.0.0.3:5000")
	require.NoError(t, err)

	start := time.Now()
	for i := uint64(1); i <= 50; i++ {
		require.NoError(t, sink.Dispatch(context.Background(), frame(i)))
		assert.LessOrEqual(t, slow.Pending(), 1)
	}
	assert.Less(t, time.Since(start), time.Second)

	require.Eventually(t, func() bool { return blocked.attemptCount() == 1 }, time.Second, time.Millisecond)
	assert.Positive(t, slow.Dropped())
	require.Eventually(t, func() bool { return hasSeq(fast.received(), 50) }, time.Second, time.Millisecond)
}

func TestSink_FailedSubscriberIsDroppedOthersContinue(t *testing.T) {
	sink, hub, _ := newTestSink(t)

	good := newFakeConn()
	_, err := hub.Register(good, TransportWebSocket, "10.0.0.4:1")
	require.NoError(t, err)

	bad := newFakeConn()
	bad.failAt = 3
	badSub, err := hub.Register(bad, TransportWebSocket, "10.0.0.5:1")
	require.NoError(t, err)
	require.Equal(t, 2, hub.Count())

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, sink.Dispatch(context.Background(), frame(i)))
		require.Eventually(t, func() bool { return hasSeq(good.received(), i) }, time.Second, time.Millisecond)
		require.Eventually(t, func() bool {
			return bad.isClosed() || bad.attemptCount() >= int(i)
		}, time.Second, time.Millisecond)
	}

	<-badSub.Finished()
	assert.Equal(t, 1, hub.Count())
	assert.True(t, bad.isClosed())
	assert.Equal(t, []uint64{1, 2}, bad.received())
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, good.received())
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(HubConfig{}, logger.NewNopLogger())
	a, b := newFakeConn(), newFakeConn()
	_, err := hub.Register(a, TransportWebSocket, "x")
	require.NoError(t, err)
	_, err = hub.Register(b, TransportMJPEG, "y")
	require.NoError(t, err)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())
	assert.Zero(t, hub.Count())
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())

	_, err = hub.Register(newFakeConn(), TransportWebSocket, "z")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_UnregisterUnknown(t *testing.T) {
	hub := NewHub(HubConfig{}, logger.NewNopLogger())
	hub.Unregister("missing", nil)
	assert.Zero(t, hub.Count())
}

func TestHub_SubscriberIDsAreUnique(t *testing.T) {
	hub := NewHub(HubConfig{}, logger.NewNopLogger())
	defer hub.Close()

	a, err := hub.Register(newFakeConn(), TransportWebSocket, "x")
	require.NoError(t, err)
	b, err := hub.Register(newFakeConn(), TransportWebSocket, "x")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
}

func TestServeWebSocket(t *testing.T) {
	sink, hub, _ := newTestSink(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWebSocket(hub, WSConfig{PingInterval: time.Second}, w, r)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, sink.Dispatch(context.Background(), frame(7)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)

	raw, err := base64.StdEncoding.DecodeString(string(data))
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServeMJPEG(t *testing.T) {
	sink, hub, _ := newTestSink(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeMJPEG(hub, w, r)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, sink.Dispatch(context.Background(), frame(9)))

	tp := textproto.NewReader(bufio.NewReader(resp.Body))
	line, err := tp.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "--frame", line)

	header, err := tp.ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", header.Get("Content-Type"))
	size, err := strconv.Atoi(header.Get("Content-Length"))
	require.NoError(t, err)

	body := make([]byte, size)
	_, err = io.ReadFull(tp.R, body)
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(body))
	require.NoError(t, err)

	require.NoError(t, resp.Body.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}
