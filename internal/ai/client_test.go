package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/video/videotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		ServiceURL:          server.URL + "/",
		Model:               "yolov8n.pt",
		ConfidenceThreshold: 0.5,
		Timeout:             5 * time.Second,
	}, logger.NewNopLogger())

	return client, server
}

func TestClient_Infer(t *testing.T) {
	var got InferenceRequest
	client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/inference", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		response := InferenceResponse{
			BoundingBoxes: []BoundingBox{
				{X1: 100.7, Y1: 200, X2: 300, Y2: 400, Confidence: 0.85, ClassID: 0, ClassName: "person"},
				{X1: 10, Y1: 10, X2: 10, Y2: 50, Confidence: 0.9, ClassID: 1},  // zero width
				{X1: 10, Y1: 10, X2: 20, Y2: 50, Confidence: 1.2, ClassID: 1},  // bad confidence
				{X1: 5, Y1: 6, X2: 50, Y2: 60, Confidence: 0.55, ClassID: 1},
			},
			InferenceTimeMs: 45.2,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})

	frame := videotest.SolidFrame(64, 48, 7, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	detections, err := client.Infer(context.Background(), frame, NewClassSet(0, 1))
	require.NoError(t, err)

	require.Len(t, detections, 2)
	assert.Equal(t, Detection{ClassID: 0, Confidence: 0.85, Box: Box{X1: 100, Y1: 200, X2: 300, Y2: 400}}, detections[0])
	assert.Equal(t, 1, detections[1].ClassID)

	assert.Equal(t, "yolov8n.pt", got.Model)
	assert.Equal(t, []int{0, 1}, got.Classes)
	assert.Equal(t, 0.5, got.ConfidenceThreshold)

	raw, err := base64.StdEncoding.DecodeString(got.Image)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	stats := client.Stats()
	assert.Equal(t, 1, stats.TotalInferences)
	assert.InDelta(t, 45.2, stats.AverageTimeMs, 0.001)
}

func TestClient_Infer_ServiceError(t *testing.T) {
	client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	frame := videotest.SolidFrame(8, 8, 3, color.RGBA{A: 255})
	_, err := client.Infer(context.Background(), frame, NewClassSet(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInference)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
	assert.Equal(t, 1, client.Stats().Failures)
}

func TestClient_Infer_BadJSON(t *testing.T) {
	client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := client.Infer(context.Background(), videotest.SolidFrame(8, 8, 1, color.RGBA{A: 255}), NewClassSet(0))
	assert.ErrorIs(t, err, ErrInference)
}

func TestClient_Infer_ContextCancelled(t *testing.T) {
	client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Infer(ctx, videotest.SolidFrame(8, 8, 1, color.RGBA{A: 255}), NewClassSet(0))
	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Health(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	assert.NoError(t, client.Health(context.Background()))

	healthy.Store(false)
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClassSet(t *testing.T) {
	s := NewClassSet(1, 0, 1, 2)
	assert.Equal(t, []int{1, 0, 2}, s.IDs())
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains(0))
	assert.False(t, s.Contains(5))
	assert.Equal(t, []string{"bicycle", "person", "car"}, s.Names())

	ids := s.IDs()
	ids[0] = 99
	assert.Equal(t, 1, s.IDs()[0])

	var empty ClassSet
	assert.False(t, empty.Contains(0))
}

func TestClassName(t *testing.T) {
	assert.Len(t, COCOClassNames, 80)
	assert.Equal(t, "person", ClassName(0))
	assert.Equal(t, "toothbrush", ClassName(79))
	assert.Equal(t, "80", ClassName(80))
	assert.Equal(t, "-1", ClassName(-1))
}
