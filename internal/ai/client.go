package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/video"
)

// Client is an HTTP client for the inference service
type Client struct {
	serviceURL          string
	model               string
	confidenceThreshold float64
	jpegQuality         int
	httpClient          *http.Client
	logger              *logger.Logger

	mu    sync.Mutex
	stats InferenceStats
}

// ClientConfig contains configuration for the inference client
type ClientConfig struct {
	ServiceURL          string
	Model               string
	ConfidenceThreshold float64
	Timeout             time.Duration // 0 means no timeout
	JPEGQuality         int
}

// NewClient creates a new inference service client
func NewClient(config ClientConfig, log *logger.Logger) *Client {
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = 90
	}

	return &Client{
		serviceURL:          strings.TrimRight(config.ServiceURL, "/"),
		model:               config.Model,
		confidenceThreshold: config.ConfidenceThreshold,
		jpegQuality:         config.JPEGQuality,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log,
	}
}

// Infer sends frame to the inference service and returns the valid detections
func (c *Client) Infer(ctx context.Context, frame *video.Frame, classes ClassSet) ([]Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: c.jpegQuality}); err != nil {
		return nil, c.fail(fmt.Errorf("%w: encode frame %d: %w", ErrInference, frame.Seq, err))
	}

	req := InferenceRequest{
		Image:               base64.StdEncoding.EncodeToString(buf.Bytes()),
		Model:               c.model,
		Classes:             classes.IDs(),
		ConfidenceThreshold: c.confidenceThreshold,
	}

	resp, err := c.inferRequest(ctx, req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("%w: frame %d: %w", ErrInference, frame.Seq, err))
	}

	detections := make([]Detection, 0, len(resp.BoundingBoxes))
	for _, bb := range resp.BoundingBoxes {
		d := Detection{
			ClassID:    bb.ClassID,
			Confidence: bb.Confidence,
			Box:        Box{X1: int(bb.X1), Y1: int(bb.Y1), X2: int(bb.X2), Y2: int(bb.Y2)},
		}
		if !d.Box.Valid() || d.Confidence < 0 || d.Confidence > 1 {
			c.logger.Debug("Discarding invalid detection", "frame", frame.Seq, "detection", d.String())
			continue
		}
		detections = append(detections, d)
	}

	c.record(resp.InferenceTimeMs)

	return detections, nil
}

// inferRequest performs a single inference request
func (c *Client) inferRequest(ctx context.Context, req InferenceRequest) (*InferenceResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/inference", c.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	requestDuration := time.Since(startTime)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn(
			"Inference service returned error",
			"status", resp.StatusCode,
			"response", string(body),
		)
		return nil, fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, string(body))
	}

	var inferenceResp InferenceResponse
	if err := json.Unmarshal(body, &inferenceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Debug(
		"Inference completed",
		"detection_count", len(inferenceResp.BoundingBoxes),
		"inference_time_ms", inferenceResp.InferenceTimeMs,
		"request_duration_ms", requestDuration.Milliseconds(),
	)

	return &inferenceResp, nil
}

// Health checks that the inference service answers /health
func (c *Client) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service health check failed: status %d", resp.StatusCode)
	}

	return nil
}

// Stats returns the statistics recorded by this client
func (c *Client) Stats() InferenceStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ServiceURL returns the base URL of the inference service
func (c *Client) ServiceURL() string {
	return c.serviceURL
}

func (c *Client) record(ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.TotalInferences++
	c.stats.TotalTimeMs += ms
	c.stats.AverageTimeMs = c.stats.TotalTimeMs / float64(c.stats.TotalInferences)
}

func (c *Client) fail(err error) error {
	c.mu.Lock()
	c.stats.Failures++
	c.mu.Unlock()
	return err
}
