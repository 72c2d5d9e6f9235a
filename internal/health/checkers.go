package health

import (
	"context"
	"fmt"
	"time"

	"github.com/VickramC07/BikeGuard/internal/ai"
	"github.com/VickramC07/BikeGuard/internal/pipeline"
	"github.com/VickramC07/BikeGuard/internal/storage"
)

// LoopStatus is the read side of a frame loop
type LoopStatus interface {
	State() pipeline.State
	Stats() pipeline.Stats
}

// LoopChecker reports the frame loop state and frame freshness
type LoopChecker struct {
	loop       LoopStatus
	staleAfter time.Duration
	now        func() time.Time
}

// NewLoopChecker creates a checker; a running loop with no frame for
// staleAfter is degraded. staleAfter <= 0 disables the freshness check.
func NewLoopChecker(loop LoopStatus, staleAfter time.Duration) *LoopChecker {
	return &LoopChecker{loop: loop, staleAfter: staleAfter, now: time.Now}
}

func (c *LoopChecker) Name() string {
	return "pipeline"
}

func (c *LoopChecker) Check(ctx context.Context) Check {
	stats := c.loop.Stats()
	check := Check{
		Name:      c.Name(),
		Timestamp: c.now(),
		Details: map[string]interface{}{
			"state":              stats.State,
			"source":             stats.Source,
			"frames_processed":   stats.FramesProcessed,
			"inference_failures": stats.InferenceFailures,
			"fps":                stats.FPS,
		},
	}

	switch c.loop.State() {
	case pipeline.StateRunning:
		check.Status = StatusHealthy
		check.Message = "Frame loop running"
		if c.staleAfter > 0 && !stats.StartedAt.IsZero() {
			last := stats.LastFrameAt
			if last.IsZero() {
				last = stats.StartedAt
			}
			if age := c.now().Sub(last); age > c.staleAfter {
				check.Status = StatusDegraded
				check.Message = fmt.Sprintf("No frame for %s", age.Truncate(time.Millisecond))
			}
		}
	case pipeline.StateIdle:
		check.Status = StatusDegraded
		check.Message = "Frame loop not started"
	default:
		check.Status = StatusUnhealthy
		check.Message = "Frame loop stopped"
	}

	return check
}

// InferenceService is the health surface of the detector client
type InferenceService interface {
	Health(ctx context.Context) error
	Stats() ai.InferenceStats
	ServiceURL() string
}

// InferenceChecker checks inference service connectivity. An unreachable
// service degrades the pipeline rather than stopping it.
type InferenceChecker struct {
	client InferenceService
}

func NewInferenceChecker(client InferenceService) *InferenceChecker {
	return &InferenceChecker{client: client}
}

func (c *InferenceChecker) Name() string {
	return "inference_service"
}

func (c *InferenceChecker) Check(ctx context.Context) Check {
	stats := c.client.Stats()
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"url":             c.client.ServiceURL(),
			"inferences":      stats.TotalInferences,
			"failures":        stats.Failures,
			"average_time_ms": stats.AverageTimeMs,
		},
	}

	if err := c.client.Health(ctx); err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Inference service unreachable: %v", err)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Inference service is reachable"
	return check
}

// SpaceMonitor reports disk usage, see storage.DiskMonitor
type SpaceMonitor interface {
	HasSpace() (bool, *storage.DiskUsage, error)
}

// StorageChecker checks free space where saved frames are written
type StorageChecker struct {
	monitor SpaceMonitor
	dir     string
}

func NewStorageChecker(dir string, monitor SpaceMonitor) *StorageChecker {
	return &StorageChecker{dir: dir, monitor: monitor}
}

func (c *StorageChecker) Name() string {
	return "storage"
}

func (c *StorageChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   map[string]interface{}{"output_dir": c.dir},
	}

	ok, usage, err := c.monitor.HasSpace()
	if err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Failed to read disk usage: %v", err)
		return check
	}

	check.Details["usage_percent"] = usage.UsagePercent
	check.Details["available_bytes"] = usage.AvailableBytes

	if !ok {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Disk usage %.1f%% is above the limit", usage.UsagePercent)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Output directory has free space"
	return check
}
