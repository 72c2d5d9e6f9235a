package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// DiskUsage contains disk usage information
type DiskUsage struct {
	TotalBytes     int64   `json:"total_bytes"`
	UsedBytes      int64   `json:"used_bytes"`
	AvailableBytes int64   `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
}

// DiskMonitor reports usage of the filesystem holding saved frames.
// Results are cached for cacheDuration.
type DiskMonitor struct {
	path            string
	maxUsagePercent float64
	cacheDuration   time.Duration
	statfs          func(path string) (*DiskUsage, error)

	mu        sync.Mutex
	lastCheck time.Time
	cached    *DiskUsage
}

// NewDiskMonitor creates a monitor for path; maxUsagePercent <= 0 defaults to 95
func NewDiskMonitor(path string, maxUsagePercent float64) *DiskMonitor {
	if maxUsagePercent <= 0 || maxUsagePercent > 100 {
		maxUsagePercent = 95
	}
	return &DiskMonitor{
		path:            path,
		maxUsagePercent: maxUsagePercent,
		cacheDuration:   30 * time.Second,
		statfs:          statfsUsage,
	}
}

// Usage returns the current disk usage
func (d *DiskMonitor) Usage() (*DiskUsage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && time.Since(d.lastCheck) < d.cacheDuration {
		usage := *d.cached
		return &usage, nil
	}

	usage, err := d.statfs(d.path)
	if err != nil {
		return nil, err
	}
	d.cached = usage
	d.lastCheck = time.Now()

	copied := *usage
	return &copied, nil
}

// HasSpace reports whether usage is below the configured maximum
func (d *DiskMonitor) HasSpace() (bool, *DiskUsage, error) {
	usage, err := d.Usage()
	if err != nil {
		return false, nil, err
	}
	return usage.UsagePercent < d.maxUsagePercent, usage, nil
}

func statfsUsage(path string) (*DiskUsage, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	totalBytes := int64(stat.Blocks) * int64(stat.Bsize)
	availableBytes := int64(stat.Bavail) * int64(stat.Bsize)
	usedBytes := totalBytes - availableBytes

	var usagePercent float64
	if totalBytes > 0 {
		usagePercent = float64(usedBytes) / float64(totalBytes) * 100.0
	}

	return &DiskUsage{
		TotalBytes:     totalBytes,
		UsedBytes:      usedBytes,
		AvailableBytes: availableBytes,
		UsagePercent:   usagePercent,
	}, nil
}
