package storage

import (
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/video"
)

// ErrInsufficientSpace is returned by Save when the output filesystem is full
var ErrInsufficientSpace = errors.New("insufficient disk space")

// SaverConfig contains frame saver configuration
type SaverConfig struct {
	OutputDir    string
	Quality      int     // JPEG quality (1-100, default 95)
	MaxDiskUsage float64 // percent, default 95
}

// FrameSaver writes annotated frames to disk as timestamped JPEG files
type FrameSaver struct {
	logger  *logger.Logger
	dir     string
	quality int
	now     func() time.Time
	monitor *DiskMonitor

	mu    sync.Mutex
	saved int
}

// NewFrameSaver creates the output directory and returns a saver for it
func NewFrameSaver(config SaverConfig, log *logger.Logger) (*FrameSaver, error) {
	quality := config.Quality
	if quality < 1 || quality > 100 {
		quality = 95
	}

	dir := config.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &FrameSaver{
		logger:  log,
		dir:     dir,
		quality: quality,
		now:     time.Now,
		monitor: NewDiskMonitor(dir, config.MaxDiskUsage),
	}, nil
}

// Dir returns the output directory
func (s *FrameSaver) Dir() string {
	return s.dir
}

// Monitor returns the disk monitor guarding the output directory
func (s *FrameSaver) Monitor() *DiskMonitor {
	return s.monitor
}

// Saved returns how many frames were written
func (s *FrameSaver) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// FileName returns the artifact name for frame saved at t
func FileName(t time.Time, seq uint64) string {
	return fmt.Sprintf("detection_%d_%d.jpg", t.Unix(), seq)
}

// Save encodes frame as JPEG and returns the written path
func (s *FrameSaver) Save(frame *video.Frame) (string, error) {
	ok, usage, err := s.monitor.HasSpace()
	if err != nil {
		s.logger.Warn("Failed to check disk usage", "dir", s.dir, "error", err)
	} else if !ok {
		return "", fmt.Errorf("%w: %s is %.1f%% full", ErrInsufficientSpace, s.dir, usage.UsagePercent)
	}

	path := filepath.Join(s.dir, FileName(s.now(), frame.Seq))
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create frame file: %w", err)
	}

	if err := jpeg.Encode(file, frame.Image, &jpeg.Options{Quality: s.quality}); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write frame file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize frame file: %w", err)
	}

	s.mu.Lock()
	s.saved++
	s.mu.Unlock()

	s.logger.Info("Frame saved", "path", path, "frame", frame.Seq)
	return path, nil
}
