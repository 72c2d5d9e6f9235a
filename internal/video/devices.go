package video

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Device is a local V4L2 capture device
type Device struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// DeviceScanner lists /dev/video* capture devices
type DeviceScanner struct {
	DevDir string // default /dev
	SysDir string // default /sys/class/video4linux

	isDevice func(os.FileInfo) bool
	lookPath func(string) (string, error)
	v4l2Info func(path string) ([]byte, error)
}

// NewDeviceScanner returns a scanner for the host's device tree
func NewDeviceScanner() *DeviceScanner {
	return &DeviceScanner{
		DevDir:   "/dev",
		SysDir:   "/sys/class/video4linux",
		isDevice: func(info os.FileInfo) bool { return info.Mode()&os.ModeCharDevice != 0 },
		lookPath: exec.LookPath,
		v4l2Info: func(path string) ([]byte, error) {
			return exec.Command("v4l2-ctl", "--device", path, "--info").Output()
		},
	}
}

// Scan returns the devices sorted by index
func (s *DeviceScanner) Scan() ([]Device, error) {
	matches, err := filepath.Glob(filepath.Join(s.DevDir, "video*"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob video devices: %w", err)
	}

	useV4L2 := false
	if s.lookPath != nil {
		_, err := s.lookPath("v4l2-ctl")
		useV4L2 = err == nil
	}

	devices := make([]Device, 0, len(matches))
	for _, path := range matches {
		index, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
		if err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || (s.isDevice != nil && !s.isDevice(info)) {
			continue
		}

		dev := Device{Path: path, Index: index, Name: s.sysfsName(filepath.Base(path))}
		if useV4L2 {
			if card := s.cardType(path); card != "" {
				dev.Name = card
			}
		}
		if dev.Name == "" {
			dev.Name = "USB Camera"
		}
		devices = append(devices, dev)
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Index < devices[j].Index })
	return devices, nil
}

func (s *DeviceScanner) sysfsName(base string) string {
	data, err := os.ReadFile(filepath.Join(s.SysDir, base, "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// cardType extracts "Card type" from v4l2-ctl --info output
func (s *DeviceScanner) cardType(path string) string {
	out, err := s.v4l2Info(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		if _, value, ok := strings.Cut(line, ":"); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
