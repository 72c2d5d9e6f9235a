package video

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(t *testing.T) *DeviceScanner {
	t.Helper()
	root := t.TempDir()
	s := &DeviceScanner{
		DevDir:   filepath.Join(root, "dev"),
		SysDir:   filepath.Join(root, "sys"),
		isDevice: func(os.FileInfo) bool { return true },
		lookPath: func(string) (string, error) { return "", errors.New("not found") },
	}
	require.NoError(t, os.MkdirAll(s.DevDir, 0755))
	for _, name := range []string{"video2", "video0", "video-loopback"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.DevDir, name), nil, 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(s.SysDir, "video0"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.SysDir, "video0", "name"), []byte("HD Webcam C270\n"), 0644))
	return s
}

func TestDeviceScanner_Scan(t *testing.T) {
	s := newTestScanner(t)

	devices, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, 0, devices[0].Index)
	assert.Equal(t, "HD Webcam C270", devices[0].Name)
	assert.Equal(t, filepath.Join(s.DevDir, "video0"), devices[0].Path)

	assert.Equal(t, 2, devices[1].Index)
	assert.Equal(t, "USB Camera", devices[1].Name)
}

func TestDeviceScanner_V4L2CardType(t *testing.T) {
	s := newTestScanner(t)
	s.lookPath = func(string) (string, error) { return "/usr/bin/v4l2-ctl", nil }
	s.v4l2Info = func(path string) ([]byte, error) {
		if filepath.Base(path) == "video2" {
			return []byte("Driver Info:\n\tDriver name      : uvcvideo\n\tCard type        : 5MP USB Camera\n"), nil
		}
		return nil, errors.New("busy")
	}

	devices, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "HD Webcam C270", devices[0].Name)
	assert.Equal(t, "5MP USB Camera", devices[1].Name)
}

func TestDeviceScanner_SkipsNonDevices(t *testing.T) {
	s := newTestScanner(t)
	s.isDevice = func(os.FileInfo) bool { return false }

	devices, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, devices)
}
