package video

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a source specification
type Kind int

const (
	KindDevice Kind = iota
	KindFile
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindFile:
		return "file"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Spec identifies a video source: a capture device index, a file path or a stream URL
type Spec struct {
	Raw    string
	Kind   Kind
	Device int    // valid for KindDevice
	Target string // file path or URL
}

// ParseSpec classifies raw. An integer is a device index, a string with a
// URL scheme is a network stream and anything else is a file path.
func ParseSpec(raw string) Spec {
	raw = strings.TrimSpace(raw)

	if n, err := strconv.Atoi(raw); err == nil {
		return Spec{Raw: raw, Kind: KindDevice, Device: n}
	}

	if hasScheme(raw) {
		return Spec{Raw: raw, Kind: KindNetwork, Target: raw}
	}

	return Spec{Raw: raw, Kind: KindFile, Target: raw}
}

// hasScheme reports whether s starts with "<scheme>://"
func hasScheme(s string) bool {
	i := strings.Index(s, "://")
	if i <= 0 {
		return false
	}
	for j, r := range s[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// Live reports whether the source produces frames in real time.
// Devices and network streams are live; files are not.
func (s Spec) Live() bool {
	return s.Kind != KindFile
}

// Scheme returns the lower-cased URL scheme of a network spec
func (s Spec) Scheme() string {
	if s.Kind != KindNetwork {
		return ""
	}
	return strings.ToLower(s.Target[:strings.Index(s.Target, "://")])
}

// DevicePath returns the V4L2 device node for a device spec
func (s Spec) DevicePath() string {
	return fmt.Sprintf("/dev/video%d", s.Device)
}

func (s Spec) String() string {
	if s.Kind == KindDevice {
		return fmt.Sprintf("device:%d", s.Device)
	}
	return fmt.Sprintf("%s:%s", s.Kind, s.Target)
}
