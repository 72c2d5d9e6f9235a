package video

import (
	"fmt"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
)

// MediaInfo describes one track advertised by an RTSP server
type MediaInfo struct {
	Type   string   `json:"type"`
	Codecs []string `json:"codecs"`
}

// DescribeRTSP sends DESCRIBE to an rtsp:// or rtsps:// source and lists its tracks
func DescribeRTSP(rawURL string, timeout time.Duration) ([]MediaInfo, error) {
	u, err := base.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &gortsplib.Client{ReadTimeout: timeout, WriteTimeout: timeout}
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	desc, _, err := client.Describe(u)
	if err != nil {
		return nil, fmt.Errorf("failed to describe stream: %w", err)
	}
	return mediaInfo(desc), nil
}

func mediaInfo(desc *description.Session) []MediaInfo {
	infos := make([]MediaInfo, 0, len(desc.Medias))
	for _, media := range desc.Medias {
		info := MediaInfo{Type: string(media.Type)}
		for _, forma := range media.Formats {
			info.Codecs = append(info.Codecs, forma.Codec())
		}
		infos = append(infos, info)
	}
	return infos
}
