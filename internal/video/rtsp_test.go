package video

import (
	"testing"
	"time"

	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaInfo(t *testing.T) {
	desc := &description.Session{
		Medias: []*description.Media{
			{Type: description.MediaTypeVideo, Formats: []format.Format{&format.H264{PayloadTyp: 96, PacketizationMode: 1}}},
			{Type: description.MediaTypeApplication, Formats: []format.Format{&format.MJPEG{}}},
		},
	}

	infos := mediaInfo(desc)
	require.Len(t, infos, 2)
	assert.Equal(t, "video", infos[0].Type)
	assert.Equal(t, []string{"H264"}, infos[0].Codecs)
	assert.Equal(t, "application", infos[1].Type)
	assert.Len(t, infos[1].Codecs, 1)
}

func TestDescribeRTSP_BadURL(t *testing.T) {
	_, err := DescribeRTSP("http://[::1", time.Second)
	assert.ErrorContains(t, err, "failed to parse URL")
}

func TestDescribeRTSP_Unreachable(t *testing.T) {
	_, err := DescribeRTSP("rtsp://127.0.0.1:1/stream", 200*time.Millisecond)
	assert.Error(t, err)
}
