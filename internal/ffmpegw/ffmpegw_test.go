package ffmpegw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeResultDuration(t *testing.T) {
	var r ProbeResult
	r.Format.Duration = "12.345"
	assert.InDelta(t, 12.345, r.Duration(), 1e-6)
}

func TestProbeResultDurationMalformedDefaultsZero(t *testing.T) {
	var r ProbeResult
	r.Format.Duration = "not-a-number"
	assert.Equal(t, 0.0, r.Duration())
}

func TestProbeResultResolutionPicksVideoStream(t *testing.T) {
	var r ProbeResult
	r.Streams = append(r.Streams, struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	}{CodecType: "audio"})
	r.Streams = append(r.Streams, struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	}{CodecType: "video", Width: 1280, Height: 720})

	w, h := r.Resolution()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}

func TestTailLinesTruncatesToLastN(t *testing.T) {
	s := "a\nb\nc\nd\ne"
	assert.Equal(t, "d\ne", tailLines(s, 2))
}

func TestTailLinesShorterThanNReturnsWhole(t *testing.T) {
	s := "a\nb"
	assert.Equal(t, s, tailLines(s, 5))
}
