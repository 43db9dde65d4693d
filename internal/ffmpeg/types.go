package ffmpeg

import (
	"errors"
	"time"

	"github.com/keagan/shotlist/pkg/timecode"
)

var (
	// ErrProbe is returned when a source cannot be probed for frame rate and length.
	ErrProbe = errors.New("probe failed")
	// ErrExtraction is returned when a thumbnail, clip, or audio file could not be produced.
	ErrExtraction = errors.New("extraction failed")
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	Path        string        `json:"path" yaml:"path"`
	StreamIndex int           `json:"stream_index" yaml:"stream_index"`
	FPS         timecode.Rate `json:"fps" yaml:"fps"`
	Frames      int           `json:"frames" yaml:"frames"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Width       int           `json:"width" yaml:"width"`
	Height      int           `json:"height" yaml:"height"`
	VideoCodec  string        `json:"video_codec" yaml:"video_codec"`
	HasAudio    bool          `json:"has_audio" yaml:"has_audio"`
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame int
	FPS   float64
	Time  string
	Speed string
}

// ProgressFunc is called once per -progress block.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// AudioFormat defines audio extraction format options
type AudioFormat struct {
	Codec      string
	SampleRate int
	Channels   int
}

// DefaultAudioFormat is 16-bit stereo PCM at 44.1kHz.
func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		Codec:      "pcm_s16le",
		SampleRate: 44100,
		Channels:   2,
	}
}

// Still image codecs that ffprobe reports as video streams (cover art, attachments).
var stillImageCodecs = map[string]bool{
	"mjpeg": true,
	"png":   true,
	"bmp":   true,
	"gif":   true,
}
