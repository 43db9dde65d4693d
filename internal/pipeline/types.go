package pipeline

import (
	"context"
	"time"

	"github.com/keagan/shotlist/internal/ffmpeg"
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/timecode"
)

// Prober reads frame rate and frame count of a source.
type Prober interface {
	Probe(ctx context.Context, source string) (*ffmpeg.VideoInfo, error)
}

// Detector finds scene cuts. threshold is a 0-100 sensitivity.
type Detector interface {
	DetectCuts(ctx context.Context, source string, fps timecode.Rate, threshold float64) ([]int, error)
}

// Extractor writes per-shot media files. Frame ranges are inclusive.
type Extractor interface {
	ExtractThumbnail(ctx context.Context, source string, frame int, fps timecode.Rate, out string) error
	ExtractClip(ctx context.Context, source string, start, end int, fps timecode.Rate, out string) error
	ExtractAudio(ctx context.Context, source string, start, end int, fps timecode.Rate, out string) error
}

// Project is a source video with its current shot list.
type Project struct {
	Source       string
	Info         *ffmpeg.VideoInfo
	Threshold    float64
	Segmentation *shots.Segmentation
	CreatedAt    time.Time
}

// AnalyzeOptions configures detection and the defaults applied to new shots.
type AnalyzeOptions struct {
	Threshold float64
	Prefix    string
	NewStart  int
}

// ExportOptions selects the files written by Export.
type ExportOptions struct {
	Dir            string
	Thumbnails     bool
	Movies         bool
	Audio          bool
	EDL            bool
	OTIO           bool
	FCPXML         bool
	ShotList       bool
	ThumbnailWidth int
}

// ExportReport summarizes an export. Media failures are counted, not fatal.
type ExportReport struct {
	Thumbnails int
	Movies     int
	Audio      int
	Timelines  []string
	Errors     int
}

// Config holds pipeline-specific configuration
type Config struct {
	Workers int
	// MediaDir holds working thumbnails generated while editing.
	MediaDir       string
	ThumbnailWidth int
}
