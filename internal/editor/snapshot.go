package editor

import (
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/timecode"
)

// ShotView is a read-only copy of one shot.
type ShotView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Index     int    `json:"index"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Duration  int    `json:"duration"`
	NewStart  int    `json:"new_start"`
	NewEnd    int    `json:"new_end"`
	Timecode  string `json:"timecode"`
	Enabled   bool   `json:"enabled"`
	Ignored   bool   `json:"ignored"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Movie     string `json:"movie,omitempty"`
	Audio     string `json:"audio,omitempty"`
}

// Snapshot is a read-only copy of the open shot list.
type Snapshot struct {
	Source      string        `json:"source"`
	FPS         timecode.Rate `json:"fps"`
	TotalFrames int           `json:"total_frames"`
	Threshold   float64       `json:"threshold"`
	Prefix      string        `json:"prefix"`
	ShotStart   int           `json:"shot_start"`
	ExportDir   string        `json:"export_directory,omitempty"`
	Shots       []ShotView    `json:"shots"`
}

func (e *Editor) snapshot() *Snapshot {
	list := e.seg.Shots()
	snap := &Snapshot{
		Source:      e.seg.Source(),
		FPS:         e.seg.FPS(),
		TotalFrames: e.seg.TotalFrames(),
		Threshold:   e.threshold,
		Prefix:      e.prefix,
		ShotStart:   e.shotStart,
		ExportDir:   e.exportDir,
		Shots:       make([]ShotView, len(list)),
	}
	for i, s := range list {
		snap.Shots[i] = view(s)
	}
	return snap
}

func view(s *shots.Shot) ShotView {
	return ShotView{
		ID:        s.ID(),
		Name:      s.Name(),
		Index:     s.Index(),
		Start:     s.Start(),
		End:       s.End(),
		Duration:  s.Duration(),
		NewStart:  s.NewStart(),
		NewEnd:    s.NewEnd(),
		Timecode:  timecode.FrameToTimecode(s.Start(), s.FPS()),
		Enabled:   s.Enabled(),
		Ignored:   s.Ignored(),
		Thumbnail: s.Thumbnail(),
		Movie:     s.Movie(),
		Audio:     s.Audio(),
	}
}
