package shots

import "github.com/keagan/shotlist/pkg/timecode"

// Media reference keys of a projection.
const (
	RefThumbnail = "thumbnail"
	RefMovie     = "reference"
)

// TimeRange is a frame range at a rational rate.
type TimeRange struct {
	Start    int
	Duration int
	Rate     timecode.Rate
}

// EndInclusive returns the last frame of the range.
func (r TimeRange) EndInclusive() int {
	return r.Start + r.Duration - 1
}

// Marker flags a single frame of a clip.
type Marker struct {
	Name        string
	MarkedRange TimeRange
}

// MediaReference points at a file produced by the media extractor.
type MediaReference struct {
	TargetURL      string
	AvailableRange TimeRange
}

// Projection is the timeline-clip view of a shot consumed by timeline writers.
type Projection struct {
	Name            string
	Source          string
	SourceRange     TimeRange
	Enabled         bool
	Markers         []Marker
	MediaReferences map[string]MediaReference
	ActiveMediaKey  string
	// Missing is set when no media reference is attached.
	Missing bool
}

// Projection returns the cached projection, rebuilding it when the shot is
// dirty or when Renumber renamed it since the last build.
func (s *Shot) Projection() *Projection {
	if !s.dirty && s.projection != nil && s.projection.Name == s.Name() {
		return s.projection
	}

	name := s.Name()
	marker := TimeRange{Start: s.start, Duration: 0, Rate: s.fps}
	p := &Projection{
		Name:   name,
		Source: s.source,
		SourceRange: TimeRange{
			Start:    s.start,
			Duration: s.Duration(),
			Rate:     s.fps,
		},
		Enabled:         s.enabled && !s.ignored,
		Markers:         []Marker{{Name: name, MarkedRange: marker}},
		MediaReferences: make(map[string]MediaReference),
	}

	if s.thumbnail != "" {
		p.MediaReferences[RefThumbnail] = MediaReference{TargetURL: s.thumbnail, AvailableRange: marker}
		p.ActiveMediaKey = RefThumbnail
	}
	if s.movie != "" {
		p.MediaReferences[RefMovie] = MediaReference{TargetURL: s.movie, AvailableRange: marker}
		p.ActiveMediaKey = RefMovie
	}

	p.Missing = len(p.MediaReferences) == 0
	s.projection = p
	s.dirty = false
	return p
}
