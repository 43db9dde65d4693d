package timeline

import (
	"encoding/json"
	"io"
	"net/url"
	"path/filepath"

	"github.com/keagan/shotlist/internal/shots"
)

// OpenTimelineIO schema documents. Only the fields needed to describe a
// single video track of clips are modelled.

type otioTimeline struct {
	Schema          string         `json:"OTIO_SCHEMA"`
	Name            string         `json:"name"`
	Metadata        map[string]any `json:"metadata"`
	GlobalStartTime *rationalTime  `json:"global_start_time"`
	Tracks          otioStack      `json:"tracks"`
}

type otioStack struct {
	Schema      string         `json:"OTIO_SCHEMA"`
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata"`
	SourceRange *timeRange     `json:"source_range"`
	Effects     []any          `json:"effects"`
	Markers     []otioMarker   `json:"markers"`
	Enabled     bool           `json:"enabled"`
	Children    []otioTrack    `json:"children"`
}

type otioTrack struct {
	Schema      string         `json:"OTIO_SCHEMA"`
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Metadata    map[string]any `json:"metadata"`
	SourceRange *timeRange     `json:"source_range"`
	Effects     []any          `json:"effects"`
	Markers     []otioMarker   `json:"markers"`
	Enabled     bool           `json:"enabled"`
	Children    []otioClip     `json:"children"`
}

type otioClip struct {
	Schema                  string                    `json:"OTIO_SCHEMA"`
	Name                    string                    `json:"name"`
	Metadata                map[string]any            `json:"metadata"`
	SourceRange             timeRange                 `json:"source_range"`
	Effects                 []any                     `json:"effects"`
	Markers                 []otioMarker              `json:"markers"`
	Enabled                 bool                      `json:"enabled"`
	MediaReferences         map[string]mediaReference `json:"media_references"`
	ActiveMediaReferenceKey string                    `json:"active_media_reference_key"`
}

type otioMarker struct {
	Schema      string         `json:"OTIO_SCHEMA"`
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata"`
	MarkedRange timeRange      `json:"marked_range"`
	Color       string         `json:"color"`
	Comment     string         `json:"comment"`
}

type mediaReference struct {
	Schema         string         `json:"OTIO_SCHEMA"`
	Name           string         `json:"name"`
	Metadata       map[string]any `json:"metadata"`
	TargetURL      string         `json:"target_url,omitempty"`
	AvailableRange *timeRange     `json:"available_range"`
}

type timeRange struct {
	Schema    string       `json:"OTIO_SCHEMA"`
	StartTime rationalTime `json:"start_time"`
	Duration  rationalTime `json:"duration"`
}

type rationalTime struct {
	Schema string  `json:"OTIO_SCHEMA"`
	Rate   float64 `json:"rate"`
	Value  float64 `json:"value"`
}

// defaultMediaKey names the placeholder reference of a clip without media.
const defaultMediaKey = "DEFAULT_MEDIA"

// WriteOTIO writes clips as an OpenTimelineIO JSON timeline with one video
// track. Disabled clips are kept with enabled set to false.
func WriteOTIO(w io.Writer, name string, clips []*shots.Projection) error {
	track := otioTrack{
		Schema:   "Track.1",
		Name:     "Shots",
		Kind:     "Video",
		Metadata: map[string]any{},
		Effects:  []any{},
		Markers:  []otioMarker{},
		Enabled:  true,
		Children: make([]otioClip, 0, len(clips)),
	}
	for _, c := range clips {
		track.Children = append(track.Children, convertClip(c))
	}

	tl := otioTimeline{
		Schema:   "Timeline.1",
		Name:     name,
		Metadata: map[string]any{},
		Tracks: otioStack{
			Schema:   "Stack.1",
			Name:     "tracks",
			Metadata: map[string]any{},
			Effects:  []any{},
			Markers:  []otioMarker{},
			Enabled:  true,
			Children: []otioTrack{track},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(tl)
}

func convertClip(c *shots.Projection) otioClip {
	clip := otioClip{
		Schema:          "Clip.2",
		Name:            c.Name,
		Metadata:        map[string]any{"source": c.Source},
		SourceRange:     convertRange(c.SourceRange),
		Effects:         []any{},
		Markers:         make([]otioMarker, 0, len(c.Markers)),
		Enabled:         c.Enabled,
		MediaReferences: map[string]mediaReference{},
	}

	for _, m := range c.Markers {
		clip.Markers = append(clip.Markers, otioMarker{
			Schema:      "Marker.2",
			Name:        m.Name,
			Metadata:    map[string]any{},
			MarkedRange: convertRange(m.MarkedRange),
			Color:       "RED",
		})
	}

	if c.Missing {
		clip.MediaReferences[defaultMediaKey] = mediaReference{
			Schema:   "MissingReference.1",
			Metadata: map[string]any{},
		}
		clip.ActiveMediaReferenceKey = defaultMediaKey
		return clip
	}

	for key, ref := range c.MediaReferences {
		avail := convertRange(ref.AvailableRange)
		clip.MediaReferences[key] = mediaReference{
			Schema:         "ExternalReference.1",
			Name:           filepath.Base(ref.TargetURL),
			Metadata:       map[string]any{},
			TargetURL:      fileURL(ref.TargetURL),
			AvailableRange: &avail,
		}
	}
	clip.ActiveMediaReferenceKey = c.ActiveMediaKey
	return clip
}

func convertRange(r shots.TimeRange) timeRange {
	rate := r.Rate.Float()
	return timeRange{
		Schema:    "TimeRange.1",
		StartTime: rationalTime{Schema: "RationalTime.1", Rate: rate, Value: float64(r.Start)},
		Duration:  rationalTime{Schema: "RationalTime.1", Rate: rate, Value: float64(r.Duration)},
	}
}

// fileURL turns absolute paths into file:// URLs and leaves anything else as is.
func fileURL(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
