package shots

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/keagan/shotlist/pkg/timecode"
)

// Record is the persisted form of a shot inside a session file.
type Record struct {
	ID        string        `json:"id,omitempty"`
	Index     int           `json:"index"`
	FPS       timecode.Rate `json:"fps"`
	Source    string        `json:"source"`
	Range     RangeRecord   `json:"range"`
	NewStart  int           `json:"new_start"`
	Thumbnail string        `json:"thumbnail"`
	Movie     string        `json:"movie"`
	Audio     string        `json:"audio"`
	Prefix    string        `json:"prefix"`
	Enabled   bool          `json:"enabled"`
	Ignored   bool          `json:"ignored"`
}

// RangeRecord stores a range in frames.
type RangeRecord struct {
	StartTime int `json:"start_time"`
	Duration  int `json:"duration"`
}

// Record returns the persisted form of the shot.
func (s *Shot) Record() Record {
	return Record{
		ID:        s.id,
		Index:     s.index,
		FPS:       s.fps,
		Source:    s.source,
		Range:     RangeRecord{StartTime: s.start, Duration: s.Duration()},
		NewStart:  s.newStart,
		Thumbnail: s.thumbnail,
		Movie:     s.movie,
		Audio:     s.audio,
		Prefix:    s.prefix,
		Enabled:   s.enabled,
		Ignored:   s.ignored,
	}
}

// FromRecord rebuilds a shot. Records written before shots carried an id get a fresh one.
func FromRecord(r Record) (*Shot, error) {
	if r.Range.Duration < 1 || r.Range.StartTime < 0 {
		return nil, fmt.Errorf("%w: start %d duration %d", ErrInvalidRange, r.Range.StartTime, r.Range.Duration)
	}
	if r.FPS.IsZero() {
		return nil, fmt.Errorf("%w: frame rate is required", ErrInvalidRange)
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Shot{
		id:        id,
		source:    r.Source,
		fps:       r.FPS,
		start:     r.Range.StartTime,
		end:       r.Range.StartTime + r.Range.Duration - 1,
		index:     r.Index,
		newStart:  r.NewStart,
		enabled:   r.Enabled,
		ignored:   r.Ignored,
		prefix:    r.Prefix,
		thumbnail: r.Thumbnail,
		movie:     r.Movie,
		audio:     r.Audio,
		dirty:     true,
	}, nil
}
