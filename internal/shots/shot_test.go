package shots

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/keagan/shotlist/pkg/timecode"
)

var fps24 = timecode.MustRate(24, 1)

func newShot(t *testing.T, start, end int) *Shot {
	t.Helper()
	s, err := New("/media/source.mov", fps24, start, end)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", start, end, err)
	}
	return s
}

func TestNewRejectsInvalidRange(t *testing.T) {
	if _, err := New("x.mov", fps24, 10, 9); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("end before start: err = %v, want ErrInvalidRange", err)
	}
	if _, err := New("x.mov", fps24, -1, 9); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("negative start: err = %v, want ErrInvalidRange", err)
	}
	if _, err := New("x.mov", timecode.Rate{}, 0, 9); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("zero fps: err = %v, want ErrInvalidRange", err)
	}
}

func TestSettersKeepFixedEndpoint(t *testing.T) {
	s := newShot(t, 100, 249)

	if err := s.SetStart(120); err != nil {
		t.Fatalf("SetStart: %v", err)
	}
	if s.Start() != 120 || s.End() != 249 {
		t.Fatalf("SetStart moved end: [%d-%d]", s.Start(), s.End())
	}
	if s.Duration() != 130 {
		t.Fatalf("Duration() = %d, want 130", s.Duration())
	}

	if err := s.SetEnd(200); err != nil {
		t.Fatalf("SetEnd: %v", err)
	}
	if s.Start() != 120 || s.End() != 200 {
		t.Fatalf("SetEnd moved start: [%d-%d]", s.Start(), s.End())
	}

	if err := s.SetDuration(10); err != nil {
		t.Fatalf("SetDuration: %v", err)
	}
	if s.Start() != 120 || s.End() != 129 {
		t.Fatalf("SetDuration moved start: [%d-%d]", s.Start(), s.End())
	}
}

func TestSettersRejectInvalid(t *testing.T) {
	s := newShot(t, 10, 20)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"start past end", func() error { return s.SetStart(21) }},
		{"negative start", func() error { return s.SetStart(-1) }},
		{"end before start", func() error { return s.SetEnd(9) }},
		{"zero duration", func() error { return s.SetDuration(0) }},
		{"new end before new start", func() error { return s.SetNewEnd(s.NewStart() - 1) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn(); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("err = %v, want ErrInvalidRange", err)
			}
			if s.Start() != 10 || s.End() != 20 {
				t.Fatalf("rejected setter mutated range: [%d-%d]", s.Start(), s.End())
			}
		})
	}
}

func TestSetNewEnd(t *testing.T) {
	s := newShot(t, 0, 99)
	if s.NewEnd() != 200 {
		t.Fatalf("NewEnd() = %d, want 200", s.NewEnd())
	}
	if err := s.SetNewEnd(150); err != nil {
		t.Fatalf("SetNewEnd: %v", err)
	}
	if s.Start() != 0 || s.End() != 49 {
		t.Fatalf("range = [%d-%d], want [0-49]", s.Start(), s.End())
	}
}

func TestNameAndString(t *testing.T) {
	s := newShot(t, 0, 99)
	s.setIndex(10)
	if got := s.String(); got != "SH010 [0-99] -> [101-200][Dur:100]" {
		t.Fatalf("String() = %q", got)
	}

	s.SetPrefix("intro")
	if got := s.Name(); got != "INTRO_SH010" {
		t.Fatalf("Name() = %q, want INTRO_SH010", got)
	}

	s.SetIgnored(true)
	s.setIndex(5)
	if got := s.Name(); got != "INTRO_SH005_IGNORED" {
		t.Fatalf("Name() = %q, want INTRO_SH005_IGNORED", got)
	}
}

func TestSecondsAccessors(t *testing.T) {
	s := newShot(t, 24, 71)
	if s.StartSeconds() != 1 || s.EndSeconds() != 71.0/24 || s.DurationSeconds() != 2 {
		t.Fatalf("seconds = %v %v %v", s.StartSeconds(), s.EndSeconds(), s.DurationSeconds())
	}
	if !s.Contains(24) || !s.Contains(71) || s.Contains(72) || s.Contains(23) {
		t.Fatal("Contains does not match inclusive bounds")
	}
}

func TestProjectionCache(t *testing.T) {
	s := newShot(t, 100, 249)
	s.setIndex(20)

	p1 := s.Projection()
	if s.IsDirty() {
		t.Fatal("Projection() should clear dirty")
	}
	if p2 := s.Projection(); p2 != p1 {
		t.Fatal("clean shot rebuilt its projection")
	}

	if p1.Name != "SH020" || p1.SourceRange.Start != 100 || p1.SourceRange.Duration != 150 {
		t.Fatalf("projection = %+v", p1)
	}
	if !p1.Enabled || !p1.Missing || p1.ActiveMediaKey != "" {
		t.Fatalf("projection flags = enabled %v missing %v active %q", p1.Enabled, p1.Missing, p1.ActiveMediaKey)
	}
	if len(p1.Markers) != 1 || p1.Markers[0].MarkedRange.Start != 100 || p1.Markers[0].MarkedRange.Duration != 0 {
		t.Fatalf("markers = %+v", p1.Markers)
	}

	s.SetThumbnail("/out/SH020.jpg")
	p3 := s.Projection()
	if p3 == p1 {
		t.Fatal("setter did not invalidate projection")
	}
	if p3.Missing || p3.ActiveMediaKey != RefThumbnail {
		t.Fatalf("thumbnail projection = %+v", p3)
	}

	s.SetMovie("/out/SH020.mov")
	if p := s.Projection(); p.ActiveMediaKey != RefMovie || len(p.MediaReferences) != 2 {
		t.Fatalf("movie projection = %+v", p)
	}

	s.SetIgnored(true)
	if s.Projection().Enabled {
		t.Fatal("ignored shot projected as enabled")
	}
}

func TestProjectionFollowsRename(t *testing.T) {
	s := newShot(t, 0, 9)
	s.setIndex(10)
	p := s.Projection()
	s.setIndex(20)
	if s.IsDirty() {
		t.Fatal("setIndex should not mark dirty")
	}
	if got := s.Projection(); got == p || got.Name != "SH020" {
		t.Fatalf("projection name = %q after renumber", got.Name)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	s, err := New("/media/a.mov", timecode.MustRate(24000, 1001), 48, 95)
	if err != nil {
		t.Fatal(err)
	}
	s.SetNewStart(1001)
	s.SetEnabled(false)
	s.SetIgnored(true)
	s.SetPrefix("abc")
	s.SetThumbnail("t.jpg")
	s.SetMovie("m.mov")
	s.SetAudio("a.wav")

	data, err := json.Marshal(s.Record())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}

	if got.ID() != s.ID() || got.Start() != 48 || got.End() != 95 || got.FPS() != s.FPS() {
		t.Fatalf("range/identity mismatch: %v", got)
	}
	if got.NewStart() != 1001 || got.Enabled() || !got.Ignored() || got.Prefix() != "abc" {
		t.Fatalf("flags mismatch: %+v", got.Record())
	}
	if got.Thumbnail() != "t.jpg" || got.Movie() != "m.mov" || got.Audio() != "a.wav" {
		t.Fatalf("media mismatch: %+v", got.Record())
	}
}

func TestFromRecordRejectsEmptyRange(t *testing.T) {
	_, err := FromRecord(Record{FPS: fps24, Range: RangeRecord{StartTime: 0, Duration: 0}})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}
