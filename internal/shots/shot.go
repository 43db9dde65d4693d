package shots

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keagan/shotlist/pkg/timecode"
)

// DefaultNewStart is the first frame of a shot in the re-timed output sequence.
const DefaultNewStart = 101

// Shot is one contiguous frame range of the source video.
// Range and flags change only through setters so the projection cache stays valid.
type Shot struct {
	id     string
	source string
	fps    timecode.Rate

	start int
	end   int

	index    int
	newStart int
	enabled  bool
	ignored  bool
	prefix   string

	thumbnail string
	movie     string
	audio     string

	dirty      bool
	projection *Projection
}

// New creates an enabled shot spanning [start, end].
func New(source string, fps timecode.Rate, start, end int) (*Shot, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: [%d-%d]", ErrInvalidRange, start, end)
	}
	if fps.IsZero() {
		return nil, fmt.Errorf("%w: frame rate is required", ErrInvalidRange)
	}
	return &Shot{
		id:       uuid.NewString(),
		source:   source,
		fps:      fps,
		start:    start,
		end:      end,
		newStart: DefaultNewStart,
		enabled:  true,
		dirty:    true,
	}, nil
}

func (s *Shot) ID() string          { return s.id }
func (s *Shot) Source() string      { return s.source }
func (s *Shot) FPS() timecode.Rate  { return s.fps }
func (s *Shot) Start() int          { return s.start }
func (s *Shot) End() int            { return s.end }
func (s *Shot) Index() int          { return s.index }
func (s *Shot) NewStart() int       { return s.newStart }
func (s *Shot) Enabled() bool       { return s.enabled }
func (s *Shot) Ignored() bool       { return s.ignored }
func (s *Shot) Prefix() string      { return s.prefix }
func (s *Shot) Thumbnail() string   { return s.thumbnail }
func (s *Shot) Movie() string       { return s.movie }
func (s *Shot) Audio() string       { return s.audio }
func (s *Shot) IsDirty() bool       { return s.dirty }
func (s *Shot) Contains(f int) bool { return s.start <= f && f <= s.end }

// Duration is the inclusive frame count of the range.
func (s *Shot) Duration() int {
	return s.end - s.start + 1
}

// NewEnd is the last frame in the re-timed output sequence.
func (s *Shot) NewEnd() int {
	return s.newStart + s.Duration() - 1
}

func (s *Shot) StartSeconds() float64 {
	return timecode.FramesToSeconds(s.start, s.fps)
}

func (s *Shot) EndSeconds() float64 {
	return timecode.FramesToSeconds(s.end, s.fps)
}

func (s *Shot) DurationSeconds() float64 {
	return timecode.FramesToSeconds(s.Duration(), s.fps)
}

// Name derives {PREFIX_}SH{index:03d}{_IGNORED} from the current state.
func (s *Shot) Name() string {
	var b strings.Builder
	if s.prefix != "" {
		b.WriteString(strings.ToUpper(s.prefix))
		b.WriteByte('_')
	}
	fmt.Fprintf(&b, "SH%03d", s.index)
	if s.ignored {
		b.WriteString("_IGNORED")
	}
	return b.String()
}

func (s *Shot) String() string {
	return fmt.Sprintf("%s [%d-%d] -> [%d-%d][Dur:%d]",
		s.Name(), s.start, s.end, s.newStart, s.NewEnd(), s.Duration())
}

// SetStart moves the first frame while the last frame stays fixed.
func (s *Shot) SetStart(frame int) error {
	if frame < 0 || frame > s.end {
		return fmt.Errorf("%w: start %d past end %d", ErrInvalidRange, frame, s.end)
	}
	s.start = frame
	s.touch()
	return nil
}

// SetEnd moves the last frame while the first frame stays fixed.
func (s *Shot) SetEnd(frame int) error {
	if frame < s.start {
		return fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, frame, s.start)
	}
	s.end = frame
	s.touch()
	return nil
}

// SetDuration keeps the first frame and sets end = start + n - 1.
func (s *Shot) SetDuration(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: duration %d", ErrInvalidRange, n)
	}
	s.end = s.start + n - 1
	s.touch()
	return nil
}

// SetNewEnd changes the duration so the re-timed range ends at frame.
func (s *Shot) SetNewEnd(frame int) error {
	if frame < s.newStart {
		return fmt.Errorf("%w: new end %d before new start %d", ErrInvalidRange, frame, s.newStart)
	}
	return s.SetDuration(frame - s.newStart + 1)
}

func (s *Shot) SetNewStart(frame int) {
	s.newStart = frame
	s.touch()
}

func (s *Shot) SetEnabled(v bool) {
	s.enabled = v
	s.touch()
}

func (s *Shot) SetIgnored(v bool) {
	s.ignored = v
	s.touch()
}

func (s *Shot) SetPrefix(p string) {
	s.prefix = p
	s.touch()
}

func (s *Shot) SetThumbnail(ref string) {
	s.thumbnail = ref
	s.touch()
}

func (s *Shot) SetMovie(ref string) {
	s.movie = ref
	s.touch()
}

func (s *Shot) SetAudio(ref string) {
	s.audio = ref
	s.touch()
}

// setIndex is reserved to Renumber; the index is not part of the dirty state.
func (s *Shot) setIndex(i int) {
	s.index = i
}

func (s *Shot) touch() {
	s.dirty = true
}
