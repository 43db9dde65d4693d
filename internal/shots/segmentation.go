package shots

import (
	"fmt"
	"slices"
	"sort"

	"github.com/keagan/shotlist/pkg/timecode"
)

// Segmentation is an ordered list of shots partitioning [0, totalFrames).
// It is not safe for concurrent use; callers serialize edits.
type Segmentation struct {
	source      string
	fps         timecode.Rate
	totalFrames int
	shots       []*Shot

	// shots whose visible range changed and need a new thumbnail
	stale []*Shot
}

// BuildFromDetection partitions the frame range at the detected cut frames.
// Frames before the first cut become an ignored, disabled filler shot.
func BuildFromDetection(cuts []int, totalFrames int, fps timecode.Rate, source string) (*Segmentation, error) {
	if totalFrames < 1 {
		return nil, fmt.Errorf("%w: total frames %d", ErrInvalidRange, totalFrames)
	}
	if fps.IsZero() {
		return nil, fmt.Errorf("%w: frame rate is required", ErrInvalidRange)
	}

	points := normalizeCuts(cuts, totalFrames)
	if len(points) == 0 {
		return nil, ErrNoShotsDetected
	}

	seg := &Segmentation{source: source, fps: fps, totalFrames: totalFrames}

	if points[0] != 0 {
		filler, err := New(source, fps, 0, points[0]-1)
		if err != nil {
			return nil, err
		}
		filler.ignored = true
		filler.enabled = false
		seg.shots = append(seg.shots, filler)
	}

	for i, start := range points {
		end := totalFrames - 1
		if i+1 < len(points) {
			end = points[i+1] - 1
		}
		s, err := New(source, fps, start, end)
		if err != nil {
			return nil, err
		}
		seg.shots = append(seg.shots, s)
	}

	seg.stale = append(seg.stale, seg.shots...)
	seg.Renumber()
	return seg, nil
}

// normalizeCuts sorts and de-duplicates cuts, dropping those outside [0, total).
func normalizeCuts(cuts []int, total int) []int {
	out := make([]int, 0, len(cuts))
	for _, c := range cuts {
		if c >= 0 && c < total {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Restore rebuilds a segmentation from persisted records.
func Restore(records []Record, totalFrames int) (*Segmentation, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no shots", ErrInvalidSession)
	}
	seg := &Segmentation{totalFrames: totalFrames}
	for i, r := range records {
		s, err := FromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("%w: shot %d: %v", ErrInvalidSession, i, err)
		}
		seg.shots = append(seg.shots, s)
	}

	first := seg.shots[0]
	seg.source, seg.fps = first.source, first.fps
	if seg.totalFrames < 1 {
		seg.totalFrames = slices.MaxFunc(seg.shots, func(a, b *Shot) int { return a.end - b.end }).end + 1
	}
	for _, s := range seg.shots {
		if s.fps != seg.fps {
			return nil, fmt.Errorf("%w: mixed frame rates %s and %s", ErrInvalidSession, seg.fps, s.fps)
		}
	}

	seg.sortShots()
	if err := seg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	seg.assignIndices()
	return seg, nil
}

func (g *Segmentation) Source() string     { return g.source }
func (g *Segmentation) FPS() timecode.Rate { return g.fps }
func (g *Segmentation) TotalFrames() int   { return g.totalFrames }
func (g *Segmentation) Len() int           { return len(g.shots) }

// Shots returns the shots in start order. The slice is a copy; the shots are not.
func (g *Segmentation) Shots() []*Shot {
	return slices.Clone(g.shots)
}

// At returns the shot containing frame.
func (g *Segmentation) At(frame int) (*Shot, bool) {
	i := g.indexContaining(frame)
	if i < 0 {
		return nil, false
	}
	return g.shots[i], true
}

func (g *Segmentation) ByName(name string) (*Shot, bool) {
	for _, s := range g.shots {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

func (g *Segmentation) ByID(id string) (*Shot, bool) {
	for _, s := range g.shots {
		if s.id == id {
			return s, true
		}
	}
	return nil, false
}

// Prev returns the start of the last shot beginning before frame.
func (g *Segmentation) Prev(frame int) (int, bool) {
	for i := len(g.shots) - 1; i >= 0; i-- {
		if g.shots[i].start < frame {
			return g.shots[i].start, true
		}
	}
	return 0, false
}

// Next returns the start of the first shot beginning after frame.
func (g *Segmentation) Next(frame int) (int, bool) {
	for _, s := range g.shots {
		if s.start > frame {
			return s.start, true
		}
	}
	return 0, false
}

// AddBoundary splits the shot containing at so that a new shot starts at at.
// It reports false when no shot contains at or a shot already starts there.
func (g *Segmentation) AddBoundary(at int) bool {
	i := g.indexContaining(at)
	if i < 0 || g.shots[i].start == at {
		return false
	}
	s := g.shots[i]

	added, err := New(g.source, g.fps, at, s.end)
	if err != nil {
		return false
	}
	added.prefix = s.prefix
	added.newStart = s.newStart
	if err := s.SetEnd(at - 1); err != nil {
		return false
	}
	clearCuts(s)

	g.shots = slices.Insert(g.shots, i+1, added)
	g.markStale(added)
	g.Renumber()
	return true
}

// RemoveBoundary merges the shot starting at at into its predecessor.
func (g *Segmentation) RemoveBoundary(at int) error {
	i := g.indexStarting(at)
	if i < 0 {
		return fmt.Errorf("%w: no shot starts at %d", ErrNoBoundary, at)
	}
	if i == 0 {
		return ErrFirstShot
	}
	g.mergeIntoPrev(i)
	g.Renumber()
	return nil
}

// DeleteSegment removes the shot containing at. Its frames go to the
// predecessor, or to the successor when it is the first shot.
func (g *Segmentation) DeleteSegment(at int) error {
	i := g.indexContaining(at)
	if i < 0 {
		return fmt.Errorf("%w: no shot contains %d", ErrNoBoundary, at)
	}
	if len(g.shots) == 1 {
		return ErrLastShot
	}

	if i > 0 {
		g.mergeIntoPrev(i)
	} else {
		next := g.shots[1]
		if err := next.SetStart(g.shots[0].start); err != nil {
			return err
		}
		next.SetThumbnail("")
		clearCuts(next)
		g.markStale(next)
		g.removeAt(0)
	}
	g.Renumber()
	return nil
}

// MoveBoundary moves the first frame of s to newStart and resizes its
// predecessor to stay adjacent. The end of s does not change.
func (g *Segmentation) MoveBoundary(s *Shot, newStart int) error {
	i := slices.Index(g.shots, s)
	if i < 0 {
		return ErrUnknownShot
	}
	if newStart == s.start {
		return nil
	}
	if i == 0 {
		return ErrFirstShot
	}
	prev := g.shots[i-1]
	if newStart <= prev.start || newStart > s.end {
		return fmt.Errorf("%w: start %d outside (%d, %d]", ErrBoundaryCollision, newStart, prev.start, s.end)
	}

	if err := s.SetStart(newStart); err != nil {
		return err
	}
	if err := prev.SetEnd(newStart - 1); err != nil {
		return err
	}
	s.SetThumbnail("")
	clearCuts(s)
	clearCuts(prev)
	g.markStale(s)
	g.Renumber()
	return nil
}

// MoveEnd moves the last frame of s to newEnd and resizes its successor.
func (g *Segmentation) MoveEnd(s *Shot, newEnd int) error {
	i := slices.Index(g.shots, s)
	if i < 0 {
		return ErrUnknownShot
	}
	if newEnd == s.end {
		return nil
	}
	if i == len(g.shots)-1 {
		return ErrLastShot
	}
	next := g.shots[i+1]
	if newEnd < s.start || newEnd >= next.end {
		return fmt.Errorf("%w: end %d outside [%d, %d)", ErrBoundaryCollision, newEnd, s.start, next.end)
	}

	if err := s.SetEnd(newEnd); err != nil {
		return err
	}
	if err := next.SetStart(newEnd + 1); err != nil {
		return err
	}
	next.SetThumbnail("")
	clearCuts(s)
	clearCuts(next)
	g.markStale(next)
	g.Renumber()
	return nil
}

// SetPrefix applies p to every shot.
func (g *Segmentation) SetPrefix(p string) {
	for _, s := range g.shots {
		s.SetPrefix(p)
	}
}

// SetNewStart gives every shot the same re-timed start frame.
func (g *Segmentation) SetNewStart(frame int) {
	for _, s := range g.shots {
		s.SetNewStart(frame)
	}
}

// RetimeSequential lays enabled shots end to end starting at frame.
// Disabled shots keep frame as their start.
func (g *Segmentation) RetimeSequential(frame int) {
	next := frame
	for _, s := range g.shots {
		if !s.enabled || s.ignored {
			s.SetNewStart(frame)
			continue
		}
		s.SetNewStart(next)
		next = s.NewEnd() + 1
	}
}

// TakeStale returns shots whose media needs regenerating and clears the list.
// Shots merged away since they were marked are left out.
func (g *Segmentation) TakeStale() []*Shot {
	var out []*Shot
	for _, s := range g.stale {
		if slices.Contains(g.shots, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	g.stale = nil
	return out
}

// Renumber sorts shots by start and assigns display indices. Normal shots get
// multiples of ten; ignored shots sit between neighbors at counter*10+5.
// It panics with *InvariantViolation when the shots no longer partition the range.
func (g *Segmentation) Renumber() {
	g.sortShots()
	if err := g.Validate(); err != nil {
		panic(err)
	}
	g.assignIndices()
}

// Validate checks that shots cover [0, totalFrames) without gaps or overlaps.
func (g *Segmentation) Validate() error {
	if len(g.shots) == 0 {
		return &InvariantViolation{Position: 0, Reason: "no shots"}
	}
	if first := g.shots[0]; first.start != 0 {
		return &InvariantViolation{Position: 0, Reason: fmt.Sprintf("first shot starts at %d", first.start)}
	}
	for i, s := range g.shots {
		if s.end < s.start {
			return &InvariantViolation{Position: i, Reason: fmt.Sprintf("end %d before start %d", s.end, s.start)}
		}
		if i > 0 && s.start != g.shots[i-1].end+1 {
			return &InvariantViolation{
				Position: i,
				Reason:   fmt.Sprintf("starts at %d, previous shot ends at %d", s.start, g.shots[i-1].end),
			}
		}
	}
	if last := g.shots[len(g.shots)-1]; last.end != g.totalFrames-1 {
		return &InvariantViolation{
			Position: len(g.shots) - 1,
			Reason:   fmt.Sprintf("last shot ends at %d, want %d", last.end, g.totalFrames-1),
		}
	}
	return nil
}

// Records returns the persisted form of every shot in order.
func (g *Segmentation) Records() []Record {
	out := make([]Record, len(g.shots))
	for i, s := range g.shots {
		out[i] = s.Record()
	}
	return out
}

// Projections returns the timeline view of every shot in order.
func (g *Segmentation) Projections() []*Projection {
	out := make([]*Projection, len(g.shots))
	for i, s := range g.shots {
		out[i] = s.Projection()
	}
	return out
}

func (g *Segmentation) assignIndices() {
	counter := 0
	for _, s := range g.shots {
		if s.ignored {
			s.setIndex(counter*10 + 5)
			continue
		}
		counter++
		s.setIndex(counter * 10)
	}
}

func (g *Segmentation) sortShots() {
	sort.SliceStable(g.shots, func(i, j int) bool {
		return g.shots[i].start < g.shots[j].start
	})
}

func (g *Segmentation) mergeIntoPrev(i int) {
	prev, s := g.shots[i-1], g.shots[i]
	// cannot fail: s.end >= s.start > prev.start
	_ = prev.SetEnd(s.end)
	clearCuts(prev)
	g.removeAt(i)
}

func (g *Segmentation) removeAt(i int) {
	g.shots = slices.Delete(g.shots, i, i+1)
}

// clearCuts drops the movie and audio handles of a shot whose range changed.
// The files on disk no longer match and are rewritten by the next export.
func clearCuts(s *Shot) {
	s.SetMovie("")
	s.SetAudio("")
}

func (g *Segmentation) markStale(s *Shot) {
	g.stale = append(g.stale, s)
}

func (g *Segmentation) indexContaining(frame int) int {
	i := sort.Search(len(g.shots), func(i int) bool { return g.shots[i].end >= frame })
	if i < len(g.shots) && g.shots[i].Contains(frame) {
		return i
	}
	return -1
}

func (g *Segmentation) indexStarting(frame int) int {
	i := g.indexContaining(frame)
	if i >= 0 && g.shots[i].start == frame {
		return i
	}
	return -1
}
