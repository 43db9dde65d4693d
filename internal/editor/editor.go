// Package editor holds the open shot list of one source and serializes
// every edit to it. Each successful edit refreshes stale thumbnails and
// writes the auto-save.
package editor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/keagan/shotlist/internal/config"
	"github.com/keagan/shotlist/internal/ffmpeg"
	"github.com/keagan/shotlist/internal/pipeline"
	"github.com/keagan/shotlist/internal/session"
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/util"
	"github.com/rs/zerolog"
)

// ErrNoSource is returned by edits made before a source is opened.
var ErrNoSource = errors.New("no source open")

// Media is the part of the pipeline the editor drives.
type Media interface {
	Analyze(ctx context.Context, source string, opts pipeline.AnalyzeOptions) (*pipeline.Project, error)
	RefreshMedia(ctx context.Context, seg *shots.Segmentation) (int, error)
	Export(ctx context.Context, seg *shots.Segmentation, opts pipeline.ExportOptions) (*pipeline.ExportReport, error)
}

// Options controls editor side effects.
type Options struct {
	// Thumbnails regenerates working thumbnails after every edit.
	Thumbnails bool
}

type Editor struct {
	mu     sync.Mutex
	logger zerolog.Logger
	cfg    *config.Config
	media  Media
	store  *session.Store
	opts   Options

	info      *ffmpeg.VideoInfo
	threshold float64
	prefix    string
	shotStart int
	exportDir string
	seg       *shots.Segmentation
}

func New(logger zerolog.Logger, cfg *config.Config, media Media, store *session.Store, opts Options) *Editor {
	return &Editor{
		logger: logger.With().Str("component", "editor").Logger(),
		cfg:    cfg,
		media:  media,
		store:  store,
		opts:   opts,
	}
}

// OpenOptions selects how a source is opened.
type OpenOptions struct {
	// Redetect ignores any auto-save and runs scene detection again.
	Redetect bool
	// Threshold overrides detection.threshold when non-zero.
	Threshold float64
}

// Open loads the auto-save for source, or detects shots when there is none.
func (e *Editor) Open(ctx context.Context, source string, opts OpenOptions) (*Snapshot, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	loaded := false
	if !opts.Redetect {
		loaded, err = e.restore(abs)
		if err != nil {
			return nil, err
		}
	}

	if !loaded {
		threshold := opts.Threshold
		if threshold == 0 {
			threshold = e.cfg.Detection.Threshold
		}
		project, err := e.media.Analyze(ctx, abs, pipeline.AnalyzeOptions{
			Threshold: threshold,
			Prefix:    e.cfg.Shots.Prefix,
			NewStart:  e.cfg.Shots.NewStart,
		})
		if err != nil {
			return nil, err
		}
		e.info = project.Info
		e.threshold = project.Threshold
		e.prefix = e.cfg.Shots.Prefix
		e.shotStart = e.cfg.Shots.NewStart
		e.exportDir = e.cfg.Export.Directory
		e.seg = project.Segmentation
	}

	if err := e.store.SetLastOpen(abs); err != nil {
		e.logger.Warn().Err(err).Msg("failed to record last opened source")
	}
	if err := e.commit(ctx); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("source", abs).
		Bool("restored", loaded).
		Int("shots", e.seg.Len()).
		Msg("source opened")
	return e.snapshot(), nil
}

// OpenLast reopens the most recently opened source.
func (e *Editor) OpenLast(ctx context.Context) (*Snapshot, error) {
	source, err := e.store.LastOpen()
	if err != nil {
		return nil, err
	}
	return e.Open(ctx, source, OpenOptions{})
}

func (e *Editor) restore(source string) (bool, error) {
	f, err := e.store.Load(source)
	if errors.Is(err, session.ErrNotFound) {
		return false, nil
	}
	if errors.Is(err, shots.ErrInvalidSession) {
		e.logger.Warn().Err(err).Msg("ignoring unreadable auto-save")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	seg, err := f.Segmentation()
	if err != nil {
		e.logger.Warn().Err(err).Msg("ignoring inconsistent auto-save")
		return false, nil
	}

	e.info = f.Probe
	e.threshold = f.Threshold
	e.prefix = f.Prefix
	e.shotStart = f.ShotStart
	e.exportDir = f.ExportDirectory
	e.seg = seg
	return true, nil
}

// Snapshot returns the current shot list.
func (e *Editor) Snapshot() (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seg == nil {
		return nil, ErrNoSource
	}
	return e.snapshot(), nil
}

// View runs fn with the open segmentation under the editor lock. fn must not
// keep the segmentation or edit it.
func (e *Editor) View(fn func(seg *shots.Segmentation) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seg == nil {
		return ErrNoSource
	}
	return fn(e.seg)
}

// Split starts a new shot at frame.
func (e *Editor) Split(ctx context.Context, frame int) (*Snapshot, error) {
	return e.edit(ctx, func(seg *shots.Segmentation) error {
		if !seg.AddBoundary(frame) {
			return fmt.Errorf("%w: cannot split at frame %d", shots.ErrBoundaryCollision, frame)
		}
		return nil
	})
}

// Merge removes the boundary at frame, joining that shot to the previous one.
func (e *Editor) Merge(ctx context.Context, frame int) (*Snapshot, error) {
	return e.edit(ctx, func(seg *shots.Segmentation) error {
		return seg.RemoveBoundary(frame)
	})
}

// Delete removes the shot containing frame.
func (e *Editor) Delete(ctx context.Context, frame int) (*Snapshot, error) {
	return e.edit(ctx, func(seg *shots.Segmentation) error {
		return seg.DeleteSegment(frame)
	})
}

// MoveStart moves the first frame of the named shot.
func (e *Editor) MoveStart(ctx context.Context, ref string, frame int) (*Snapshot, error) {
	return e.edit(ctx, func(seg *shots.Segmentation) error {
		s, err := lookup(seg, ref)
		if err != nil {
			return err
		}
		return seg.MoveBoundary(s, frame)
	})
}

// MoveEnd moves the last frame of the named shot.
func (e *Editor) MoveEnd(ctx context.Context, ref string, frame int) (*Snapshot, error) {
	return e.edit(ctx, func(seg *shots.Segmentation) error {
		s, err := lookup(seg, ref)
		if err != nil {
			return err
		}
		return seg.MoveEnd(s, frame)
	})
}

// Update describes per-shot changes. Nil fields are left alone. Start and
// End move the shot's boundaries, start first.
type Update struct {
	Start    *int  `json:"start,omitempty"`
	End      *int  `json:"end,omitempty"`
	Enabled  *bool `json:"enabled,omitempty"`
	Ignored  *bool `json:"ignored,omitempty"`
	NewStart *int  `json:"new_start,omitempty"`
}

// UpdateShot applies u to the named shot as one edit: if any part fails,
// none of it is kept.
func (e *Editor) UpdateShot(ctx context.Context, ref string, u Update) (*Snapshot, error) {
	return e.edit(ctx, func(seg *shots.Segmentation) error {
		s, err := lookup(seg, ref)
		if err != nil {
			return err
		}
		if u.Start != nil {
			if err := seg.MoveBoundary(s, *u.Start); err != nil {
				return err
			}
		}
		if u.End != nil {
			if err := seg.MoveEnd(s, *u.End); err != nil {
				return err
			}
		}
		if u.NewStart != nil {
			s.SetNewStart(*u.NewStart)
		}
		if u.Enabled != nil {
			s.SetEnabled(*u.Enabled)
		}
		if u.Ignored != nil && *u.Ignored != s.Ignored() {
			s.SetIgnored(*u.Ignored)
			seg.Renumber()
		}
		return nil
	})
}

// SetPrefix renames every shot with prefix.
func (e *Editor) SetPrefix(ctx context.Context, prefix string) (*Snapshot, error) {
	return e.edit(ctx, func(seg *shots.Segmentation) error {
		seg.SetPrefix(prefix)
		e.prefix = prefix
		return nil
	})
}

// SetShotStart re-times every shot to start at frame. With sequential set,
// enabled shots are laid end to end instead.
func (e *Editor) SetShotStart(ctx context.Context, frame int, sequential bool) (*Snapshot, error) {
	return e.edit(ctx, func(seg *shots.Segmentation) error {
		if sequential {
			seg.RetimeSequential(frame)
		} else {
			seg.SetNewStart(frame)
		}
		e.shotStart = frame
		return nil
	})
}

// Export writes media and timelines for the open source. An empty opts.Dir
// falls back to the last export directory, then export.directory, then a
// directory named after the source.
func (e *Editor) Export(ctx context.Context, opts pipeline.ExportOptions) (*pipeline.ExportReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seg == nil {
		return nil, ErrNoSource
	}

	if opts.Dir == "" {
		opts.Dir = e.exportDir
	}
	if opts.Dir == "" {
		opts.Dir = e.cfg.Export.Directory
	}
	if opts.Dir == "" {
		source := e.seg.Source()
		opts.Dir = filepath.Join(filepath.Dir(source), util.Stem(source)+"_shots")
	}

	report, err := e.media.Export(ctx, e.seg, opts)
	if err != nil {
		return report, err
	}
	e.exportDir = opts.Dir
	if err := e.save(); err != nil {
		return report, err
	}
	return report, nil
}

func (e *Editor) edit(ctx context.Context, fn func(seg *shots.Segmentation) error) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seg == nil {
		return nil, ErrNoSource
	}
	before := e.seg.Records()
	if err := fn(e.seg); err != nil {
		e.rollback(before)
		return nil, err
	}
	if err := e.commit(ctx); err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

// rollback puts back the shots recorded before a failed edit.
func (e *Editor) rollback(before []shots.Record) {
	seg, err := shots.Restore(before, e.seg.TotalFrames())
	if err != nil {
		panic(&shots.InvariantViolation{Reason: "rollback failed: " + err.Error()})
	}
	e.seg = seg
}

// commit refreshes stale thumbnails and writes the auto-save.
// Thumbnail failures are logged; the edit itself already happened.
func (e *Editor) commit(ctx context.Context) error {
	if e.opts.Thumbnails {
		if _, err := e.media.RefreshMedia(ctx, e.seg); err != nil {
			e.logger.Warn().Err(err).Msg("thumbnail refresh failed")
		}
	} else {
		e.seg.TakeStale()
	}
	return e.save()
}

func (e *Editor) save() error {
	f := session.NewFile(e.seg, e.info, e.threshold, e.prefix, e.shotStart, e.exportDir)
	if err := e.store.Save(f); err != nil {
		return fmt.Errorf("auto-save failed: %w", err)
	}
	return nil
}

func lookup(seg *shots.Segmentation, ref string) (*shots.Shot, error) {
	if s, ok := seg.ByName(ref); ok {
		return s, nil
	}
	if s, ok := seg.ByID(ref); ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", shots.ErrUnknownShot, ref)
}

