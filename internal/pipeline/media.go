package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/keagan/shotlist/internal/report"
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/internal/thumbs"
	"github.com/keagan/shotlist/internal/timeline"
	"github.com/keagan/shotlist/pkg/util"
	"golang.org/x/sync/errgroup"
)

// mediaJob is one shot's extraction work. Results are written back to the
// shot only after every job has finished.
type mediaJob struct {
	shot      *shots.Shot
	start     int
	end       int
	thumbnail string
	movie     string
	audio     string
	errs      int
}

// RefreshMedia regenerates working thumbnails for every stale shot in seg.
// It returns the number of thumbnails written.
func (p *Pipeline) RefreshMedia(ctx context.Context, seg *shots.Segmentation) (int, error) {
	stale := seg.TakeStale()
	if len(stale) == 0 {
		return 0, nil
	}

	dir := p.WorkDir(seg.Source())
	if err := util.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("failed to create media directory: %w", err)
	}

	jobs := make([]*mediaJob, len(stale))
	for i, s := range stale {
		jobs[i] = &mediaJob{
			shot:      s,
			start:     s.Start(),
			end:       s.End(),
			thumbnail: filepath.Join(dir, fmt.Sprintf("%s_%06d.jpg", s.ID(), s.Start())),
		}
	}

	p.logger.Debug().Int("shots", len(jobs)).Str("dir", dir).Msg("refreshing thumbnails")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			p.thumbnail(gctx, seg, job, job.thumbnail)
			return gctx.Err()
		})
	}
	err := g.Wait()

	written := 0
	for _, job := range jobs {
		if job.thumbnail != "" && job.errs == 0 {
			job.shot.SetThumbnail(job.thumbnail)
			written++
		}
	}
	return written, err
}

// Export writes per-shot media and timeline files for the shots that appear
// on the timeline: enabled and not ignored. A requested file that fails to
// extract clears the matching handle on the shot.
func (p *Pipeline) Export(ctx context.Context, seg *shots.Segmentation, opts ExportOptions) (*ExportReport, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := util.EnsureDir(opts.Dir); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(seg.Source()))
	if ext == "" {
		ext = ".mp4"
	}

	var jobs []*mediaJob
	for _, s := range seg.Shots() {
		if !exported(s) {
			continue
		}
		job := &mediaJob{shot: s, start: s.Start(), end: s.End()}
		name := s.Name()
		if opts.Thumbnails {
			job.thumbnail = filepath.Join(opts.Dir, name+".jpg")
		}
		if opts.Movies {
			job.movie = filepath.Join(opts.Dir, name+ext)
		}
		if opts.Audio {
			job.audio = filepath.Join(opts.Dir, name+".wav")
		}
		jobs = append(jobs, job)
	}

	p.logger.Info().
		Int("shots", len(jobs)).
		Str("dir", opts.Dir).
		Int("workers", p.config.Workers).
		Msg("starting export")

	width := opts.ThumbnailWidth
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			if job.thumbnail != "" {
				p.thumbnail(gctx, seg, job, job.thumbnail)
				if job.thumbnail != "" && width > 0 {
					if err := thumbs.Downscale(job.thumbnail, width); err != nil {
						p.logger.Warn().Err(err).Str("shot", job.shot.Name()).Msg("thumbnail downscale failed")
					}
				}
			}
			if job.movie != "" {
				if err := p.extractor.ExtractClip(gctx, seg.Source(), job.start, job.end, seg.FPS(), job.movie); err != nil {
					p.logger.Warn().Err(err).Str("shot", job.shot.Name()).Msg("movie extraction failed")
					job.movie = ""
					job.errs++
				}
			}
			if job.audio != "" {
				if err := p.extractor.ExtractAudio(gctx, seg.Source(), job.start, job.end, seg.FPS(), job.audio); err != nil {
					p.logger.Warn().Err(err).Str("shot", job.shot.Name()).Msg("audio extraction failed")
					job.audio = ""
					job.errs++
				}
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &ExportReport{}
	for _, job := range jobs {
		summary.Errors += job.errs
		if opts.Thumbnails {
			job.shot.SetThumbnail(job.thumbnail)
			if job.thumbnail != "" {
				summary.Thumbnails++
			}
		}
		if opts.Movies {
			job.shot.SetMovie(job.movie)
			if job.movie != "" {
				summary.Movies++
			}
		}
		if opts.Audio {
			job.shot.SetAudio(job.audio)
			if job.audio != "" {
				summary.Audio++
			}
		}
	}

	if err := p.writeTimelines(seg, opts, summary); err != nil {
		return summary, err
	}

	p.logger.Info().
		Int("thumbnails", summary.Thumbnails).
		Int("movies", summary.Movies).
		Int("audio", summary.Audio).
		Int("errors", summary.Errors).
		Msg("export complete")
	return summary, nil
}

// thumbnail extracts the first frame of job's shot to out. On failure the
// job's thumbnail is cleared and its error count bumped.
func (p *Pipeline) thumbnail(ctx context.Context, seg *shots.Segmentation, job *mediaJob, out string) {
	if err := p.extractor.ExtractThumbnail(ctx, seg.Source(), job.start, seg.FPS(), out); err != nil {
		p.logger.Warn().Err(err).Int("frame", job.start).Msg("thumbnail extraction failed")
		job.thumbnail = ""
		job.errs++
		return
	}
	if stats, err := thumbs.Analyze(out); err == nil && stats.IsBlank() {
		p.logger.Warn().Int("frame", job.start).Str("file", out).Msg("thumbnail looks blank")
	}
}

// exported reports whether s is part of the cut: the same rule the
// timeline writers apply through Projection.Enabled.
func exported(s *shots.Shot) bool {
	return s.Enabled() && !s.Ignored()
}

type timelineWriter struct {
	enabled bool
	ext     string
	kind    string
	write   func(w io.Writer) error
}

func (p *Pipeline) writeTimelines(seg *shots.Segmentation, opts ExportOptions, summary *ExportReport) error {
	stem := util.Stem(seg.Source())
	clips := seg.Projections()

	writers := []timelineWriter{
		{opts.EDL, ".edl", "EDL", func(w io.Writer) error {
			return timeline.WriteEDL(w, stem, clips)
		}},
		{opts.OTIO, ".otio", "OTIO timeline", func(w io.Writer) error {
			return timeline.WriteOTIO(w, stem, clips)
		}},
		{opts.FCPXML, ".xml", "FCP XML timeline", func(w io.Writer) error {
			return timeline.WriteFCPXML(w, stem, clips)
		}},
		{opts.ShotList, ".xlsx", "shot list", func(w io.Writer) error {
			return report.WriteShotList(w, shotListSheet(seg, stem))
		}},
	}

	for _, tw := range writers {
		if !tw.enabled {
			continue
		}
		var buf bytes.Buffer
		if err := tw.write(&buf); err != nil {
			return fmt.Errorf("failed to build %s: %w", tw.kind, err)
		}
		path := filepath.Join(opts.Dir, stem+tw.ext)
		if err := util.WriteFileAtomic(path, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write %s: %w", tw.kind, err)
		}
		p.logger.Debug().Str("path", path).Msg(tw.kind + " written")
		summary.Timelines = append(summary.Timelines, path)
	}
	return nil
}

func shotListSheet(seg *shots.Segmentation, title string) report.Sheet {
	sheet := report.Sheet{Title: title, Source: seg.Source(), FPS: seg.FPS()}
	for _, s := range seg.Shots() {
		if !exported(s) {
			continue
		}
		sheet.Rows = append(sheet.Rows, report.Row{
			Name:      s.Name(),
			In:        s.Start(),
			Out:       s.End(),
			Thumbnail: s.Thumbnail(),
		})
	}
	return sheet
}
