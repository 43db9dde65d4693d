package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/keagan/shotlist/internal/config"
	"github.com/keagan/shotlist/internal/ffmpeg"
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/util"
	"github.com/rs/zerolog"
)

// Pipeline runs probe, detection and media extraction around a segmentation.
// It never edits shots from more than one goroutine.
type Pipeline struct {
	logger    zerolog.Logger
	config    *Config
	prober    Prober
	detector  Detector
	extractor Extractor
}

// New creates a pipeline backed by the ffmpeg binaries in PATH.
func New(logger zerolog.Logger, appCfg *config.Config) (*Pipeline, error) {
	ffmpegExec, err := ffmpeg.New(logger, appCfg.FFmpeg.Threads)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	cfg := &Config{
		Workers:        appCfg.Concurrency,
		MediaDir:       filepath.Join(appCfg.DataDir, "media"),
		ThumbnailWidth: appCfg.Export.ThumbnailWidth,
	}
	return NewWith(logger, cfg, ffmpegExec, ffmpegExec, ffmpegExec), nil
}

// NewWith creates a pipeline from explicit collaborators.
func NewWith(logger zerolog.Logger, cfg *Config, prober Prober, detector Detector, extractor Extractor) *Pipeline {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Pipeline{
		logger:    logger.With().Str("component", "pipeline").Logger(),
		config:    cfg,
		prober:    prober,
		detector:  detector,
		extractor: extractor,
	}
}

// Analyze probes source, detects cuts and builds the initial shot list.
func (p *Pipeline) Analyze(ctx context.Context, source string, opts AnalyzeOptions) (*Project, error) {
	if source == "" {
		return nil, errors.New("input path cannot be empty")
	}
	if !util.NonEmptyFile(source) {
		return nil, fmt.Errorf("%w: %s is missing or empty", ffmpeg.ErrProbe, source)
	}

	p.logger.Info().
		Str("input", source).
		Float64("threshold", opts.Threshold).
		Msg("starting analysis")

	info, err := p.prober.Probe(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	p.logger.Info().
		Dur("duration", info.Duration).
		Int("frames", info.Frames).
		Str("fps", info.FPS.String()).
		Msg("video metadata extracted")

	cuts, err := p.detector.DetectCuts(ctx, source, info.FPS, opts.Threshold)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn().Err(err).Msg("scene detection failed")
		return nil, fmt.Errorf("%w: %v", shots.ErrNoShotsDetected, err)
	}

	seg, err := shots.BuildFromDetection(cuts, info.Frames, info.FPS, source)
	if err != nil {
		return nil, err
	}
	if opts.Prefix != "" {
		seg.SetPrefix(opts.Prefix)
	}
	if opts.NewStart != 0 {
		seg.SetNewStart(opts.NewStart)
	}

	p.logger.Info().
		Int("cuts", len(cuts)).
		Int("shots", seg.Len()).
		Msg("analysis complete")

	return &Project{
		Source:       source,
		Info:         info,
		Threshold:    opts.Threshold,
		Segmentation: seg,
		CreatedAt:    time.Now(),
	}, nil
}

// WorkDir is where working thumbnails of source are kept while editing.
func (p *Pipeline) WorkDir(source string) string {
	return filepath.Join(p.config.MediaDir, util.Stem(source))
}
