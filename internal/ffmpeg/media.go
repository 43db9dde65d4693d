package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/keagan/shotlist/pkg/timecode"
	"github.com/keagan/shotlist/pkg/util"
)

// Default encoding settings for shot movies
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
)

// ExtractThumbnail writes the first frame of a shot as a JPEG.
func (e *Executor) ExtractThumbnail(ctx context.Context, source string, frame int, fps timecode.Rate, out string) error {
	e.logger.Debug().
		Str("input", source).
		Str("output", out).
		Int("frame", frame).
		Msg("extracting thumbnail")

	args := []string{
		"-ss", timecode.FrameToFFmpeg(frame, fps),
		"-i", source,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
	return e.extract(ctx, "thumbnail", out, args)
}

// ExtractClip re-encodes frames [start, end] into a standalone movie.
func (e *Executor) ExtractClip(ctx context.Context, source string, start, end int, fps timecode.Rate, out string) error {
	if end < start {
		return fmt.Errorf("%w: invalid clip range [%d-%d]", ErrExtraction, start, end)
	}
	frames := end - start + 1

	e.logger.Debug().
		Str("input", source).
		Str("output", out).
		Int("start", start).
		Int("frames", frames).
		Msg("extracting clip")

	args := []string{
		"-ss", timecode.FrameToFFmpeg(start, fps),
		"-i", source,
		"-frames:v", strconv.Itoa(frames),
		"-t", timecode.FrameToFFmpeg(frames, fps),
		"-c:v", DefaultVideoCodec,
		"-preset", DefaultPreset,
		"-crf", strconv.Itoa(DefaultCRF),
		"-c:a", DefaultAudioCodec,
		out,
	}
	return e.extract(ctx, "clip", out, args)
}

// ExtractAudio writes the audio of frames [start, end] as PCM.
func (e *Executor) ExtractAudio(ctx context.Context, source string, start, end int, fps timecode.Rate, out string) error {
	if end < start {
		return fmt.Errorf("%w: invalid audio range [%d-%d]", ErrExtraction, start, end)
	}
	format := DefaultAudioFormat()

	e.logger.Debug().
		Str("input", source).
		Str("output", out).
		Str("codec", format.Codec).
		Msg("extracting audio")

	args := []string{
		"-ss", timecode.FrameToFFmpeg(start, fps),
		"-i", source,
		"-t", timecode.FrameToFFmpeg(end-start+1, fps),
		"-vn",
		"-acodec", format.Codec,
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		out,
	}
	return e.extract(ctx, "audio", out, args)
}

// extract runs ffmpeg and checks that out was written. Partial output is removed.
func (e *Executor) extract(ctx context.Context, kind, out string, args []string) error {
	if out == "" {
		return fmt.Errorf("%w: %s output path is required", ErrExtraction, kind)
	}

	err := e.Run(ctx, RunOptions{
		Args:            args,
		ProgressHandler: e.progressLogger(kind, out),
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg(kind + " extraction")
		},
	})
	if err != nil {
		util.CleanupFiles(out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrExtraction, kind, out, err)
	}
	if !util.NonEmptyFile(out) {
		util.CleanupFiles(out)
		return fmt.Errorf("%w: %s %s: empty output", ErrExtraction, kind, out)
	}
	return nil
}

// progressLogger reports each -progress block of an extraction at debug level.
func (e *Executor) progressLogger(kind, out string) ProgressFunc {
	return func(p *Progress) {
		e.logger.Debug().
			Str("output", filepath.Base(out)).
			Int("frame", p.Frame).
			Str("time", p.Time).
			Str("speed", p.Speed).
			Msg(kind + " progress")
	}
}
