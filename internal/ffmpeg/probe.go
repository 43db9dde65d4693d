package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/keagan/shotlist/pkg/timecode"
)

// Probe reads the frame rate, frame count and size of the first real video stream.
func (e *Executor) Probe(ctx context.Context, source string) (*VideoInfo, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: source path is required", ErrProbe)
	}

	e.logger.Info().Str("input", source).Msg("probing video")

	out, err := e.probe(ctx,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbe, err)
	}

	info, err := parseProbe(out, source)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("fps", info.FPS.String()).
		Int("frames", info.Frames).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("probe complete")
	return info, nil
}

// parseProbe builds VideoInfo from ffprobe JSON. Frame count comes from
// nb_frames when present, otherwise from the first parseable duration.
func parseProbe(data []byte, source string) (*VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrProbe, err)
	}

	info := &VideoInfo{Path: source, StreamIndex: -1}
	var video *probeStream
	for i := range probe.Streams {
		stream := &probe.Streams[i]
		switch stream.CodecType {
		case "video":
			if video == nil && !stillImageCodecs[strings.ToLower(stream.CodecName)] {
				video = stream
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if video == nil {
		return nil, fmt.Errorf("%w: no video stream in %s", ErrProbe, source)
	}

	info.StreamIndex = video.Index
	info.Width = video.Width
	info.Height = video.Height
	info.VideoCodec = video.CodecName

	rate := video.RFrameRate
	if rate == "" || strings.HasPrefix(rate, "0/") {
		rate = video.AvgFrameRate
	}
	fps, err := timecode.ParseRate(rate)
	if err != nil {
		return nil, fmt.Errorf("%w: frame rate %q: %v", ErrProbe, rate, err)
	}
	info.FPS = fps

	seconds, hasDuration := 0.0, false
	for _, text := range []string{probe.Format.Duration, video.Duration, video.Tags.Duration} {
		if s, ok := timecode.ParseDuration(text); ok && s > 0 {
			seconds, hasDuration = s, true
			break
		}
	}

	if n, err := strconv.Atoi(video.NbFrames); err == nil && n > 0 {
		info.Frames = n
	} else if hasDuration {
		info.Frames = timecode.SecondsToFrames(seconds, fps)
	}

	if hasDuration {
		info.Duration = time.Duration(math.Round(seconds * float64(time.Second)))
	} else if info.Frames > 0 {
		info.Duration = timecode.FrameDuration(info.Frames, fps)
	}

	if info.Frames < 1 {
		return nil, fmt.Errorf("%w: cannot determine frame count of %s", ErrProbe, source)
	}
	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
	Tags         struct {
		Duration string `json:"DURATION"`
	} `json:"tags"`
}
