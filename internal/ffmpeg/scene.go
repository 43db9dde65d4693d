package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/keagan/shotlist/pkg/timecode"
)

// DetectCuts returns the frames where a new scene starts. threshold is the
// scene-change sensitivity on a 0-100 scale; lower values find more cuts.
func (e *Executor) DetectCuts(ctx context.Context, source string, fps timecode.Rate, threshold float64) ([]int, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("threshold %v out of range 0-100", threshold)
	}

	e.logger.Info().
		Str("input", source).
		Float64("threshold", threshold).
		Msg("detecting scene changes")

	graph := NewFilterBuilder().Movie(source).SceneSelect(threshold).Build()
	out, err := e.probe(ctx,
		"-loglevel", "error",
		"-f", "lavfi",
		"-show_entries", "frame=pkt_dts_time,pts_time,best_effort_timestamp_time",
		"-of", "compact=p=0",
		graph,
	)
	if err != nil {
		return nil, fmt.Errorf("scene detection failed: %w", err)
	}

	cuts := parseCutFrames(out, fps)
	e.logger.Info().Int("cuts", len(cuts)).Msg("scene detection complete")
	return cuts, nil
}

// parseCutFrames reads compact ffprobe frame lines ("k=v|k=v") and converts
// each frame timestamp to a frame index.
func parseCutFrames(out []byte, fps timecode.Rate) []int {
	var cuts []int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := map[string]string{}
		for _, kv := range strings.Split(strings.TrimSpace(scanner.Text()), "|") {
			if k, v, ok := strings.Cut(kv, "="); ok {
				fields[k] = v
			}
		}

		for _, key := range []string{"pkt_dts_time", "pts_time", "best_effort_timestamp_time"} {
			seconds, err := strconv.ParseFloat(fields[key], 64)
			if err != nil {
				continue
			}
			cuts = append(cuts, timecode.SecondsToFrames(seconds, fps))
			break
		}
	}
	return cuts
}
