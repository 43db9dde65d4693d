package ffmpeg

import (
	"strconv"
	"strings"
)

// FilterBuilder assembles a comma-separated ffmpeg filter chain.
type FilterBuilder struct {
	filters []string
}

func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

// Movie opens path as a lavfi source.
func (fb *FilterBuilder) Movie(path string) *FilterBuilder {
	fb.filters = append(fb.filters, "movie="+escapeFilterValue(path))
	return fb
}

// SceneSelect keeps frames whose scene score exceeds threshold/100.
// threshold is on the 0-100 scale used by detection settings.
func (fb *FilterBuilder) SceneSelect(threshold float64) *FilterBuilder {
	score := strconv.FormatFloat(threshold/100, 'f', -1, 64)
	fb.filters = append(fb.filters, `select=gt(scene\,`+score+`)`)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	return strings.Join(fb.filters, ",")
}

// escapeFilterValue escapes s for the option parser, then quotes it for the graph parser.
func escapeFilterValue(s string) string {
	opt := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`).Replace(s)
	return "'" + strings.ReplaceAll(opt, "'", `'\''`) + "'"
}
