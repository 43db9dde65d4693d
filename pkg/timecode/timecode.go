// Package timecode converts between frame indices, elapsed seconds and
// display timecodes for a rational frame rate.
package timecode

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rate is a rational frame rate such as 24/1 or 24000/1001.
type Rate struct {
	Num int64
	Den int64
}

// NewRate returns num/den reduced to lowest terms.
func NewRate(num, den int64) (Rate, error) {
	if num <= 0 || den <= 0 {
		return Rate{}, fmt.Errorf("invalid frame rate %d/%d", num, den)
	}
	g := gcd(num, den)
	return Rate{Num: num / g, Den: den / g}, nil
}

// MustRate is NewRate for constants known to be valid.
func MustRate(num, den int64) Rate {
	r, err := NewRate(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRate parses ffprobe's r_frame_rate format ("30/1") or a plain number ("25", "23.976").
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		d, err2 := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err1 != nil || err2 != nil {
			return Rate{}, fmt.Errorf("invalid frame rate format: %s", s)
		}
		return NewRate(n, d)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Rate{}, fmt.Errorf("invalid frame rate format: %s", s)
	}
	return FromFloat(f)
}

// FromFloat recovers a rational rate from a float, recognising NTSC rates.
func FromFloat(f float64) (Rate, error) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return Rate{}, fmt.Errorf("invalid frame rate %v", f)
	}
	if whole := math.Round(f); math.Abs(f-whole) < 1e-9 {
		return NewRate(int64(whole), 1)
	}
	// NTSC family: n*1000/1001
	if n := math.Round(f * 1001 / 1000); math.Abs(n*1000/1001-f) < 1e-3 {
		return NewRate(int64(n)*1000, 1001)
	}
	return NewRate(int64(math.Round(f*1000)), 1000)
}

// IsZero reports whether the rate is unset.
func (r Rate) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

// Float returns the rate as frames per second.
func (r Rate) Float() float64 {
	if r.IsZero() {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Nominal returns the rate rounded to whole frames per second (30 for 29.97).
func (r Rate) Nominal() int {
	if r.IsZero() {
		return 0
	}
	return int((2*r.Num + r.Den) / (2 * r.Den))
}

// IsDropFrame reports whether the rate belongs to the 29.97/59.94 family.
func (r Rate) IsDropFrame() bool {
	return r.Den == 1001 && (r.Num == 30000 || r.Num == 60000)
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rate) UnmarshalText(b []byte) error {
	parsed, err := ParseRate(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UnmarshalJSON accepts both "24000/1001" and bare numbers (older session files stored floats).
func (r *Rate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return r.UnmarshalText([]byte(s))
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("invalid frame rate %s", string(b))
	}
	parsed, err := FromFloat(f)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// FramesToSeconds returns frame / fps.
func FramesToSeconds(frame int, fps Rate) float64 {
	if fps.IsZero() {
		return 0
	}
	f, _ := framesToRat(frame, fps).Float64()
	return f
}

// SecondsToFrames returns floor(seconds * fps).
func SecondsToFrames(seconds float64, fps Rate) int {
	if fps.IsZero() {
		return 0
	}
	return int(math.Floor(seconds*float64(fps.Num)/float64(fps.Den) + 1e-9))
}

// FrameDuration returns the elapsed time at the start of frame.
func FrameDuration(frame int, fps Rate) time.Duration {
	if fps.IsZero() {
		return 0
	}
	ns := new(big.Rat).Mul(framesToRat(frame, fps), big.NewRat(int64(time.Second), 1))
	q := new(big.Int).Quo(ns.Num(), ns.Denom())
	return time.Duration(q.Int64())
}

// FrameToTimecode formats frame as HH:MM:SS:FF. The frame field is rounded,
// so a sub-frame remainder reaching the nominal rate rolls into the next second.
func FrameToTimecode(frame int, fps Rate) string {
	if fps.IsZero() {
		return "00:00:00:00"
	}
	neg := frame < 0
	if neg {
		frame = -frame
	}
	scaled := int64(frame) * fps.Den
	whole := scaled / fps.Num
	rem := scaled - whole*fps.Num // (frac seconds) * fps * Den
	ff := (2*rem + fps.Den) / (2 * fps.Den)
	if nominal := int64(fps.Nominal()); ff >= nominal {
		whole++
		ff -= nominal
	}
	tc := fmt.Sprintf("%02d:%02d:%02d:%02d", whole/3600, whole/60%60, whole%60, ff)
	if neg {
		return "-" + tc
	}
	return tc
}

// FrameToFFmpeg formats the start time of frame for ffmpeg -ss/-t arguments.
func FrameToFFmpeg(frame int, fps Rate) string {
	return FormatDuration(FrameDuration(frame, fps))
}

// FormatFFmpeg formats seconds as HH:MM:SS.mmm.
func FormatFFmpeg(seconds float64) string {
	return FormatDuration(time.Duration(math.Round(seconds * float64(time.Second))))
}

// FormatDuration converts time.Duration to ffmpeg timestamp format
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	minutes := ms / 60_000 % 60
	secs := float64(ms%60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
}

var durationPattern = regexp.MustCompile(
	`^((((?P<h>\d*):)?((?P<m>\d*):)?((?P<secs>\d+([.]\d*)?)))|((?P<value>\d+([.]\d*)?)(?P<units>s|ms|us)))$`)

// ParseDuration converts an ffmpeg duration string ("[[HH:]MM:]SS[.ms]" or
// "<number>s|ms|us") to seconds. ok is false when the text does not match;
// missing duration metadata is common, so callers treat this as soft.
func ParseDuration(text string) (seconds float64, ok bool) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	group := func(name string) string {
		return m[durationPattern.SubexpIndex(name)]
	}

	if secs := group("secs"); secs != "" {
		value, err := strconv.ParseFloat(secs, 64)
		if err != nil {
			return 0, false
		}
		h, mm := atoiOrZero(group("h")), atoiOrZero(group("m"))
		switch {
		case strings.Count(text, ":") == 2:
			value += float64(h*3600 + mm*60)
		case strings.Count(text, ":") == 1:
			// a single "MM:" prefix lands in the first group
			value += float64(h * 60)
		}
		return value, true
	}

	value, err := strconv.ParseFloat(group("value"), 64)
	if err != nil {
		return 0, false
	}
	switch group("units") {
	case "ms":
		value /= 1_000
	case "us":
		value /= 1_000_000
	}
	return value, true
}

// ParseTimestamp parses a timestamp string (HH:MM:SS.mmm or SS.mmm or MM:SS)
func ParseTimestamp(s string) (time.Duration, error) {
	seconds, ok := ParseDuration(s)
	if !ok {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func framesToRat(frame int, fps Rate) *big.Rat {
	return new(big.Rat).SetFrac(
		new(big.Int).Mul(big.NewInt(int64(frame)), big.NewInt(fps.Den)),
		big.NewInt(fps.Num),
	)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
