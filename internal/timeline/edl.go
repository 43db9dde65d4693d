// Package timeline writes shot projections as editorial timeline files.
package timeline

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/timecode"
	"github.com/keagan/shotlist/pkg/util"
)

// ReelNameLength is the CMX 3600 reel name limit.
const ReelNameLength = 8

// WriteEDL writes enabled clips as a CMX 3600 cut list. Record timecodes
// start at zero and advance by each written clip's duration.
func WriteEDL(w io.Writer, title string, clips []*shots.Projection) error {
	bw := bufio.NewWriter(w)

	rate := timecode.Rate{}
	for _, c := range clips {
		if !c.SourceRange.Rate.IsZero() {
			rate = c.SourceRange.Rate
			break
		}
	}

	fmt.Fprintf(bw, "TITLE: %s\n", title)
	if rate.IsDropFrame() {
		fmt.Fprintln(bw, "FCM: DROP FRAME")
	} else {
		fmt.Fprintln(bw, "FCM: NON-DROP FRAME")
	}
	fmt.Fprintln(bw)

	event, record := 0, 0
	for _, c := range clips {
		if !c.Enabled {
			continue
		}
		event++
		r := c.SourceRange
		srcIn := timecode.FrameToTimecode(r.Start, r.Rate)
		srcOut := timecode.FrameToTimecode(r.Start+r.Duration, r.Rate)
		recIn := timecode.FrameToTimecode(record, r.Rate)
		recOut := timecode.FrameToTimecode(record+r.Duration, r.Rate)

		fmt.Fprintf(bw, "%03d  %-8s %-5s C        %s %s %s %s\n",
			event, ReelName(c.Source), "V", srcIn, srcOut, recIn, recOut)
		fmt.Fprintf(bw, "* FROM CLIP NAME:  %s\n", c.Name)
		if c.Source != "" {
			fmt.Fprintf(bw, "* SOURCE FILE:  %s\n", c.Source)
		}
		for _, m := range c.Markers {
			offset := m.MarkedRange.Start - r.Start
			fmt.Fprintf(bw, "* LOC: %s YELLOW  %s\n", timecode.FrameToTimecode(record+offset, r.Rate), m.Name)
		}
		fmt.Fprintln(bw)

		record += r.Duration
	}

	return bw.Flush()
}

// ReelName derives an EDL reel name from the source file stem: letters,
// digits and underscores only, truncated to ReelNameLength.
func ReelName(source string) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, util.Stem(filepath.ToSlash(source)))

	if len(name) > ReelNameLength {
		name = name[:ReelNameLength]
	}
	if name == "" || name == "." || strings.Trim(name, "_") == "" {
		name = "AX"
	}
	return strings.ToUpper(name)
}
