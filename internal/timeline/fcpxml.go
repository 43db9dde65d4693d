package timeline

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"

	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/timecode"
)

// Final Cut Pro 7 interchange (xmeml v4) documents, reduced to one video
// track of clip items cut from a single source file.

type xmeml struct {
	XMLName  xml.Name    `xml:"xmeml"`
	Version  string      `xml:"version,attr"`
	Sequence xmlSequence `xml:"sequence"`
}

type xmlSequence struct {
	ID       string   `xml:"id,attr"`
	Name     string   `xml:"name"`
	Duration int      `xml:"duration"`
	Rate     xmlRate  `xml:"rate"`
	Media    xmlMedia `xml:"media"`
}

type xmlRate struct {
	Timebase int    `xml:"timebase"`
	NTSC     string `xml:"ntsc"`
}

type xmlMedia struct {
	Video xmlVideo `xml:"video"`
}

type xmlVideo struct {
	Track xmlTrack `xml:"track"`
}

type xmlTrack struct {
	ClipItems []xmlClipItem `xml:"clipitem"`
}

type xmlClipItem struct {
	ID       string      `xml:"id,attr"`
	Name     string      `xml:"name"`
	Enabled  string      `xml:"enabled"`
	Duration int         `xml:"duration"`
	Rate     xmlRate     `xml:"rate"`
	Start    int         `xml:"start"`
	End      int         `xml:"end"`
	In       int         `xml:"in"`
	Out      int         `xml:"out"`
	File     xmlFile     `xml:"file"`
	Markers  []xmlMarker `xml:"marker"`
}

// xmlFile is written in full on first use; later clip items refer to it by id.
type xmlFile struct {
	ID       string   `xml:"id,attr"`
	Name     string   `xml:"name,omitempty"`
	PathURL  string   `xml:"pathurl,omitempty"`
	Rate     *xmlRate `xml:"rate,omitempty"`
	Duration int      `xml:"duration,omitempty"`
}

type xmlMarker struct {
	Name    string `xml:"name"`
	Comment string `xml:"comment"`
	In      int    `xml:"in"`
	Out     int    `xml:"out"`
}

// WriteFCPXML writes enabled clips as an FCP 7 XML sequence. Clips are laid
// end to end on the record side, the same as WriteEDL.
func WriteFCPXML(w io.Writer, name string, clips []*shots.Projection) error {
	rate := timecode.Rate{}
	sourceFrames := 0
	for _, c := range clips {
		if rate.IsZero() && !c.SourceRange.Rate.IsZero() {
			rate = c.SourceRange.Rate
		}
		sourceFrames = max(sourceFrames, c.SourceRange.Start+c.SourceRange.Duration)
	}
	seqRate := convertRate(rate)

	fileIDs := map[string]string{}
	track := xmlTrack{}
	record := 0
	for _, c := range clips {
		if !c.Enabled {
			continue
		}
		r := c.SourceRange
		item := xmlClipItem{
			ID:       fmt.Sprintf("clipitem-%d", len(track.ClipItems)+1),
			Name:     c.Name,
			Enabled:  "TRUE",
			Duration: r.Duration,
			Rate:     seqRate,
			Start:    record,
			End:      record + r.Duration,
			In:       r.Start,
			Out:      r.Start + r.Duration,
		}

		if id, ok := fileIDs[c.Source]; ok {
			item.File = xmlFile{ID: id}
		} else {
			id = fmt.Sprintf("file-%d", len(fileIDs)+1)
			fileIDs[c.Source] = id
			item.File = xmlFile{
				ID:       id,
				Name:     filepath.Base(c.Source),
				PathURL:  fileURL(c.Source),
				Rate:     &seqRate,
				Duration: sourceFrames,
			}
		}

		for _, m := range c.Markers {
			in := m.MarkedRange.Start - r.Start
			item.Markers = append(item.Markers, xmlMarker{
				Name: m.Name,
				In:   in,
				Out:  in + m.MarkedRange.Duration,
			})
		}

		track.ClipItems = append(track.ClipItems, item)
		record += r.Duration
	}

	doc := xmeml{
		Version: "4",
		Sequence: xmlSequence{
			ID:       "sequence-1",
			Name:     name,
			Duration: record,
			Rate:     seqRate,
			Media:    xmlMedia{Video: xmlVideo{Track: track}},
		},
	}

	if _, err := io.WriteString(w, xml.Header+"<!DOCTYPE xmeml>\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func convertRate(r timecode.Rate) xmlRate {
	ntsc := "FALSE"
	if r.Den == 1001 {
		ntsc = "TRUE"
	}
	return xmlRate{Timebase: r.Nominal(), NTSC: ntsc}
}
