// Package report writes the shot list spreadsheet handed to production.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/keagan/shotlist/pkg/timecode"
	"github.com/keagan/shotlist/pkg/util"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the shot list.
const SheetName = "Shot List"

// HeaderRow is the row of column titles; shots start on the row below.
const HeaderRow = 7

// Headers are the column titles, starting at column A.
var Headers = []string{"Shot", "Preview", "IN", "OUT", "Duration", "Frames", "Notes"}

// Row is one shot of the spreadsheet. Frame ranges are inclusive.
type Row struct {
	Name      string
	In        int
	Out       int
	Thumbnail string
}

// Sheet describes the document around the rows.
type Sheet struct {
	Title  string
	Source string
	FPS    timecode.Rate
	Date   time.Time
	Rows   []Row
}

const (
	previewRowHeight = 81
	textRowHeight    = 24
)

var columnWidths = map[string]float64{
	"A": 22, "B": 30, "C": 16.5, "D": 16.5, "E": 16.5, "F": 10, "G": 54.5,
}

// WriteShotList writes s as an .xlsx workbook. Thumbnails that exist on disk
// are embedded in the Preview column; missing ones leave the cell empty.
func WriteShotList(w io.Writer, s Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	for col, width := range columnWidths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}

	if err := writeDescription(f, s, styles); err != nil {
		return err
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, HeaderRow)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), HeaderRow)
	if err := f.SetCellStyle(SheetName, "A"+fmt.Sprint(HeaderRow), last, styles.header); err != nil {
		return err
	}

	for i, r := range s.Rows {
		if err := writeRow(f, HeaderRow+1+i, r, s.FPS, styles); err != nil {
			return fmt.Errorf("shot %s: %w", r.Name, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      HeaderRow,
		TopLeftCell: fmt.Sprintf("A%d", HeaderRow+1),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	title  int
	label  int
	header int
	cell   int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var st sheetStyles
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}

	specs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{Font: &excelize.Font{Family: "Arial", Size: 36, Bold: true}}},
		{&st.label, &excelize.Style{Font: &excelize.Font{Family: "Arial", Size: 14, Italic: true}}},
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Family: "Arial", Size: 14, Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"D8D8D8"}, Pattern: 1},
			Border:    border,
			Alignment: center,
		}},
		{&st.cell, &excelize.Style{
			Font:      &excelize.Font{Family: "Arial", Size: 14},
			Border:    border,
			Alignment: center,
		}},
	}
	for _, s := range specs {
		id, err := f.NewStyle(s.style)
		if err != nil {
			return st, fmt.Errorf("create style: %w", err)
		}
		*s.dst = id
	}
	return st, nil
}

func writeDescription(f *excelize.File, s Sheet, styles sheetStyles) error {
	if err := f.SetCellValue(SheetName, "A1", "SHOT LIST"); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", "A1", styles.title); err != nil {
		return err
	}
	if err := f.SetRowHeight(SheetName, 1, 48); err != nil {
		return err
	}

	date := s.Date
	if date.IsZero() {
		date = time.Now()
	}
	lines := [][2]string{
		{"Project :", s.Title},
		{"Source :", util.Stem(s.Source)},
		{"Frame rate :", s.FPS.String()},
		{"Date :", date.Format("02-01-2006")},
	}
	for i, l := range lines {
		row := 2 + i
		if err := f.SetCellValue(SheetName, fmt.Sprintf("A%d", row), l[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, fmt.Sprintf("B%d", row), l[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), styles.label); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, row int, r Row, fps timecode.Rate, styles sheetStyles) error {
	duration := r.Out - r.In + 1
	values := []any{
		r.Name,
		"",
		timecode.FrameToTimecode(r.In, fps),
		timecode.FrameToTimecode(r.Out+1, fps),
		timecode.FrameToTimecode(duration, fps),
		duration,
		"",
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(values), row)
	if err := f.SetCellStyle(SheetName, first, last, styles.cell); err != nil {
		return err
	}

	if r.Thumbnail == "" || !util.NonEmptyFile(r.Thumbnail) {
		return f.SetRowHeight(SheetName, row, textRowHeight)
	}
	if err := f.SetRowHeight(SheetName, row, previewRowHeight); err != nil {
		return err
	}
	cell, _ := excelize.CoordinatesToCellName(2, row)
	return f.AddPicture(SheetName, cell, r.Thumbnail, &excelize.GraphicOptions{
		AutoFit:         true,
		LockAspectRatio: true,
		Positioning:     "oneCell",
	})
}
