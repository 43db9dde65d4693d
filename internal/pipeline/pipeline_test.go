package pipeline

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keagan/shotlist/internal/ffmpeg"
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/timecode"
	"github.com/keagan/shotlist/internal/report"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

type fakeMedia struct {
	info      *ffmpeg.VideoInfo
	cuts      []int
	detectErr error
	failClips bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeMedia) Probe(ctx context.Context, source string) (*ffmpeg.VideoInfo, error) {
	return f.info, nil
}

func (f *fakeMedia) DetectCuts(ctx context.Context, source string, fps timecode.Rate, threshold float64) ([]int, error) {
	return f.cuts, f.detectErr
}

func (f *fakeMedia) ExtractThumbnail(ctx context.Context, source string, frame int, fps timecode.Rate, out string) error {
	f.record("thumb " + filepath.Base(out))
	file, err := os.Create(out)
	if err != nil {
		return err
	}
	defer file.Close()
	img := image.NewGray(image.Rect(0, 0, 32, 18))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	return jpeg.Encode(file, img, nil)
}

func (f *fakeMedia) ExtractClip(ctx context.Context, source string, start, end int, fps timecode.Rate, out string) error {
	f.record("clip " + filepath.Base(out))
	if f.failClips {
		return ffmpeg.ErrExtraction
	}
	return os.WriteFile(out, []byte("clip"), 0644)
}

func (f *fakeMedia) ExtractAudio(ctx context.Context, source string, start, end int, fps timecode.Rate, out string) error {
	f.record("audio " + filepath.Base(out))
	return os.WriteFile(out, []byte("wav"), 0644)
}

func (f *fakeMedia) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func newTestPipeline(t *testing.T, media *fakeMedia) *Pipeline {
	t.Helper()
	cfg := &Config{Workers: 3, MediaDir: t.TempDir()}
	return NewWith(zerolog.Nop(), cfg, media, media, media)
}

func sourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take01.mov")
	if err := os.WriteFile(path, []byte("not really a movie"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func defaultInfo() *ffmpeg.VideoInfo {
	fps := timecode.MustRate(24, 1)
	return &ffmpeg.VideoInfo{FPS: fps, Frames: 120, Duration: 5 * time.Second}
}

func TestAnalyze(t *testing.T) {
	media := &fakeMedia{info: defaultInfo(), cuts: []int{0, 24, 72}}
	p := newTestPipeline(t, media)

	project, err := p.Analyze(context.Background(), sourceFile(t), AnalyzeOptions{
		Threshold: 45,
		Prefix:    "ep01",
		NewStart:  1001,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	seg := project.Segmentation
	if seg.Len() != 3 {
		t.Fatalf("got %d shots, want 3", seg.Len())
	}
	first := seg.Shots()[0]
	if first.Name() != "EP01_SH010" || first.NewStart() != 1001 {
		t.Fatalf("first shot = %s newStart %d", first.Name(), first.NewStart())
	}
	if project.Threshold != 45 || project.Info.Frames != 120 {
		t.Fatalf("project = %+v", project)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		p := newTestPipeline(t, &fakeMedia{info: defaultInfo()})
		_, err := p.Analyze(context.Background(), filepath.Join(t.TempDir(), "none.mov"), AnalyzeOptions{})
		if !errors.Is(err, ffmpeg.ErrProbe) {
			t.Fatalf("err = %v, want ErrProbe", err)
		}
	})

	t.Run("detector failure", func(t *testing.T) {
		media := &fakeMedia{info: defaultInfo(), detectErr: errors.New("filter graph broke")}
		p := newTestPipeline(t, media)
		_, err := p.Analyze(context.Background(), sourceFile(t), AnalyzeOptions{})
		if !errors.Is(err, shots.ErrNoShotsDetected) {
			t.Fatalf("err = %v, want ErrNoShotsDetected", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		media := &fakeMedia{info: defaultInfo(), detectErr: errors.New("killed")}
		p := newTestPipeline(t, media)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.Analyze(ctx, sourceFile(t), AnalyzeOptions{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

func TestRefreshMedia(t *testing.T) {
	media := &fakeMedia{info: defaultInfo(), cuts: []int{0, 24, 72}}
	p := newTestPipeline(t, media)
	project, err := p.Analyze(context.Background(), sourceFile(t), AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	seg := project.Segmentation

	n, err := p.RefreshMedia(context.Background(), seg)
	if err != nil {
		t.Fatalf("RefreshMedia: %v", err)
	}
	if n != 3 {
		t.Fatalf("refreshed %d, want 3", n)
	}
	for _, s := range seg.Shots() {
		if s.Thumbnail() == "" || !strings.HasPrefix(s.Thumbnail(), p.WorkDir(seg.Source())) {
			t.Fatalf("%s thumbnail = %q", s.Name(), s.Thumbnail())
		}
		if s.Projection().ActiveMediaKey != shots.RefThumbnail {
			t.Fatalf("%s active media = %q", s.Name(), s.Projection().ActiveMediaKey)
		}
	}

	// nothing stale: no work
	n, err = p.RefreshMedia(context.Background(), seg)
	if err != nil || n != 0 {
		t.Fatalf("second refresh = %d, %v", n, err)
	}

	shot, _ := seg.At(30)
	if err := seg.MoveBoundary(shot, 40); err != nil {
		t.Fatal(err)
	}
	n, err = p.RefreshMedia(context.Background(), seg)
	if err != nil || n != 1 {
		t.Fatalf("refresh after move = %d, %v", n, err)
	}
	if !strings.Contains(shot.Thumbnail(), "000040") {
		t.Fatalf("thumbnail not regenerated for new start: %q", shot.Thumbnail())
	}
}

func TestExport(t *testing.T) {
	media := &fakeMedia{info: defaultInfo(), cuts: []int{0, 24, 72}}
	p := newTestPipeline(t, media)
	project, err := p.Analyze(context.Background(), sourceFile(t), AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	seg := project.Segmentation
	seg.Shots()[1].SetEnabled(false)

	dir := filepath.Join(t.TempDir(), "out")
	summary, err := p.Export(context.Background(), seg, ExportOptions{
		Dir:            dir,
		Thumbnails:     true,
		Movies:         true,
		Audio:          true,
		EDL:            true,
		OTIO:           true,
		FCPXML:         true,
		ShotList:       true,
		ThumbnailWidth: 16,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if summary.Thumbnails != 2 || summary.Movies != 2 || summary.Audio != 2 || summary.Errors != 0 {
		t.Fatalf("report = %+v", summary)
	}
	if len(summary.Timelines) != 4 {
		t.Fatalf("timelines = %v", summary.Timelines)
	}

	for _, name := range []string{"SH010.jpg", "SH010.mov", "SH010.wav", "SH030.mov", "take01.edl", "take01.otio", "take01.xml", "take01.xlsx"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "SH020.mov")); err == nil {
		t.Error("disabled shot was exported")
	}

	first := seg.Shots()[0]
	if first.Movie() != filepath.Join(dir, "SH010.mov") {
		t.Fatalf("movie ref = %q", first.Movie())
	}
	if first.Projection().ActiveMediaKey != shots.RefMovie {
		t.Fatalf("active media = %q", first.Projection().ActiveMediaKey)
	}

	edl, err := os.ReadFile(filepath.Join(dir, "take01.edl"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(edl), "SH010") || strings.Contains(string(edl), "SH020") {
		t.Fatalf("edl:\n%s", edl)
	}

	xmlData, err := os.ReadFile(filepath.Join(dir, "take01.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(xmlData), "<xmeml") || strings.Contains(string(xmlData), "SH020") {
		t.Fatalf("fcp xml:\n%s", xmlData)
	}

	book, err := excelize.OpenFile(filepath.Join(dir, "take01.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	defer book.Close()
	for cell, want := range map[string]string{"A8": "SH010", "A9": "SH030", "A10": ""} {
		got, err := book.GetCellValue(report.SheetName, cell)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("shot list %s = %q, want %q", cell, got, want)
		}
	}
	pics, err := book.GetPictures(report.SheetName, "B8")
	if err != nil {
		t.Fatal(err)
	}
	if len(pics) != 1 {
		t.Errorf("preview pictures = %d, want 1", len(pics))
	}

	thumb, err := os.Open(filepath.Join(dir, "SH010.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	defer thumb.Close()
	cfg, _, err := image.DecodeConfig(thumb)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 16 {
		t.Fatalf("thumbnail width = %d, want 16", cfg.Width)
	}
}

func TestExportCountsFailures(t *testing.T) {
	media := &fakeMedia{info: defaultInfo(), cuts: []int{0, 60}, failClips: true}
	p := newTestPipeline(t, media)
	project, err := p.Analyze(context.Background(), sourceFile(t), AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	summary, err := p.Export(context.Background(), project.Segmentation, ExportOptions{
		Dir:    t.TempDir(),
		Movies: true,
		EDL:    true,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if summary.Movies != 0 || summary.Errors != 2 {
		t.Fatalf("report = %+v", summary)
	}
	for _, s := range project.Segmentation.Shots() {
		if s.Movie() != "" {
			t.Fatalf("%s has movie %q after failure", s.Name(), s.Movie())
		}
	}
}


func TestExportSkipsIgnoredShots(t *testing.T) {
	media := &fakeMedia{info: defaultInfo(), cuts: []int{0, 24, 72}}
	p := newTestPipeline(t, media)
	project, err := p.Analyze(context.Background(), sourceFile(t), AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	seg := project.Segmentation
	ignored := seg.Shots()[2]
	ignored.SetIgnored(true)

	dir := t.TempDir()
	summary, err := p.Export(context.Background(), seg, ExportOptions{Dir: dir, Movies: true, EDL: true})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if summary.Movies != 2 {
		t.Fatalf("report = %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(dir, ignored.Name()+".mov")); err == nil {
		t.Error("ignored shot was exported")
	}
	if ignored.Movie() != "" {
		t.Errorf("ignored shot has movie %q", ignored.Movie())
	}
	edl, err := os.ReadFile(filepath.Join(dir, "take01.edl"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(edl), "SH030") {
		t.Fatalf("ignored shot in edl:\n%s", edl)
	}
}

func TestExportFailureClearsStaleMedia(t *testing.T) {
	media := &fakeMedia{info: defaultInfo(), cuts: []int{0, 24, 72}}
	p := newTestPipeline(t, media)
	project, err := p.Analyze(context.Background(), sourceFile(t), AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	seg := project.Segmentation
	opts := ExportOptions{Dir: t.TempDir(), Movies: true, Audio: true}

	if _, err := p.Export(context.Background(), seg, opts); err != nil {
		t.Fatalf("Export: %v", err)
	}
	last := seg.Shots()[2]
	if last.Movie() == "" {
		t.Fatal("movie not set after export")
	}

	first, _ := seg.ByName("SH010")
	if err := seg.MoveEnd(first, 30); err != nil {
		t.Fatal(err)
	}
	media.failClips = true
	summary, err := p.Export(context.Background(), seg, opts)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if summary.Movies != 0 || summary.Audio != 3 || summary.Errors != 3 {
		t.Fatalf("report = %+v", summary)
	}
	for _, s := range seg.Shots() {
		if s.Movie() != "" {
			t.Errorf("%s keeps movie %q after failed extraction", s.Name(), s.Movie())
		}
		if s.Audio() == "" {
			t.Errorf("%s lost its audio", s.Name())
		}
	}
}
