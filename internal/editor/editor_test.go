package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keagan/shotlist/internal/config"
	"github.com/keagan/shotlist/internal/ffmpeg"
	"github.com/keagan/shotlist/internal/pipeline"
	"github.com/keagan/shotlist/internal/session"
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/timecode"
	"github.com/rs/zerolog"
)

type fakeMedia struct {
	analyzed  int
	refreshed int
	exported  []string
}

func (f *fakeMedia) Analyze(ctx context.Context, source string, opts pipeline.AnalyzeOptions) (*pipeline.Project, error) {
	f.analyzed++
	fps := timecode.MustRate(24, 1)
	seg, err := shots.BuildFromDetection([]int{0, 24, 72}, 120, fps, source)
	if err != nil {
		return nil, err
	}
	if opts.Prefix != "" {
		seg.SetPrefix(opts.Prefix)
	}
	seg.SetNewStart(opts.NewStart)
	return &pipeline.Project{
		Source:       source,
		Info:         &ffmpeg.VideoInfo{Path: source, FPS: fps, Frames: 120, Duration: 5 * time.Second},
		Threshold:    opts.Threshold,
		Segmentation: seg,
	}, nil
}

func (f *fakeMedia) RefreshMedia(ctx context.Context, seg *shots.Segmentation) (int, error) {
	stale := seg.TakeStale()
	for _, s := range stale {
		s.SetThumbnail(fmt.Sprintf("/thumbs/%s_%d.jpg", s.ID(), s.Start()))
		f.refreshed++
	}
	return len(stale), nil
}

func (f *fakeMedia) Export(ctx context.Context, seg *shots.Segmentation, opts pipeline.ExportOptions) (*pipeline.ExportReport, error) {
	f.exported = append(f.exported, opts.Dir)
	return &pipeline.ExportReport{}, nil
}

func newTestEditor(t *testing.T) (*Editor, *fakeMedia, *session.Store, string) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "take01.mov")
	if err := os.WriteFile(source, []byte("movie"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	store := session.NewStore(cfg.DataDir, zerolog.Nop())
	media := &fakeMedia{}
	return New(zerolog.Nop(), cfg, media, store, Options{Thumbnails: true}), media, store, source
}

func names(snap *Snapshot) []string {
	out := make([]string, len(snap.Shots))
	for i, s := range snap.Shots {
		out[i] = s.Name
	}
	return out
}

func TestEditsBeforeOpen(t *testing.T) {
	e, _, _, _ := newTestEditor(t)
	if _, err := e.Split(context.Background(), 10); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Split err = %v, want ErrNoSource", err)
	}
	if _, err := e.Snapshot(); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Snapshot err = %v, want ErrNoSource", err)
	}
}

func TestOpenDetectsThenRestores(t *testing.T) {
	e, media, store, source := newTestEditor(t)
	ctx := context.Background()

	snap, err := e.Open(ctx, source, OpenOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if media.analyzed != 1 || len(snap.Shots) != 3 || snap.Threshold != 45 {
		t.Fatalf("analyzed=%d snap=%+v", media.analyzed, snap)
	}
	if media.refreshed != 3 {
		t.Fatalf("refreshed %d thumbnails, want 3", media.refreshed)
	}
	if snap.Shots[0].Thumbnail == "" {
		t.Fatal("thumbnail not applied")
	}

	if _, err := e.Split(ctx, 100); err != nil {
		t.Fatalf("Split: %v", err)
	}

	last, err := store.LastOpen()
	if err != nil || last != source {
		t.Fatalf("LastOpen = %q, %v", last, err)
	}

	// a fresh editor picks the auto-save up without detecting again
	again := New(zerolog.Nop(), e.cfg, media, store, Options{})
	snap, err = again.OpenLast(ctx)
	if err != nil {
		t.Fatalf("OpenLast: %v", err)
	}
	if media.analyzed != 1 {
		t.Fatalf("detected again: analyzed=%d", media.analyzed)
	}
	if got := names(snap); len(got) != 4 || got[3] != "SH040" {
		t.Fatalf("restored shots = %v", got)
	}

	if _, err := again.Open(ctx, source, OpenOptions{Redetect: true, Threshold: 20}); err != nil {
		t.Fatalf("Open redetect: %v", err)
	}
	snap, _ = again.Snapshot()
	if media.analyzed != 2 || len(snap.Shots) != 3 || snap.Threshold != 20 {
		t.Fatalf("redetect: analyzed=%d shots=%d threshold=%v", media.analyzed, len(snap.Shots), snap.Threshold)
	}
}

func TestUpdateShotMovesBothBoundaries(t *testing.T) {
	e, _, _, source := newTestEditor(t)
	ctx := context.Background()
	if _, err := e.Open(ctx, source, OpenOptions{}); err != nil {
		t.Fatal(err)
	}
	before, err := e.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	start, badEnd := 30, 200
	if _, err := e.UpdateShot(ctx, "SH020", Update{Start: &start, End: &badEnd}); !errors.Is(err, shots.ErrBoundaryCollision) {
		t.Fatalf("err = %v, want ErrBoundaryCollision", err)
	}
	after, err := e.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	for i := range before.Shots {
		if after.Shots[i] != before.Shots[i] {
			t.Fatalf("shot %d changed by failed update: %+v -> %+v", i, before.Shots[i], after.Shots[i])
		}
	}

	end := 80
	snap, err := e.UpdateShot(ctx, "SH020", Update{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("UpdateShot: %v", err)
	}
	got := fmt.Sprint(snap.Shots[0].End, snap.Shots[1].Start, snap.Shots[1].End, snap.Shots[2].Start)
	if got != "29 30 80 81" {
		t.Fatalf("boundaries = %s, want 29 30 80 81", got)
	}
}

func TestEditOperations(t *testing.T) {
	e, _, _, source := newTestEditor(t)
	ctx := context.Background()
	if _, err := e.Open(ctx, source, OpenOptions{}); err != nil {
		t.Fatal(err)
	}

	snap, err := e.Split(ctx, 48)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if got := names(snap); fmt.Sprint(got) != "[SH010 SH020 SH030 SH040]" {
		t.Fatalf("after split = %v", got)
	}
	if _, err := e.Split(ctx, 48); !errors.Is(err, shots.ErrBoundaryCollision) {
		t.Fatalf("second split err = %v", err)
	}

	snap, err = e.MoveStart(ctx, "SH030", 50)
	if err != nil {
		t.Fatalf("MoveStart: %v", err)
	}
	if snap.Shots[1].End != 49 || snap.Shots[2].Start != 50 {
		t.Fatalf("after move = %+v", snap.Shots[1:3])
	}

	snap, err = e.MoveEnd(ctx, "SH010", 30)
	if err != nil {
		t.Fatalf("MoveEnd: %v", err)
	}
	if snap.Shots[0].End != 30 || snap.Shots[1].Start != 31 {
		t.Fatalf("after move end = %+v", snap.Shots[0:2])
	}

	if _, err := e.MoveStart(ctx, "SH999", 5); !errors.Is(err, shots.ErrUnknownShot) {
		t.Fatalf("unknown shot err = %v", err)
	}

	snap, err = e.Merge(ctx, 50)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(snap.Shots) != 3 || snap.Shots[1].End != 71 {
		t.Fatalf("after merge = %+v", snap.Shots)
	}

	yes := true
	snap, err = e.UpdateShot(ctx, "SH020", Update{Ignored: &yes})
	if err != nil {
		t.Fatalf("UpdateShot: %v", err)
	}
	if got := names(snap); fmt.Sprint(got) != "[SH010 SH015_IGNORED SH020]" {
		t.Fatalf("after ignore = %v", got)
	}

	snap, err = e.SetPrefix(ctx, "ep01")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Prefix != "ep01" || snap.Shots[0].Name != "EP01_SH010" {
		t.Fatalf("after prefix = %+v", snap)
	}

	snap, err = e.SetShotStart(ctx, 1001, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range snap.Shots {
		if s.NewStart != 1001 {
			t.Fatalf("%s new start = %d", s.Name, s.NewStart)
		}
	}

	snap, err = e.Delete(ctx, 0)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(snap.Shots) != 2 || snap.Shots[0].Start != 0 {
		t.Fatalf("after delete = %+v", snap.Shots)
	}
}

func TestExportDirectoryFallback(t *testing.T) {
	e, media, store, source := newTestEditor(t)
	ctx := context.Background()
	if _, err := e.Open(ctx, source, OpenOptions{}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Export(ctx, pipeline.ExportOptions{}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := filepath.Join(filepath.Dir(source), "take01_shots")
	if media.exported[0] != want {
		t.Fatalf("export dir = %q, want %q", media.exported[0], want)
	}

	f, err := store.Load(source)
	if err != nil {
		t.Fatal(err)
	}
	if f.ExportDirectory != want {
		t.Fatalf("saved export dir = %q", f.ExportDirectory)
	}
}
