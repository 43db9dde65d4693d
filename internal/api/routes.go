package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/keagan/shotlist/internal/editor"
	"github.com/keagan/shotlist/internal/ffmpeg"
	"github.com/keagan/shotlist/internal/pipeline"
	"github.com/keagan/shotlist/internal/session"
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/internal/timeline"
	"github.com/keagan/shotlist/pkg/util"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Get("/session", sessionHandler(cfg))
	r.Post("/session", openHandler(cfg))
	r.Post("/session/last", openLastHandler(cfg))

	r.Route("/shots", func(r chi.Router) {
		r.Get("/navigate", navigateHandler(cfg))
		r.Post("/split", frameEditHandler(cfg.Editor.Split))
		r.Post("/merge", frameEditHandler(cfg.Editor.Merge))
		r.Post("/delete", frameEditHandler(cfg.Editor.Delete))
		r.Post("/prefix", prefixHandler(cfg))
		r.Post("/retime", retimeHandler(cfg))
		r.Patch("/{ref}", patchShotHandler(cfg))
	})

	r.Post("/export", exportHandler(cfg))
	r.Get("/timeline.edl", timelineHandler(cfg, "edl"))
	r.Get("/timeline.otio", timelineHandler(cfg, "otio"))
	r.Get("/timeline.xml", timelineHandler(cfg, "xml"))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if snap, err := cfg.Editor.Snapshot(); err == nil {
			resp.Source = snap.Source
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func sessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := cfg.Editor.Snapshot()
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func openHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Source == "" {
			WriteError(w, http.StatusBadRequest, "source is required", "BAD_REQUEST")
			return
		}
		if req.Threshold < 0 || req.Threshold > 100 {
			WriteError(w, http.StatusBadRequest, "threshold must be within 0-100", "BAD_REQUEST")
			return
		}

		snap, err := cfg.Editor.Open(r.Context(), req.Source, editor.OpenOptions{
			Redetect:  req.Redetect,
			Threshold: req.Threshold,
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func openLastHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := cfg.Editor.OpenLast(r.Context())
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func frameEditHandler(edit func(ctx context.Context, frame int) (*editor.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FrameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Frame == nil {
			WriteError(w, http.StatusBadRequest, "frame is required", "BAD_REQUEST")
			return
		}
		snap, err := edit(r.Context(), *req.Frame)
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func patchShotHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "ref")
		var req ShotPatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		snap, err := cfg.Editor.UpdateShot(r.Context(), ref, editor.Update{
			Start:    req.Start,
			End:      req.End,
			Enabled:  req.Enabled,
			Ignored:  req.Ignored,
			NewStart: req.NewStart,
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func prefixHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PrefixRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		snap, err := cfg.Editor.SetPrefix(r.Context(), req.Prefix)
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func retimeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RetimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		snap, err := cfg.Editor.SetShotStart(r.Context(), req.Frame, req.Sequential)
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func navigateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, err := strconv.Atoi(r.URL.Query().Get("frame"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "frame query parameter is required", "BAD_REQUEST")
			return
		}

		resp := NavigateResponse{Frame: frame}
		err = cfg.Editor.View(func(seg *shots.Segmentation) error {
			s, ok := seg.At(frame)
			if !ok {
				return shots.ErrNoBoundary
			}
			resp.Shot = s.Name()
			if prev, ok := seg.Prev(frame); ok {
				resp.Prev = &prev
			}
			if next, ok := seg.Next(frame); ok {
				resp.Next = &next
			}
			return nil
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
		}

		opts := pipeline.ExportOptions{
			Dir:            req.Dir,
			Thumbnails:     pick(req.Thumbnails, cfg.Export.Thumbnails),
			Movies:         pick(req.Movies, cfg.Export.Movies),
			Audio:          pick(req.Audio, cfg.Export.Audio),
			EDL:            pick(req.EDL, cfg.Export.EDL),
			OTIO:           pick(req.OTIO, cfg.Export.OTIO),
			FCPXML:         pick(req.FCPXML, cfg.Export.FCPXML),
			ShotList:       pick(req.ShotList, cfg.Export.ShotList),
			ThumbnailWidth: pick(req.ThumbnailWidth, cfg.Export.ThumbnailWidth),
		}

		report, err := cfg.Editor.Export(r.Context(), opts)
		if err != nil {
			writeEditError(w, err)
			return
		}
		snap, _ := cfg.Editor.Snapshot()
		resp := ExportResponse{
			Thumbnails: report.Thumbnails,
			Movies:     report.Movies,
			Audio:      report.Audio,
			Timelines:  report.Timelines,
			Errors:     report.Errors,
		}
		if snap != nil {
			resp.Dir = snap.ExportDir
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func timelineHandler(cfg ServerConfig, format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		err := cfg.Editor.View(func(seg *shots.Segmentation) error {
			title := util.Stem(seg.Source())
			switch format {
			case "edl":
				return timeline.WriteEDL(&buf, title, seg.Projections())
			case "xml":
				return timeline.WriteFCPXML(&buf, title, seg.Projections())
			default:
				return timeline.WriteOTIO(&buf, title, seg.Projections())
			}
		})
		if err != nil {
			writeEditError(w, err)
			return
		}

		switch format {
		case "edl":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		case "xml":
			w.Header().Set("Content-Type", "application/xml")
		default:
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

func pick[T any](v *T, fallback T) T {
	if v != nil {
		return *v
	}
	return fallback
}

// writeEditError maps editor and engine errors onto HTTP statuses.
func writeEditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, editor.ErrNoSource):
		WriteError(w, http.StatusConflict, err.Error(), "NO_SOURCE")
	case errors.Is(err, session.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, shots.ErrUnknownShot), errors.Is(err, shots.ErrNoBoundary):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, shots.ErrBoundaryCollision),
		errors.Is(err, shots.ErrFirstShot),
		errors.Is(err, shots.ErrLastShot),
		errors.Is(err, shots.ErrInvalidRange):
		WriteError(w, http.StatusConflict, err.Error(), "INVALID_EDIT")
	case errors.Is(err, shots.ErrNoShotsDetected):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "NO_SHOTS")
	case errors.Is(err, ffmpeg.ErrProbe):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "PROBE_FAILED")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
