package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ytget/yt-fetchd/internal/delivery"
	"github.com/ytget/yt-fetchd/internal/download"
	"github.com/ytget/yt-fetchd/internal/jobs"
	"github.com/ytget/yt-fetchd/internal/model"
)

const (
	msgBusy     = "Server busy. Please try again in a moment."
	msgShutdown = "Server is shutting down."
	msgFileGone = "File not found, expired, or cleaned up."
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"active_downloads": s.deps.Jobs.ActiveCount(),
		"cached_files":     s.deps.Cache.Len(),
		"max_concurrent":   s.deps.Jobs.MaxConcurrent(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	size := s.deps.Cache.TotalSize()
	respondJSON(w, http.StatusOK, map[string]any{
		"active_downloads":      s.deps.Jobs.ActiveCount(),
		"total_jobs":            s.deps.Jobs.Len(),
		"cached_files":          s.deps.Cache.Len(),
		"cache_size_bytes":      size,
		"cache_size_mb":         math.Round(float64(size)/(1024*1024)*100) / 100,
		"max_concurrent":        s.deps.Jobs.MaxConcurrent(),
		"cleanup_after_minutes": s.cfg.CleanupAfterMinutes,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	info, err := s.deps.Fetch.Inspect(r.Context(), form.URL)
	if err != nil {
		s.respondReadError(w, r, "info", err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	playlist, err := s.deps.Fetch.ListPlaylist(r.Context(), form.URL)
	if err != nil {
		s.respondReadError(w, r, "playlist", err)
		return
	}
	respondJSON(w, http.StatusOK, playlist)
}

// respondReadError maps failures of the read-only info paths
func (s *Server) respondReadError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var collab *download.CollaboratorError
	switch {
	case errors.Is(err, download.ErrValidation):
		respondError(w, http.StatusBadRequest, err)
	case errors.As(err, &collab):
		s.logger.Warn("collaborator failed", "op", op, "error", err)
		respondError(w, http.StatusBadGateway, fmt.Errorf("error getting %s: %w", op, collab))
	case r.Context().Err() != nil:
		respondError(w, http.StatusGatewayTimeout, fmt.Errorf("%s request timed out", op))
	default:
		s.logger.Error("read path failed", "op", op, "error", err)
		respondError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}

	token, err := s.deps.Fetch.Submit(r.Context(), download.Request{
		URL:         form.URL,
		Type:        form.Type,
		Quality:     form.Quality,
		RequestedBy: clientIP(r),
	})

	var verr *download.ValidationError
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "download_id": token})
	case errors.Is(err, jobs.ErrBusy):
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "message": msgBusy})
	case errors.As(err, &verr):
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "message": verr.Reason})
	case errors.Is(err, download.ErrClosed):
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "message": msgShutdown})
	default:
		s.logger.Error("admission failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			respondJSON(w, http.StatusOK, map[string]model.JobStatus{"status": model.JobStatusNotFound})
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Delivery.Serve(w, r, chi.URLParam(r, "id"))
	switch {
	case err == nil:
	case errors.Is(err, delivery.ErrGone):
		respondError(w, http.StatusNotFound, errors.New(msgFileGone))
	default:
		s.logger.Error("delivery failed", "error", err)
		respondError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"history": s.deps.Jobs.ListByRequester(clientIP(r)),
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, _ *http.Request) {
	res := s.deps.Purger.Purge()
	s.logger.Info("forced cleanup", "artifacts_evicted", res.ArtifactsEvicted, "jobs_removed", res.JobsRemoved)
	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"removed":      res.ArtifactsEvicted,
		"jobs_removed": res.JobsRemoved,
	})
}
