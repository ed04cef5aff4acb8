package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonathan/resume-onepage/internal/db"
	"github.com/jonathan/resume-onepage/internal/export"
	"github.com/jonathan/resume-onepage/internal/rendering"
	"github.com/jonathan/resume-onepage/internal/schemas"
)

const (
	// PDFWarning is sent in X-PDF-Warning when the export overflowed.
	PDFWarning = "Content may not fit on one page after maximum compression"

	healthTimeout = 2 * time.Second
	maxHistory    = 100
)

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "database": "disabled"}
	if s.deps.Database == nil {
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.deps.Database.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", slog.String("error", err.Error()))
		resp["status"] = "degraded"
		resp["database"] = "unavailable"
		s.jsonResponse(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp["database"] = "ok"
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleTemplates lists the export templates
func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"templates": rendering.ListTemplates()})
}

// handleExportLoadout exports a stored loadout: GET /export/{loadout}?template=&photo=
func (s *Server) handleExportLoadout(w http.ResponseWriter, r *http.Request) {
	loadout := r.PathValue("loadout")
	q := r.URL.Query()

	templateID := q.Get("template")
	if templateID != "" && !rendering.IsValidTemplateID(templateID) {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown template %q", templateID))
		return
	}

	s.export(w, r, export.Request{
		LoadoutID:  loadout,
		TemplateID: templateID,
		PhotoURL:   resolvePhotoURL(r, q.Get("photo")),
	})
}

// handleExportDocument exports an inline document: POST /export
func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	req, err := schemas.ParseExportRequest(body)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.export(w, r, export.Request{
		Document:   req.Document,
		TemplateID: req.TemplateID,
		PhotoURL:   resolvePhotoURL(r, req.PhotoURL),
	})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, req export.Request) {
	if s.deps.Exporter == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "export service not configured")
		return
	}

	res, err := s.deps.Exporter.Export(r.Context(), req)
	if err != nil {
		status := HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("export failed", slog.Int("status", status), slog.String("error", err.Error()))
		}
		s.errorResponse(w, status, err.Error())
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	h.Set("Content-Length", strconv.Itoa(len(res.Artifact)))
	h.Set("X-Compression-Log", res.Summary.CompressionLog())
	h.Set("X-Font-Scale", strconv.FormatFloat(res.Summary.FontScale, 'f', 4, 64))
	h.Set("X-Line-Height-Scale", strconv.FormatFloat(res.Summary.LineHeightScale, 'f', 4, 64))
	h.Set("X-Iterations", strconv.Itoa(res.Summary.Iterations))
	if !res.Summary.CanFit {
		h.Set("X-PDF-Warning", PDFWarning)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Artifact); err != nil {
		s.logger.Warn("failed to write PDF", slog.String("error", err.Error()))
	}
}

// handleExportHistory lists recent export runs: GET /export/{loadout}/history?limit=
func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "export history requires a database")
		return
	}

	limit := db.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistory {
			s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxHistory))
			return
		}
		limit = n
	}

	loadout := r.PathValue("loadout")
	records, err := s.deps.History.ListExports(r.Context(), loadout, limit)
	if err != nil {
		s.logger.Error("failed to list exports", slog.String("loadout", loadout), slog.String("error", err.Error()))
		s.errorResponse(w, http.StatusInternalServerError, "failed to list exports")
		return
	}
	if records == nil {
		records = []db.ExportRecord{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"loadout": loadout,
		"exports": records,
	})
}

// resolvePhotoURL turns a site-relative photo path into an absolute URL the
// renderer can fetch. Absolute and data URLs pass through unchanged.
func resolvePhotoURL(r *http.Request, photo string) string {
	if photo == "" {
		return ""
	}
	ref, err := url.Parse(photo)
	if err != nil || ref.IsAbs() {
		return photo
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	base := &url.URL{Scheme: scheme, Host: r.Host, Path: "/"}
	return base.ResolveReference(ref).String()
}
