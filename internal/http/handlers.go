package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
	"crnumbers/internal/validation"
)

const healthTimeout = 2 * time.Second

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := "Request body could not be read"
		if errors.As(err, &tooLarge) {
			msg = "Request body is too large"
		}
		return nil, &validation.Error{Problems: []validation.Problem{{
			Field: "body", Kind: validation.KindInvalidType, Message: msg,
		}}}
	}
	return body, nil
}

// POST /api/pending
func (s *Server) handleCreatePending(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	req, err := s.deps.Validator.ParseStaging(body)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	entry, err := s.deps.Staging.Submit(r.Context(), req.Entry, req.Replace)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Pending entry saved",
		"entry":   entry,
	})
}

// POST /api/pending/section
func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	sub, err := s.deps.Validator.ParseSection(body)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	entries, err := s.deps.Staging.SubmitSection(r.Context(), sub)
	if err != nil {
		if len(entries) > 0 {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Section partially saved",
				applog.FieldDate, sub.Date.String(),
				applog.FieldCount, len(entries))
		}
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Section saved",
		"entries": entries,
	})
}

// GET /api/pending/{date}
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	date, err := validation.ValidateDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	entries, err := s.deps.Staging.ListByDate(r.Context(), date)
	if errors.Is(err, core.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, msgNoPending)
		return
	}
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type finalizeResponse struct {
	Message     string      `json:"message"`
	Report      core.Report `json:"report"`
	EmailFailed bool        `json:"emailFailed,omitempty"`
}

// POST /api/reports
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	req, err := s.deps.Validator.ParseFinalize(body)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	out, err := s.deps.Finalizer.Finalize(r.Context(), req)
	if err != nil {
		writeError(w, r, err, "Server error saving report.")
		return
	}

	if out.NotifyErr != nil {
		writeJSON(w, http.StatusInternalServerError, finalizeResponse{
			Message:     "Report saved, but the email notification failed. The data is safe; please let the leader know.",
			Report:      out.Report,
			EmailFailed: true,
		})
		return
	}
	msg := "Final report saved, email sent, and pending entries cleared."
	if out.CleanupErr != nil {
		msg = "Final report saved and email sent. Pending entries will be cleared shortly."
	}
	writeJSON(w, http.StatusCreated, finalizeResponse{Message: msg, Report: out.Report})
}

// GET /api/reports?page=&limit=
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	limit, _ := strconv.Atoi(strings.TrimSpace(q.Get("limit")))

	p, err := s.deps.Reports.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	reports := p.Reports
	if reports == nil {
		reports = []core.Report{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(p.Total))
	writeJSON(w, http.StatusOK, reports)
}

// GET /api/reports/stats?year=
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			writeMessage(w, http.StatusBadRequest, "Invalid year")
			return
		}
		year = y
	}
	st, err := s.deps.Reports.Stats(r.Context(), year)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type fieldDTO struct {
	Name     core.Metric `json:"name"`
	Label    string      `json:"label"`
	Currency bool        `json:"currency"`
}

type groupDTO struct {
	Name   string     `json:"name"`
	Fields []fieldDTO `json:"fields"`
}

// GET /api/fields
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	groups := make([]groupDTO, 0, len(core.FieldGroups))
	for _, g := range core.FieldGroups {
		dto := groupDTO{Name: g.Name}
		for _, m := range g.Fields {
			dto.Fields = append(dto.Fields, fieldDTO{
				Name:     m,
				Label:    m.Label(),
				Currency: core.IsCurrency(string(m)),
			})
		}
		groups = append(groups, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.deps.DB.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Health check failed", applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "error",
			"database": "disconnected",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "connected",
	})
}
