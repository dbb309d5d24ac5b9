package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
	"crnumbers/internal/services"
	"crnumbers/internal/validation"
)

const (
	msgDuplicateSubmission = "Someone has already submitted this section for the selected date. " +
		"Please check if you chose the right section and date, or contact the leader if you think this is a mistake."
	msgAlreadyFinalized = "A report has already been submitted for this date."
	msgNoPending        = "No pending entries found for this date"
	msgServerError      = "Server error"
)

type errorResponse struct {
	Message string               `json:"message"`
	Errors  []validation.Problem `json:"errors,omitempty"`
	Fields  []core.Metric        `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// writeError maps service errors to status codes. Unknown errors become a 500 carrying
// fallback; their detail only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	ctx := r.Context()

	if ve, ok := validation.AsError(err); ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: ve.Error(), Errors: ve.Problems})
		return
	}

	var dup *services.DuplicateSubmissionError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, errorResponse{Message: msgDuplicateSubmission, Fields: dup.Fields})
	case errors.Is(err, core.ErrDuplicateSubmission):
		writeMessage(w, http.StatusConflict, msgDuplicateSubmission)
	case errors.Is(err, core.ErrAlreadyFinalized):
		writeMessage(w, http.StatusConflict, msgAlreadyFinalized)
	case errors.Is(err, core.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	default:
		applog.FromContext(ctx).ErrorContext(ctx, "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		if fallback == "" {
			fallback = msgServerError
		}
		writeMessage(w, http.StatusInternalServerError, fallback)
	}
}
