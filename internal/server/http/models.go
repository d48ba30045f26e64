package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ekisa-team/dlrshim/internal/model"
	"github.com/ekisa-team/dlrshim/internal/service"
)

type (
	PredictRequestDTO struct {
		Inputs map[string]service.Tensor `json:"inputs"`
	}

	ListModelsResponseDTO struct {
		Models []model.Info `json:"models"`
	}

	ErrorResponseDTO struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id,omitempty"`
	}

	healthResponseDTO struct {
		Status string `json:"status"`
		Models int    `json:"models"`
	}
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponseDTO{Status: "ok", Models: len(s.inference.List())})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListModelsResponseDTO{Models: s.inference.List()})
}

func (s *Server) handleDescribeModel(w http.ResponseWriter, r *http.Request) {
	d, err := s.inference.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequestDTO

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, errors.Join(service.ErrInvalidInput, err))
		return
	}

	p, err := s.inference.Predict(r.Context(), chi.URLParam(r, "id"), req.Inputs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case service.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponseDTO{
		Error:     err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// writeJSON encodes v before writing the header so an encoding failure, such
// as a NaN in a model output, still yields a complete 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)

		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(ErrorResponseDTO{Error: "encode response: " + err.Error()})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
