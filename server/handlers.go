package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
)

// maxMemory is the part of a multipart form kept in memory; the rest is
// spooled to temporary files.
const maxMemory = 32 << 20

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleCompare validates the uploaded CSV, waits for a comparison slot and
// runs the pipeline.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(log.RequestIDKey, middleware.GetReqID(r.Context()))

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, ReasonFileSize, http.StatusRequestEntityTooLarge, s.sizeDetail())
			return
		}
		s.reject(w, ReasonMissingFile, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.reject(w, ReasonMissingFile, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	logger = logger.With(log.FileNameKey, header.Filename)

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		s.reject(w, ReasonFileType, http.StatusBadRequest, "Only CSV files are supported")
		return
	}
	if header.Size > s.maxUpload {
		s.reject(w, ReasonFileSize, http.StatusRequestEntityTooLarge, s.sizeDetail())
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Reading upload failed", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.MaxWaitTime)
	defer cancel()
	if err := s.limiter.Acquire(ctx, 1); err != nil {
		logger.Warn("No comparison slot available", log.StatusKey, http.StatusServiceUnavailable)
		s.reject(w, ReasonBusy, http.StatusServiceUnavailable, "Too many concurrent comparisons, please try again later")
		return
	}
	ComparisonsInFlight.Inc()
	defer func() {
		ComparisonsInFlight.Dec()
		s.limiter.Release(1)
	}()

	logger.Info("Upload accepted", log.DataSizeKey, len(raw))
	result, err := s.comparer.CompareModels(raw)
	if err != nil {
		logger.Error("Comparison failed", err)
		writeDetail(w, http.StatusInternalServerError, "Error processing dataset: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) reject(w http.ResponseWriter, reason string, status int, detail string) {
	RejectedUploadsTotal.WithLabelValues(reason).Inc()
	writeDetail(w, status, detail)
}

func (s *Server) sizeDetail() string {
	return fmt.Sprintf("File size exceeds maximum limit of %d bytes", s.maxUpload)
}
