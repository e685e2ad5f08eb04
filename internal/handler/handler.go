// Package handler exposes the detection engine over HTTP.
//
// Routes:
//
//	POST /api/detect    multipart upload, field "file"; ?detailed=true adds diagnostics
//	GET  /api/formats   accepted MIME types and the upload limit
//	GET  /health        liveness
//	GET  /              service index
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aidetector/aidetector/internal/apperr"
	"github.com/aidetector/aidetector/internal/report"
	"github.com/aidetector/aidetector/internal/service"
	"github.com/aidetector/aidetector/pkg/logger"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// Config holds handler dependencies.
type Config struct {
	Detector      service.Detector
	Logger        *logger.Logger
	MaxUploadSize int64
	Version       string
}

// Handler serves the detection API.
type Handler struct {
	detector      service.Detector
	logger        *logger.Logger
	maxUploadSize int64
	version       string
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FormatsResponse lists what the upload endpoint accepts.
type FormatsResponse struct {
	Images        []string `json:"images"`
	Videos        []string `json:"videos"`
	MaxUploadSize int64    `json:"maxUploadSize"`
	MaxUploadMB   int64    `json:"maxUploadMB"`
}

// New creates a Handler.
func New(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NopLogger()
	}
	maxSize := cfg.MaxUploadSize
	if maxSize <= 0 {
		maxSize = service.MaxUploadSize
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		detector:      cfg.Detector,
		logger:        log,
		maxUploadSize: maxSize,
		version:       version,
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/detect", h.Detect)
	mux.HandleFunc("GET /api/formats", h.Formats)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /{$}", h.Index)
	return mux
}

// Detect scores an uploaded image or video.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeError(w, http.StatusBadRequest, service.NoFileError().Error())
		default:
			log.Warn("parse upload", "error", err)
			writeError(w, http.StatusBadRequest, "malformed multipart body")
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, service.NoFileError().Error())
		return
	}
	defer file.Close()

	// Sniffing needs a few leading bytes when neither header nor name help.
	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	mimeType := service.ResolveMIME(header.Header.Get("Content-Type"), header.Filename, head[:n])

	if err := service.ValidateUpload(mimeType, header.Size, h.maxUploadSize); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		log.Error("rewind upload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("read upload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	result, err := h.detector.Detect(r.Context(), service.DetectionInput{
		Data:     data,
		MIMEType: mimeType,
		FileName: header.Filename,
	})
	if err != nil {
		log.Error("detection failed", "error", err, "file", header.Filename)
		writeError(w, http.StatusInternalServerError, "detection failed")
		return
	}

	detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))

	log.Info("detection complete",
		"file", header.Filename,
		"type", result.Verdict.FileType,
		"confidence", result.Verdict.Confidence,
		"status", result.Status,
	)

	writeJSON(w, http.StatusOK, report.NewDocument(result, detailed))
}

// Formats returns the accepted MIME types and upload limit.
func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormatsResponse{
		Images:        service.AcceptedImageTypes,
		Videos:        service.AcceptedVideoTypes,
		MaxUploadSize: h.maxUploadSize,
		MaxUploadMB:   h.maxUploadSize / (1024 * 1024),
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Index describes the service.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "AI Detector API",
		"version": h.version,
		"endpoints": map[string]string{
			"POST /api/detect": "Score an uploaded image or video (multipart field \"file\")",
			"GET /api/formats": "Accepted media types and upload limit",
			"GET /health":      "Health check",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps caller mistakes to 400 and everything else to 500.
func statusFor(err error) int {
	if apperr.IsUser(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
