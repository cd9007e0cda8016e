package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hszk-dev/flipconvert/internal/domain/model"
	"github.com/hszk-dev/flipconvert/internal/domain/repository"
	"github.com/hszk-dev/flipconvert/internal/usecase"
)

// multipartMemory is the part of a multipart body kept in memory; the rest spills to disk.
const multipartMemory = 32 << 20

// Request/Response types

type ConversionResponse struct {
	ID          string `json:"id"`
	OutputName  string `json:"output_name"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	ExpiresAt   string `json:"expires_at"`
}

type TargetsResponse struct {
	Category string   `json:"category"`
	Source   string   `json:"source,omitempty"`
	Targets  []string `json:"targets"`
	Default  string   `json:"default,omitempty"`
}

type FormatsResponse struct {
	Families map[string][]string `json:"families"`
}

// ConversionHandler handles conversion-related HTTP requests.
type ConversionHandler struct {
	svc            usecase.ConversionService
	maxUploadBytes int64
}

// NewConversionHandler creates a new ConversionHandler.
// Uploads larger than maxUploadBytes are rejected with 413.
func NewConversionHandler(svc usecase.ConversionService, maxUploadBytes int64) *ConversionHandler {
	return &ConversionHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Formats handles GET /v1/formats
func (h *ConversionHandler) Formats(w http.ResponseWriter, r *http.Request) {
	families := make(map[string][]string)
	for family, formats := range model.FormatsByFamily() {
		families[family.String()] = formatStrings(formats)
	}
	JSON(w, http.StatusOK, FormatsResponse{Families: families})
}

// Targets handles GET /v1/targets?name={file name}&mime={mime type}
func (h *ConversionHandler) Targets(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		Error(w, http.StatusBadRequest, "invalid_name", "File name is required")
		return
	}

	opts := h.svc.Targets(name, r.URL.Query().Get("mime"))
	JSON(w, http.StatusOK, TargetsResponse{
		Category: string(opts.Category),
		Source:   opts.Source.String(),
		Targets:  formatStrings(opts.Targets),
		Default:  opts.Default.String(),
	})
}

// Convert handles POST /v1/conversions (multipart: file, target)
func (h *ConversionHandler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "file_too_large", "Uploaded file exceeds the size limit")
			return
		}
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	target := r.FormValue("target")
	if target == "" {
		Error(w, http.StatusBadRequest, "invalid_target", "Target format is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_file", "File is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_file", "Failed to read uploaded file")
		return
	}

	output, err := h.svc.Convert(r.Context(), usecase.ConvertInput{
		FileName:     header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		TargetFormat: target,
		Data:         data,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, toConversionResponse(output))
}

// GetArtifact handles GET /v1/artifacts/{id}
func (h *ConversionHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_artifact_id", "Artifact ID must be a valid UUID")
		return
	}

	output, err := h.svc.GetArtifact(r.Context(), artifactID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, output.DownloadURL, http.StatusFound)
}

func (h *ConversionHandler) handleServiceError(w http.ResponseWriter, err error) {
	var (
		invalid     *model.InvalidRequestError
		unsupported *model.UnsupportedConversionError
		failed      *model.TranscodeExecutionError
	)

	switch {
	case errors.As(err, &invalid):
		ErrorWithDetails(w, http.StatusBadRequest, "invalid_request", err.Error(),
			map[string]string{"field": invalid.Field})
	case errors.As(err, &unsupported):
		ErrorWithDetails(w, http.StatusUnprocessableEntity, "unsupported_conversion", err.Error(),
			map[string]string{"from": unsupported.From.String(), "to": unsupported.To.String()})
	case errors.As(err, &failed):
		ErrorWithDetails(w, http.StatusBadGateway, "transcode_failed", "The file could not be converted",
			map[string]string{"stage": string(failed.Stage)})
	case errors.Is(err, usecase.ErrNoConverterAvailable):
		Error(w, http.StatusServiceUnavailable, "converter_unavailable", "No converter became available in time")
	case errors.Is(err, repository.ErrArtifactNotFound):
		Error(w, http.StatusNotFound, "artifact_not_found", "Artifact not found or expired")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func toConversionResponse(out *usecase.ConvertOutput) ConversionResponse {
	a := out.Artifact
	return ConversionResponse{
		ID:          a.ID.String(),
		OutputName:  a.OutputName,
		MimeType:    a.MimeType,
		Size:        a.Size,
		DownloadURL: out.DownloadURL,
		ExpiresAt:   a.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func formatStrings(formats []model.Format) []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = f.String()
	}
	return out
}
