package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"promptpix/internal/domain"
	"promptpix/internal/imagegen"
)

const maxGenerateBody = 1 << 20

type generateResponse struct {
	Image    string `json:"image"`
	ImgbbURL string `json:"imgbbUrl"`
	DBID     *int64 `json:"dbId,omitempty"`
}

// GenerateImage runs one generate, upload and optional persist chain. Body fields
// reach the generation API as sent, wrong types included; only a body that is
// not JSON at all is rejected here.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())
	if log.GetLevel() == zerolog.Disabled {
		log = &a.Logger
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, domain.ErrInvalidBody.Error())
		return
	}
	req, err := domain.ParseGenerationRequest(body)
	if err != nil {
		a.error(w, http.StatusBadRequest, domain.ErrInvalidBody.Error())
		return
	}
	if a.Pipeline == nil {
		a.error(w, http.StatusInternalServerError, "image pipeline is not wired")
		return
	}

	out, err := a.Pipeline.Run(r.Context(), req)
	if err != nil {
		status, message := runErrorResponse(err)
		log.Error().Err(err).Str("stage", string(imagegen.StageOf(err))).Int("status", status).Msg("generate image failed")
		a.error(w, status, message)
		return
	}

	a.json(w, http.StatusOK, generateResponse{Image: out.Image, ImgbbURL: out.HostedURL, DBID: out.RecordID})
}

// runErrorResponse maps a pipeline failure to the status and message returned
// to the browser.
func runErrorResponse(err error) (int, string) {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return http.StatusInternalServerError, cfgErr.Error()
	}

	cause := err
	var se *imagegen.StageError
	if errors.As(err, &se) {
		cause = se.Err
	}

	switch imagegen.StageOf(err) {
	case imagegen.StageGenerating:
		var upErr *domain.UpstreamError
		if errors.As(cause, &upErr) && upErr.StatusCode >= 400 && upErr.StatusCode <= 599 {
			return upErr.StatusCode, fmt.Sprintf("API error: %d %s", upErr.StatusCode, strings.TrimSpace(upErr.Body))
		}
		var cv *domain.ContractViolation
		if errors.As(cause, &cv) {
			return http.StatusInternalServerError, "Unexpected API response structure"
		}
		return http.StatusInternalServerError, "Failed to generate or upload image: " + cause.Error()
	case imagegen.StageUploading:
		return http.StatusInternalServerError, "Failed to generate or upload image: " + cause.Error()
	case imagegen.StagePersisting:
		return http.StatusInternalServerError, "Failed to save generation record: " + cause.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}
