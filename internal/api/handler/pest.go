package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/api/models"
	"github.com/agriai/agriai/internal/api/response"
)

// maxImageBytes caps pest image uploads.
const maxImageBytes = 10 << 20

var errEmptyImage = errors.New("image is required")

// AnalyzePest handles POST /v1/pest-analyses. The image arrives either as a
// multipart "image" file or as base64 in a JSON body.
func (h *AdvisoryHandler) AnalyzePest(w http.ResponseWriter, r *http.Request) {
	image, cropType, err := readPestUpload(w, r)
	if err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "image", Message: err.Error()},
		})
		return
	}

	result := h.advisor.AnalyzePest(r.Context(), image, cropType)
	response.MarkDegraded(w, result.Provenance == agronomy.ProvenanceDemo || result.Provenance == agronomy.ProvenanceError)
	response.JSON(w, r, http.StatusOK, models.PestAnalysisResponse{
		ID:                 "pst_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:22],
		PestAnalysisResult: *result,
		CreatedAt:          models.Timestamp(time.Now()),
	})
}

func readPestUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return readMultipartImage(w, r)
	}

	var input models.PestAnalysisRequest
	body := http.MaxBytesReader(w, r.Body, maxImageBytes*2)
	if err := decodeBody(body, &input); err != nil {
		return nil, "", err
	}
	image, err := DecodeImage(input.ImageBase64)
	if err != nil {
		return nil, "", err
	}
	return image, input.CropType, nil
}

func readMultipartImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, "", fmt.Errorf("invalid multipart body: %w", err)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, "", errEmptyImage
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	if len(image) > maxImageBytes {
		return nil, "", errors.New("image exceeds 10 MiB")
	}
	if len(image) == 0 {
		return nil, "", errEmptyImage
	}
	return image, r.FormValue("cropType"), nil
}

// DecodeImage decodes a bare base64 string or a base64 data URL.
func DecodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		header, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, errors.New("data URL must be base64 encoded")
		}
		s = payload
	}
	if s == "" {
		return nil, errEmptyImage
	}
	image, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	if len(image) > maxImageBytes {
		return nil, errors.New("image exceeds 10 MiB")
	}
	return image, nil
}
