package images

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/rs/zerolog"
)

type Handler struct {
	service *Service
	logger  zerolog.Logger
}

type uploadResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

type galleryResponse struct {
	OK      bool     `json:"ok"`
	Gallery []string `json:"gallery"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandleUpload accepts a multipart form with an image in the "file" field.
// The part is streamed to the store as it is read.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	part, filename, err := filePart(r, "file")
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer part.Close()

	image, err := h.service.Upload(ctx, &UploadInput{
		Filename:    filename,
		ContentType: part.Header.Get("Content-Type"),
		Size:        -1,
		Body:        part,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, uploadResponse{OK: true, URL: image.URL})
}

// HandleGallery lists the URLs of all stored images.
func (h *Handler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	urls, err := h.service.Gallery(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, galleryResponse{OK: true, Gallery: urls})
}

// filePart returns the first part of the named field that carries a filename
// parameter, along with that filename exactly as sent. Parts without a
// filename are plain form values and are skipped. A body that is not
// multipart, or has no such part, is "No file part".
func filePart(r *http.Request, field string) (*multipart.Part, string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, "", &ValidationError{Reason: ReasonNoFilePart}
	}

	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, "", &ValidationError{Reason: ReasonNoFilePart}
		}
		if part.FormName() != field {
			part.Close()
			continue
		}
		if filename, ok := rawFilename(part.Header); ok {
			return part, filename, nil
		}
		part.Close()
	}
}

// rawFilename reads the filename parameter from Content-Disposition without
// the path stripping multipart.Part.FileName applies. RFC 2231 encoded names
// (filename*) are decoded by mime.ParseMediaType.
func rawFilename(header textproto.MIMEHeader) (string, bool) {
	_, params, err := mime.ParseMediaType(header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	filename, ok := params["filename"]
	return filename, ok
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.logger.Debug().Str("reason", validationErr.Reason).Msg("rejected upload")
		h.writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: validationErr.Reason})
		return
	}

	h.writeJSONResponse(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}
