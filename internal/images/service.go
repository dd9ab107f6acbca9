package images

import (
	"context"
	"io"
	"time"

	"github.com/lanternfly/imagehost/internal/storage"
	"github.com/lanternfly/imagehost/internal/util"
	"github.com/rs/zerolog"
)

type Service struct {
	store  storage.Store
	logger zerolog.Logger
	now    func() time.Time
}

// Image is a stored upload.
type Image struct {
	Key       string `json:"key"`
	Container string `json:"container"`
	URL       string `json:"url"`
}

type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func NewService(store storage.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Validate checks the declared filename and content type of an upload.
func Validate(filename, contentType string) error {
	if filename == "" {
		return &ValidationError{Reason: ReasonNoFileSelected}
	}
	if !util.IsImageContentType(contentType) {
		return &ValidationError{Reason: ReasonInvalidFileType}
	}
	return nil
}

// Upload validates input and streams it to the store under a timestamped key.
// An existing object with the same key is overwritten.
func (s *Service) Upload(ctx context.Context, input *UploadInput) (*Image, error) {
	if err := Validate(input.Filename, input.ContentType); err != nil {
		return nil, err
	}

	key := util.ObjectKey(s.now(), input.Filename)

	result, err := s.store.Upload(ctx, key, input.Body, input.Size, input.ContentType)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("upload failed")
		return nil, &StorageError{Op: "upload", Err: err}
	}

	s.logger.Info().
		Str("key", key).
		Str("url", result.URL).
		Int64("bytes", result.Size).
		Str("content_type", input.ContentType).
		Msg("uploaded image")

	return &Image{
		Key:       key,
		Container: s.store.Container(),
		URL:       result.URL,
	}, nil
}

// Gallery returns the public URL of every stored image in store order.
func (s *Service) Gallery(ctx context.Context) ([]string, error) {
	urls := []string{}
	for obj, err := range s.store.List(ctx) {
		if err != nil {
			s.logger.Error().Err(err).Int("listed", len(urls)).Msg("gallery listing failed")
			return nil, &StorageError{Op: "list", Err: err}
		}
		urls = append(urls, s.store.PublicURL(obj.Key))
	}

	s.logger.Debug().Int("count", len(urls)).Msg("listed gallery")
	return urls, nil
}
