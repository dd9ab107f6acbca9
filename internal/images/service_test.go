package images

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store *fakeStore, now time.Time) *Service {
	svc := NewService(store, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestValidate(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		reason      string
	}{
		{"fly.png", "image/png", ""},
		{"fly.svg", "image/svg+xml", ""},
		{"", "image/png", ReasonNoFileSelected},
		{"", "text/plain", ReasonNoFileSelected},
		{"notes.txt", "text/plain", ReasonInvalidFileType},
		{"fly.png", "", ReasonInvalidFileType},
		{"fly.png", "application/octet-stream", ReasonInvalidFileType},
	}

	for _, test := range tests {
		err := Validate(test.filename, test.contentType)
		if test.reason == "" {
			assert.NoError(t, err, "%q %q", test.filename, test.contentType)
			continue
		}
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "%q %q", test.filename, test.contentType)
		assert.Equal(t, test.reason, validationErr.Reason)
	}
}

func TestServiceUpload(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Date(2024, time.August, 15, 13, 2, 3, 0, time.UTC))

	image, err := svc.Upload(context.Background(), &UploadInput{
		Filename:    "spotted fly (1).jpg",
		ContentType: "image/jpeg",
		Size:        4,
		Body:        strings.NewReader("jpeg"),
	})
	require.NoError(t, err)

	assert.Equal(t, "20240815T130203-spotted_fly__1_.jpg", image.Key)
	assert.Equal(t, "lanternfly-images", image.Container)
	assert.Equal(t, "https://lanternfly.blob.core.windows.net/lanternfly-images/20240815T130203-spotted_fly__1_.jpg", image.URL)
	assert.Equal(t, []byte("jpeg"), store.objects[image.Key])
	assert.Equal(t, "image/jpeg", store.types[image.Key])
}

func TestServiceUploadValidationSkipsStore(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Now())

	_, err := svc.Upload(context.Background(), &UploadInput{
		Filename:    "notes.txt",
		ContentType: "text/plain",
		Body:        strings.NewReader("hello"),
	})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, ReasonInvalidFileType, validationErr.Reason)
	assert.Empty(t, store.objects)
}

func TestServiceUploadStorageError(t *testing.T) {
	store := newFakeStore()
	cause := errors.New("This request is not authorized to perform this operation.")
	store.uploadErr = cause
	svc := newTestService(store, time.Now())

	_, err := svc.Upload(context.Background(), &UploadInput{
		Filename:    "fly.png",
		ContentType: "image/png",
		Body:        strings.NewReader("png"),
	})

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "upload", storageErr.Op)
	assert.Equal(t, cause.Error(), err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestServiceUploadSameSecondOverwrites(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := svc.Upload(ctx, &UploadInput{Filename: "my fly.png", ContentType: "image/png", Body: strings.NewReader("one")})
	require.NoError(t, err)
	second, err := svc.Upload(ctx, &UploadInput{Filename: "my_fly.png", ContentType: "image/png", Body: strings.NewReader("two")})
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, []byte("two"), store.objects[first.Key])

	urls, err := svc.Gallery(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second.URL}, urls)
}

func TestServiceGalleryEmpty(t *testing.T) {
	svc := newTestService(newFakeStore(), time.Now())

	urls, err := svc.Gallery(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, urls)
	assert.Empty(t, urls)
}

func TestServiceGalleryOrder(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	base := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	var expected []string
	for i, name := range []string{"c.png", "a.png", "b.png"} {
		svc := newTestService(store, base.Add(time.Duration(i)*time.Second))
		image, err := svc.Upload(ctx, &UploadInput{Filename: name, ContentType: "image/png", Body: strings.NewReader(name)})
		require.NoError(t, err)
		expected = append(expected, image.URL)
	}

	urls, err := newTestService(store, base).Gallery(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, urls)
}

func TestServiceGalleryStorageError(t *testing.T) {
	store := newFakeStore()
	store.objects["20240101T000000-a.png"] = []byte("a")
	store.objects["20240101T000001-b.png"] = []byte("b")
	store.listErr = errors.New("page 2 failed")
	store.failAfter = 1

	urls, err := newTestService(store, time.Now()).Gallery(context.Background())

	assert.Nil(t, urls)
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "list", storageErr.Op)
	assert.Equal(t, "page 2 failed", err.Error())
}
