package images

import (
	"context"
	"io"
	"iter"
	"sort"
	"sync"

	"github.com/lanternfly/imagehost/internal/storage"
)

// fakeStore is an in-memory storage.Store with injectable failures.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	uploadErr error
	listErr   error
	// failAfter makes List yield this many objects before listErr.
	failAfter int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

func (f *fakeStore) EnsureContainer(ctx context.Context) (storage.Provision, error) {
	return storage.ProvisionAlreadyExists, nil
}

func (f *fakeStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*storage.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType

	return &storage.UploadResult{
		Key:         key,
		URL:         f.PublicURL(key),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

func (f *fakeStore) List(ctx context.Context) iter.Seq2[storage.Object, error] {
	return func(yield func(storage.Object, error) bool) {
		f.mu.Lock()
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			keys = append(keys, k)
		}
		f.mu.Unlock()
		sort.Strings(keys)

		for i, k := range keys {
			if f.listErr != nil && i == f.failAfter {
				yield(storage.Object{}, f.listErr)
				return
			}
			if !yield(storage.Object{Key: k}, nil) {
				return
			}
		}
		if f.listErr != nil && len(keys) <= f.failAfter {
			yield(storage.Object{}, f.listErr)
		}
	}
}

func (f *fakeStore) PublicURL(key string) string {
	return "https://lanternfly.blob.core.windows.net/" + storage.ContainerName + "/" + key
}

func (f *fakeStore) Container() string {
	return storage.ContainerName
}

var _ storage.Store = (*fakeStore)(nil)
