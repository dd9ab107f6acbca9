package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects on the local filesystem, one directory per
// container. It is meant for development; the HTTP server serves baseDir
// under the public base URL.
type LocalStore struct {
	baseDir       string
	container     string
	publicBaseURL string
}

func NewLocalStore(baseDir, container, publicBaseURL string) *LocalStore {
	return &LocalStore{
		baseDir:       baseDir,
		container:     container,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

func (l *LocalStore) dir() string {
	return filepath.Join(l.baseDir, l.container)
}

// EnsureContainer creates the container directory.
func (l *LocalStore) EnsureContainer(ctx context.Context) (Provision, error) {
	info, err := os.Stat(l.dir())
	if err == nil {
		if !info.IsDir() {
			return 0, fmt.Errorf("container path %s is not a directory", l.dir())
		}
		return ProvisionAlreadyExists, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("failed to stat container: %w", err)
	}

	if err := os.MkdirAll(l.dir(), 0755); err != nil {
		return 0, fmt.Errorf("failed to create container: %w", err)
	}
	return ProvisionCreated, nil
}

// Upload writes to a temp file in the container and renames it over key, so
// readers never observe a partial object.
func (l *LocalStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*UploadResult, error) {
	if err := validLocalKey(key); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(l.dir(), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(l.dir(), key)); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	return &UploadResult{
		Key:         key,
		URL:         l.PublicURL(key),
		Size:        written,
		ContentType: contentType,
	}, nil
}

// List yields regular files in the container sorted by name. Temp files from
// in-flight uploads are skipped.
func (l *LocalStore) List(ctx context.Context) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		entries, err := os.ReadDir(l.dir())
		if err != nil {
			yield(Object{}, fmt.Errorf("failed to list container: %w", err))
			return
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				yield(Object{}, err)
				return
			}
			if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				// Replaced or removed since ReadDir.
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				yield(Object{}, err)
				return
			}
			obj := Object{
				Key:          entry.Name(),
				Size:         info.Size(),
				LastModified: info.ModTime(),
			}
			if !yield(obj, nil) {
				return
			}
		}
	}
}

func (l *LocalStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", l.publicBaseURL, l.container, key)
}

func (l *LocalStore) Container() string {
	return l.container
}

// Root is the directory holding all containers.
func (l *LocalStore) Root() string {
	return l.baseDir
}

func validLocalKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// countingReader records how many bytes were read, for uploads whose size is
// only known once the stream ends.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ Store = (*LocalStore)(nil)
