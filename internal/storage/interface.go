package storage

import (
	"context"
	"io"
	"iter"
	"time"
)

// ContainerName is the container (bucket) every image is stored in.
const ContainerName = "lanternfly-images"

// Provision describes the outcome of EnsureContainer.
type Provision int

const (
	ProvisionCreated Provision = iota
	ProvisionAlreadyExists
)

func (p Provision) String() string {
	switch p {
	case ProvisionCreated:
		return "created"
	case ProvisionAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Object is a single listing entry.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type UploadResult struct {
	Key         string
	URL         string
	ETag        string
	Size        int64
	ContentType string
}

// Store is implemented by every object store backend. Implementations must be
// safe for concurrent use.
type Store interface {
	// EnsureContainer creates the container with public read access to its
	// objects. An existing container is reported as ProvisionAlreadyExists.
	EnsureContainer(ctx context.Context) (Provision, error)

	// Upload writes r under key, replacing any existing object. size may be -1
	// when unknown.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*UploadResult, error)

	// List walks every object in the container in store order. Pages are
	// fetched lazily as the sequence is consumed; a non-nil error ends it.
	List(ctx context.Context) iter.Seq2[Object, error]

	// PublicURL returns the browser-accessible URL for key.
	PublicURL(key string) string

	// Container returns the container name.
	Container() string
}
