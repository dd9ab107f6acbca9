package storage

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureStore stores objects as block blobs in an Azure Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	container string
	baseURL   string
}

// NewAzureStore builds a client from a storage account connection string. No
// request is made until the store is used.
func NewAzureStore(connectionString, containerName string) (*AzureStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &AzureStore{
		client:    client,
		container: containerName,
		baseURL:   strings.TrimSuffix(client.URL(), "/"),
	}, nil
}

// EnsureContainer creates the container with blob-level public read access.
func (a *AzureStore) EnsureContainer(ctx context.Context) (Provision, error) {
	_, err := a.client.CreateContainer(ctx, a.container, &azblob.CreateContainerOptions{
		Access: to.Ptr(container.PublicAccessTypeBlob),
	})
	return classifyContainerCreate(err)
}

func classifyContainerCreate(err error) (Provision, error) {
	if err == nil {
		return ProvisionCreated, nil
	}
	if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return ProvisionAlreadyExists, nil
	}
	return 0, fmt.Errorf("failed to create container: %w", err)
}

// Upload streams r to a block blob, overwriting any existing blob at key.
func (a *AzureStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*UploadResult, error) {
	body := &countingReader{r: r}
	resp, err := a.client.UploadStream(ctx, a.container, key, body, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentType),
		},
	})
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		Key:         key,
		URL:         a.PublicURL(key),
		Size:        body.n,
		ContentType: contentType,
	}
	if resp.ETag != nil {
		result.ETag = string(*resp.ETag)
	}
	return result, nil
}

// List walks the flat blob listing one page at a time. Azure returns blobs in
// lexicographic order.
func (a *AzureStore) List(ctx context.Context) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		pager := a.client.NewListBlobsFlatPager(a.container, nil)

		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield(Object{}, err)
				return
			}
			if page.Segment == nil {
				continue
			}
			for _, item := range page.Segment.BlobItems {
				if item == nil || item.Name == nil {
					continue
				}
				obj := Object{Key: *item.Name}
				if props := item.Properties; props != nil {
					if props.ContentLength != nil {
						obj.Size = *props.ContentLength
					}
					if props.LastModified != nil {
						obj.LastModified = *props.LastModified
					}
				}
				if !yield(obj, nil) {
					return
				}
			}
		}
	}
}

// PublicURL composes the account blob endpoint, container and key.
func (a *AzureStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", a.baseURL, a.container, key)
}

func (a *AzureStore) Container() string {
	return a.container
}

var _ Store = (*AzureStore)(nil)
