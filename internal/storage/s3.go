package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store stores objects in an S3-compatible bucket named after the container.
// Works with AWS S3, Cloudflare R2 and MinIO.
type S3Store struct {
	client        *s3.Client
	bucket        string
	region        string
	publicBaseURL string
	publicPolicy  bool
}

type S3Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UsePathStyle    bool
	// PublicPolicy applies a public-read bucket policy when the bucket is
	// provisioned. R2 does not support bucket policies; disable it there.
	PublicPolicy bool
}

func NewS3Store(ctx context.Context, container string, opts S3Options) (*S3Store, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}
	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: opts.UsePathStyle,
				}, nil
			})))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
	})

	return newS3Store(client, container, opts), nil
}

func newS3Store(client *s3.Client, container string, opts S3Options) *S3Store {
	publicBaseURL := strings.TrimSuffix(opts.PublicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = defaultS3PublicBaseURL(container, opts)
	}

	return &S3Store{
		client:        client,
		bucket:        container,
		region:        opts.Region,
		publicBaseURL: publicBaseURL,
		publicPolicy:  opts.PublicPolicy,
	}
}

// defaultS3PublicBaseURL derives the bucket's URL when no CDN base is configured.
func defaultS3PublicBaseURL(bucket string, opts S3Options) string {
	if opts.Endpoint != "" {
		endpoint := strings.TrimSuffix(opts.Endpoint, "/")
		if opts.UsePathStyle {
			return endpoint + "/" + bucket
		}
		scheme, host, found := strings.Cut(endpoint, "://")
		if !found {
			return "https://" + bucket + "." + endpoint
		}
		return scheme + "://" + bucket + "." + host
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, opts.Region)
}

// EnsureContainer creates the bucket and, if enabled, grants anonymous read on its objects.
func (s *S3Store) EnsureContainer(ctx context.Context) (Provision, error) {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	}
	if s.region != "" && s.region != "us-east-1" && s.region != "auto" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	result := ProvisionCreated
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		if !bucketExists(err) {
			return 0, fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
		}
		result = ProvisionAlreadyExists
	}

	if s.publicPolicy {
		_, err := s.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(s.bucket),
			Policy: aws.String(publicReadPolicy(s.bucket)),
		})
		if err != nil {
			return 0, fmt.Errorf("failed to set bucket policy: %w", err)
		}
	}

	return result, nil
}

func bucketExists(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var exists *types.BucketAlreadyExists
	return errors.As(err, &exists)
}

// publicReadPolicy allows anonymous GET on every object in bucket.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}

// Upload puts r under key. With a known size the body goes out in a single
// PutObject; otherwise the upload manager buffers it into parts, since
// PutObject cannot sign a stream of unknown length.
func (s *S3Store) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*UploadResult, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}

	var etag *string
	if size >= 0 {
		input.Body = r
		input.ContentLength = aws.Int64(size)
		result, err := s.client.PutObject(ctx, input)
		if err != nil {
			return nil, err
		}
		etag = result.ETag
	} else {
		body := &countingReader{r: r}
		input.Body = body
		result, err := manager.NewUploader(s.client).Upload(ctx, input)
		if err != nil {
			return nil, err
		}
		etag = result.ETag
		size = body.n
	}

	return &UploadResult{
		Key:         key,
		URL:         s.PublicURL(key),
		ETag:        aws.ToString(etag),
		Size:        size,
		ContentType: contentType,
	}, nil
}

// List pages through ListObjectsV2; S3 returns keys in ascending order.
func (s *S3Store) List(ctx context.Context) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(Object{}, err)
				return
			}
			for _, item := range page.Contents {
				obj := Object{
					Key:          aws.ToString(item.Key),
					Size:         aws.ToInt64(item.Size),
					LastModified: aws.ToTime(item.LastModified),
				}
				if !yield(obj, nil) {
					return
				}
			}
		}
	}
}

func (s *S3Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicBaseURL, key)
}

func (s *S3Store) Container() string {
	return s.bucket
}

var _ Store = (*S3Store)(nil)
