package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/storage"
)

var _ storage.ObjectStore = (*Store)(nil)

// Store implements storage.ObjectStore on an S3-compatible bucket (AWS S3 or MinIO).
type Store struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL *url.URL // explicit endpoint, used for path-style public URLs
}

// Config holds construction parameters. Credentials come from the default AWS chain.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// New creates an S3 store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("[s3store New] bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("[s3store New] load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg)
}

// NewWithClient wraps an existing client; the Config supplies bucket and URL settings.
func NewWithClient(client *s3.Client, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("[s3store NewWithClient] bucket is required")
	}
	s := &Store{client: client, bucket: cfg.Bucket, region: cfg.Region}
	if s.region == "" {
		s.region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("[s3store NewWithClient] invalid endpoint: %w", err)
		}
		s.baseURL = u
	}
	return s, nil
}

// Upload buffers the body so the SDK always gets a seekable stream for signing.
func (s *Store) Upload(ctx context.Context, objectPath string, r io.Reader, opts storage.UploadOptions) (storage.UploadResult, error) {
	key := storage.CleanPath(objectPath)
	body, err := io.ReadAll(r)
	if err != nil {
		return storage.UploadResult{}, dasherrors.Wrapf(dasherrors.ErrStorage, "upload %s: read body: %v", key, err)
	}

	if !opts.Upsert {
		// Create-only: refuse to overwrite an existing object
		if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err == nil {
			return storage.UploadResult{}, dasherrors.Wrapf(dasherrors.ErrStorage, "upload %s: object already exists", key)
		}
	}

	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return storage.UploadResult{}, dasherrors.Wrapf(dasherrors.ErrStorage, "upload %s: %v", key, err)
	}
	return storage.UploadResult{Path: key, Size: int64(len(body))}, nil
}

// PublicURL builds the unsigned object URL; the bucket must allow public reads.
func (s *Store) PublicURL(objectPath string) string {
	key := storage.CleanPath(objectPath)
	if s.baseURL != nil {
		return storage.JoinURL(s.baseURL.String(), s.bucket+"/"+key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// Remove deletes each object. Missing objects are not an error on S3.
func (s *Store) Remove(ctx context.Context, objectPaths ...string) error {
	var errs []error
	for _, p := range objectPaths {
		key := storage.CleanPath(p)
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				continue
			}
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return dasherrors.Wrapf(dasherrors.ErrStorage, "%v", errors.Join(errs...))
	}
	return nil
}
