// Package objectstore implements pipeline.ObjectStore against an
// S3-compatible bucket, grounded on the pack's S3Storage
// (maauso-infinitetalk-api/internal/storage/s3.go): same aws-sdk-go-v2
// config/credentials wiring and custom-endpoint/path-style support,
// generalized from "upload only" to also probe a cache-warm URL before
// a fresh download (TryDownload).
package objectstore

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"video-pipeline/internal/config"
)

// S3Store uploads pipeline artifacts (video, mp3, keyframes) to an
// S3-compatible bucket and serves as the cache probe for re-submitted URLs.
type S3Store struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
}

// New builds an S3Store from cfg.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client:   s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: cfg.Endpoint,
	}, nil
}

// Upload puts the file at path under a fresh key and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, path, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	key := fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(path))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to object store: %w", err)
	}

	return s.publicURL(key), nil
}

// TryDownload probes whether rawURL is already served by this store (i.e.
// it was produced by a prior Upload) and, if so, fetches it directly instead
// of re-downloading from the origin. Returns (false, nil) for any URL not
// hosted by this store.
func (s *S3Store) TryDownload(ctx context.Context, rawURL, destPath string) (bool, error) {
	if !s.ownsURL(rawURL) {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	f, err := os.Create(destPath)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := f.ReadFrom(resp.Body); err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3Store) ownsURL(rawURL string) bool {
	return strings.Contains(rawURL, s.bucket)
}

func (s *S3Store) publicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
