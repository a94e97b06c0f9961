package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jatlaoui/ines/internal/domain"
)

// MinIOConfig configures the blob-backed artifact store.
type MinIOConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	UseSSL   bool   `yaml:"use_ssl"`

	// AccessKey and SecretKey come from the environment, never from the
	// config file.
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// MinIOArtifactStore keeps artifact bodies in a MinIO (S3-compatible) bucket.
// The bucket is created on first use if it does not exist.
type MinIOArtifactStore struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

// NewMinIOArtifactStore creates an artifact store on the configured bucket.
func NewMinIOArtifactStore(cfg MinIOConfig) (*MinIOArtifactStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("minio access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("minio bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &MinIOArtifactStore{client: client, bucket: bucket, region: region}, nil
}

func (s *MinIOArtifactStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put uploads the content and returns its reference.
func (s *MinIOArtifactStore) Put(ctx context.Context, content string, kind domain.ArtifactKind, key string) (domain.ArtifactRef, error) {
	ref := domain.ArtifactRef{Key: key, Size: int64(len(content)), Kind: kind}
	if err := ref.Validate(); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("invalid artifact ref: %w", err)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("ensure bucket: %w", err)
	}

	data := []byte(content)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("put artifact %q: %w", key, err)
	}
	return ref, nil
}

// Get downloads the content behind the reference.
func (s *MinIOArtifactStore) Get(ctx context.Context, ref domain.ArtifactRef) (string, error) {
	if ref.Key == "" {
		return "", errors.New("artifact key must not be empty")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get artifact %q: %w", ref.Key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return "", domain.NewNotFoundError("artifact", ref.Key)
		}
		return "", fmt.Errorf("read artifact %q: %w", ref.Key, err)
	}
	return string(data), nil
}

// Exists reports whether the reference's key is stored.
func (s *MinIOArtifactStore) Exists(ctx context.Context, ref domain.ArtifactRef) (bool, error) {
	if ref.Key == "" {
		return false, errors.New("artifact key must not be empty")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return false, fmt.Errorf("ensure bucket: %w", err)
	}

	_, err := s.client.StatObject(ctx, s.bucket, ref.Key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat artifact %q: %w", ref.Key, err)
	}
	return true, nil
}
