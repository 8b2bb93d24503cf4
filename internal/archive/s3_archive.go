package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c S3Config) check() error {
	var errs []error
	if strings.TrimSpace(c.Endpoint) == "" {
		errs = append(errs, errors.New("s3 endpoint is required"))
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		errs = append(errs, errors.New("s3 access key and secret key are required"))
	}
	if strings.TrimSpace(c.Bucket) == "" {
		errs = append(errs, errors.New("s3 bucket is required"))
	}
	return errors.Join(errs...)
}

// S3Archive keeps analysis runs as JSON objects under <workspace>/<key> in one bucket.
type S3Archive struct {
	client *minio.Client
	bucket string
	region string

	bucketMu    sync.Mutex
	bucketReady bool
}

func NewS3Archive(cfg S3Config) (*S3Archive, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Archive{client: client, bucket: strings.TrimSpace(cfg.Bucket), region: region}, nil
}

// ensureBucket creates the bucket on first use. Only success is remembered.
func (s *S3Archive) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	s.bucketReady = true
	return nil
}

func (s *S3Archive) Put(ctx context.Context, workspaceID, key string, content []byte) error {
	workspaceID, key, err := validate(workspaceID, key)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey(workspaceID, key), bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"workspace": workspaceID},
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", workspaceID, key, err)
	}
	return nil
}

func (s *S3Archive) Get(ctx context.Context, workspaceID, key string) ([]byte, error) {
	workspaceID, key, err := validate(workspaceID, key)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	name := objectKey(workspaceID, key)
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", workspaceID, key, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// List returns the keys of every archived analysis of a workspace, sorted.
func (s *S3Archive) List(ctx context.Context, workspaceID string) ([]string, error) {
	workspaceID, prefix, err := validate(workspaceID, analysesPrefix)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	root := objectKey(workspaceID, "")
	var keys []string
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objectKey(workspaceID, prefix),
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s: %w", workspaceID, info.Err)
		}
		if strings.HasSuffix(info.Key, ".json") {
			keys = append(keys, strings.TrimPrefix(info.Key, root))
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
