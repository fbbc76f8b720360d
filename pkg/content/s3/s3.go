package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/internal/ratelimiter"
	"github.com/marmos91/catalogfs/pkg/content"
)

// API is the subset of *s3.Client the store uses.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ContentStore implements content.Store on an S3-compatible bucket.
//
// Every ContentID is one object. S3 has no partial writes, so WriteAt and
// Truncate are read-modify-write: the whole object is downloaded, patched and
// uploaded again. The catalog engine writes objects sequentially through one
// descriptor, which keeps that cost bounded to one round trip per write.
//
// Thread Safety:
// Read-modify-write cycles on the same ContentID are serialized with a
// per-ID mutex. Other processes writing the same bucket are not coordinated.
type S3ContentStore struct {
	client    API
	bucket    string
	keyPrefix string
	limiter   *ratelimiter.RateLimiter

	locksMu sync.Mutex
	locks   map[content.ContentID]*sync.Mutex
}

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client (usually *s3.Client)
	Client API

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is prepended to all object keys (e.g. "catalogfs/")
	KeyPrefix string

	// RequestsPerSecond caps the request rate; 0 means unlimited.
	// Burst defaults to RequestsPerSecond.
	RequestsPerSecond uint
	Burst             uint
}

// NewS3ContentStore verifies the bucket is reachable and returns a store
// writing into it.
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w: %v", cfg.Bucket, content.ErrUnavailable, err)
	}

	logger.Debug("s3 content store ready: bucket=%s prefix=%s", cfg.Bucket, cfg.KeyPrefix)
	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		limiter:   ratelimiter.New(cfg.RequestsPerSecond, cfg.Burst),
		locks:     make(map[content.ContentID]*sync.Mutex),
	}, nil
}

func (s *S3ContentStore) getObjectKey(id content.ContentID) string {
	return s.keyPrefix + string(id)
}

func (s *S3ContentStore) lock(id content.ContentID) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// isNotFound matches both error shapes S3 uses for a missing key: GetObject
// returns NoSuchKey, HeadObject returns a bare NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func (s *S3ContentStore) ReadContent(ctx context.Context, id content.ContentID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return result.Body, nil
}

func (s *S3ContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", id)
	}

	return uint64(*result.ContentLength), nil
}

func (s *S3ContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	if _, err := s.GetContentSize(ctx, id); err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// WriteAt patches data into the object at offset. An offset-zero write to a
// missing object is a plain upload.
func (s *S3ContentStore) WriteAt(ctx context.Context, id content.ContentID, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.Validate(id, offset); err != nil {
		return err
	}

	unlock := s.lock(id)
	defer unlock()

	existing, err := s.download(ctx, id)
	if err != nil {
		return err
	}

	end := offset + int64(len(data))
	if end > int64(len(existing)) {
		grown := make([]byte, end)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:], data)

	return s.upload(ctx, id, existing)
}

func (s *S3ContentStore) Truncate(ctx context.Context, id content.ContentID, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.Validate(id, 0); err != nil {
		return err
	}

	unlock := s.lock(id)
	defer unlock()

	existing, err := s.download(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil && uint64(len(existing)) == size {
		return nil
	}

	resized := make([]byte, size)
	copy(resized, existing)
	return s.upload(ctx, id, resized)
}

// Delete removes the object. S3 reports success for missing keys.
func (s *S3ContentStore) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// download returns the object's bytes, or nil if it doesn't exist yet.
func (s *S3ContentStore) download(ctx context.Context, id content.ContentID) ([]byte, error) {
	reader, err := s.ReadContent(ctx, id)
	if errors.Is(err, content.ErrContentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing content: %w", err)
	}
	return data, nil
}

func (s *S3ContentStore) upload(ctx context.Context, id content.ContentID, data []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.getObjectKey(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to write object to S3: %w", err)
	}
	return nil
}

// ListContent pages through every key under the store's prefix.
func (s *S3ContentStore) ListContent(ctx context.Context) ([]content.ContentID, error) {
	var ids []content.ContentID

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})
	for paginator.HasMorePages() {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in S3: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix)
			if key != "" {
				ids = append(ids, content.ContentID(key))
			}
		}
	}
	return ids, nil
}
