//go:build integration

package s3_test

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/content"
	s3store "github.com/marmos91/catalogfs/pkg/content/s3"
	"github.com/marmos91/catalogfs/pkg/gc"
	"github.com/marmos91/catalogfs/pkg/metadata"
	metadatamemory "github.com/marmos91/catalogfs/pkg/metadata/memory"
)

// setupTestS3 connects to Localstack (or another S3-compatible endpoint
// named by LOCALSTACK_ENDPOINT) and creates bucketName. The bucket and its
// objects are removed when the test ends.
func setupTestS3(t *testing.T, bucketName string) *s3.Client {
	t.Helper()
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		t.Fatalf("Failed to create test bucket: %v", err)
	}

	t.Cleanup(func() {
		paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{Bucket: aws.String(bucketName)})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				break
			}
			for _, obj := range page.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucketName), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)})
	})

	return client
}

// TestS3ContentStore_GarbageCollection checks that the collector removes
// only unreferenced objects from a real bucket.
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./test/integration/s3/...
func TestS3ContentStore_GarbageCollection(t *testing.T) {
	ctx := context.Background()
	bucketName := "catalogfs-gc-test"
	client := setupTestS3(t, bucketName)

	store, err := s3store.NewS3ContentStore(ctx, s3store.S3ContentStoreConfig{
		Client:            client,
		Bucket:            bucketName,
		KeyPrefix:         "catalogfs/",
		RequestsPerSecond: 50,
	})
	if err != nil {
		t.Fatalf("Failed to create S3 content store: %v", err)
	}

	meta := metadatamemory.NewMemoryMetadataStore()
	if err := meta.Create(ctx, &metadata.Entity{Path: "/", Kind: catalog.KindCollection, Mode: 0755}); err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	if err := meta.Create(ctx, &metadata.Entity{Path: "/kept", Kind: catalog.KindDataObject, Mode: 0644, ContentID: "kept"}); err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}

	for _, id := range []content.ContentID{"kept", "orphan"} {
		if err := store.WriteAt(ctx, id, []byte("payload"), 0); err != nil {
			t.Fatalf("Failed to write %s: %v", id, err)
		}
	}

	collector, err := gc.NewCollector(meta, store, gc.Config{})
	if err != nil {
		t.Fatalf("Failed to create collector: %v", err)
	}

	stats, err := collector.RunNow(ctx)
	if err != nil {
		t.Fatalf("Garbage collection failed: %v", err)
	}
	if stats.DeletedCount != 1 {
		t.Errorf("Expected 1 deleted object, got %s", stats.Summary())
	}

	if exists, _ := store.ContentExists(ctx, "orphan"); exists {
		t.Error("Orphaned object should have been deleted")
	}
	if exists, _ := store.ContentExists(ctx, "kept"); !exists {
		t.Error("Referenced object should still exist")
	}
}
