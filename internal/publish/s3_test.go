package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bakery/internal/config"
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
)

type fakeS3 struct {
	objects     map[string]string // key -> content type
	deleted     []string
	headErr     error
	putErr      error
	listErr     error
	remoteKeys  []string
	listedCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]string)}
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.objects[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.listedCalls++
	contents := make([]s3types.Object, 0, len(f.remoteKeys))
	for _, k := range f.remoteKeys {
		contents = append(contents, s3types.Object{Key: aws.String(k)})
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func siteDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "css", "site.css"), []byte("body{}"), 0o644))
	return dir
}

func TestSyncUploadsTreeWithContentTypes(t *testing.T) {
	client := newFakeS3()
	p := NewWithClient(client, &config.PublishConfig{Bucket: "site-bucket"})

	stats, err := p.Sync(context.Background(), siteDir(t))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Uploaded)
	assert.Zero(t, stats.Deleted)

	assert.Contains(t, client.objects["index.html"], "text/html")
	assert.Contains(t, client.objects["css/site.css"], "text/css")
}

func TestSyncAppliesPrefix(t *testing.T) {
	client := newFakeS3()
	p := NewWithClient(client, &config.PublishConfig{Bucket: "site-bucket", Prefix: "site/"})

	_, err := p.Sync(context.Background(), siteDir(t))
	require.NoError(t, err)
	assert.Contains(t, client.objects, "site/index.html")
	assert.Contains(t, client.objects, "site/css/site.css")
}

func TestSyncDeletesStaleKeys(t *testing.T) {
	client := newFakeS3()
	client.remoteKeys = []string{"index.html", "old/gone.html", "old/also-gone.html"}
	p := NewWithClient(client, &config.PublishConfig{Bucket: "site-bucket", DeleteStale: true})

	stats, err := p.Sync(context.Background(), siteDir(t))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Deleted)
	assert.Equal(t, []string{"old/also-gone.html", "old/gone.html"}, client.deleted)
}

func TestSyncWithoutDeleteStaleSkipsListing(t *testing.T) {
	client := newFakeS3()
	client.remoteKeys = []string{"old/gone.html"}
	p := NewWithClient(client, &config.PublishConfig{Bucket: "site-bucket"})

	_, err := p.Sync(context.Background(), siteDir(t))
	require.NoError(t, err)
	assert.Zero(t, client.listedCalls)
	assert.Empty(t, client.deleted)
}

func TestSyncMissingDirIsFilesystemError(t *testing.T) {
	p := NewWithClient(newFakeS3(), &config.PublishConfig{Bucket: "site-bucket"})
	_, err := p.Sync(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
}

func TestNewRefusesWithoutBucket(t *testing.T) {
	_, err := New(context.Background(), &config.PublishConfig{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestPreflightPassesThroughHeadBucket(t *testing.T) {
	client := newFakeS3()
	p := NewWithClient(client, &config.PublishConfig{Bucket: "site-bucket"})
	require.NoError(t, p.Preflight(context.Background()))
}
