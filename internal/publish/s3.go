// Package publish syncs the built site to an S3 bucket. The bucket is an
// opaque storage target: upload what exists locally, delete what no longer
// does, and leave cache semantics to the post-publish command.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"git.home.luguber.info/inful/bakery/internal/config"
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
	"git.home.luguber.info/inful/bakery/internal/logfields"
)

// S3API is the subset of the S3 client the publisher needs. Narrowed for
// test doubles.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Stats summarizes one sync.
type Stats struct {
	Uploaded int
	Deleted  int
}

// Publisher uploads a local directory tree to an S3 bucket.
type Publisher struct {
	client      S3API
	bucket      string
	prefix      string
	deleteStale bool
}

// New creates a Publisher from the publish configuration using the SDK's
// default credential chain (standard AWS_* environment variables).
func New(ctx context.Context, cfg *config.PublishConfig) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ferrors.ConfigError("S3 bucket not configured").
			WithContext("hint", "set BAKERY_AWS_BUCKET_NAME or AWS_BUCKET_NAME").
			Build()
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryPublish, "failed to load AWS config").Build()
	}

	return &Publisher{
		client:      s3.NewFromConfig(awsCfg),
		bucket:      cfg.Bucket,
		prefix:      strings.TrimPrefix(cfg.Prefix, "/"),
		deleteStale: cfg.DeleteStale,
	}, nil
}

// NewWithClient creates a Publisher with an injected client. Intended for tests.
func NewWithClient(client S3API, cfg *config.PublishConfig) *Publisher {
	return &Publisher{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      strings.TrimPrefix(cfg.Prefix, "/"),
		deleteStale: cfg.DeleteStale,
	}
}

// Preflight verifies the bucket exists and is reachable with the current
// credentials, so a doomed sync fails before any uploads happen.
func (p *Publisher) Preflight(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return ferrors.ConfigError("S3 bucket does not exist").
				WithContext("bucket", p.bucket).
				Build()
		case "Forbidden", "AccessDenied":
			return ferrors.AuthError("access denied to S3 bucket").
				WithContext("bucket", p.bucket).
				Build()
		}
	}
	return ferrors.WrapError(err, ferrors.CategoryPublish, "bucket preflight failed").
		WithContext("bucket", p.bucket).
		Build()
}

// Sync uploads every regular file under dir and, when delete_stale is set,
// removes remote keys with no local counterpart. Steps run strictly
// sequentially; a failed upload aborts the sync.
func (p *Publisher) Sync(ctx context.Context, dir string) (Stats, error) {
	var stats Stats

	local, err := p.uploadTree(ctx, dir, &stats)
	if err != nil {
		return stats, err
	}

	if p.deleteStale {
		if err := p.deleteStaleKeys(ctx, local, &stats); err != nil {
			return stats, err
		}
	}

	slog.Info("Publish completed", logfields.Bucket(p.bucket),
		"uploaded", stats.Uploaded, "deleted", stats.Deleted)
	return stats, nil
}

func (p *Publisher) uploadTree(ctx context.Context, dir string, stats *Stats) (map[string]bool, error) {
	local := make(map[string]bool)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, ferrors.FileSystemError("build directory not found").
			WithContext("dir", dir).
			Build()
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := p.keyFor(rel)
		local[key] = true

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentTypeFor(rel)),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		stats.Uploaded++
		slog.Debug("Uploaded object", logfields.Bucket(p.bucket), "key", key)
		return nil
	})
	if err != nil {
		if ferrors.IsClassified(err) {
			return nil, err
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryPublish, "bucket sync failed").
			WithContext("bucket", p.bucket).
			Build()
	}
	return local, nil
}

func (p *Publisher) deleteStaleKeys(ctx context.Context, local map[string]bool, stats *Stats) error {
	var stale []string
	var token *string
	for {
		out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(p.bucket),
			Prefix:            aws.String(p.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryPublish, "failed to list bucket objects").
				WithContext("bucket", p.bucket).
				Build()
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !local[key] {
				stale = append(stale, key)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	// Deterministic deletion order keeps logs and tests stable.
	sort.Strings(stale)
	for _, key := range stale {
		_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryPublish, "failed to delete stale object").
				WithContext("bucket", p.bucket).
				WithContext("key", key).
				Build()
		}
		stats.Deleted++
		slog.Debug("Deleted stale object", logfields.Bucket(p.bucket), "key", key)
	}
	return nil
}

func (p *Publisher) keyFor(rel string) string {
	key := filepath.ToSlash(rel)
	if p.prefix != "" {
		key = strings.TrimSuffix(p.prefix, "/") + "/" + key
	}
	return key
}

func contentTypeFor(rel string) string {
	if ct := mime.TypeByExtension(filepath.Ext(rel)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
