// Package s3 archives pipeline artifacts to an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// api is the slice of the S3 client the uploader needs.
type api interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Uploader copies local artifact files into a bucket under a fixed prefix.
type Uploader struct {
	client api
	bucket string
	prefix string
	logger *slog.Logger
}

// NewUploader creates an Uploader using the ambient AWS credential chain.
func NewUploader(ctx context.Context, bucket, prefix, region string, logger *slog.Logger) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Uploader{
		client: awss3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Key maps a local artifact path to its object key: the file's base name
// under the uploader's prefix.
func (u *Uploader) Key(localPath string) string {
	key := filepath.Base(localPath)
	if p := strings.Trim(u.prefix, "/"); p != "" {
		key = p + "/" + key
	}
	return key
}

// Upload copies each local file to the bucket and returns the s3:// URIs of
// the written objects. Files are uploaded in order; the first failure aborts.
func (u *Uploader) Upload(ctx context.Context, paths []string) ([]string, error) {
	uris := make([]string, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return uris, fmt.Errorf("open artifact %s: %w", p, err)
		}

		key := u.Key(p)
		_, err = u.client.PutObject(ctx, &awss3.PutObjectInput{
			Bucket: &u.bucket,
			Key:    &key,
			Body:   f,
		})
		f.Close()
		if err != nil {
			return uris, fmt.Errorf("upload %s to s3://%s/%s: %w", p, u.bucket, key, err)
		}

		uri := fmt.Sprintf("s3://%s/%s", u.bucket, key)
		u.logger.Info("artifact uploaded", "path", p, "uri", uri)
		uris = append(uris, uri)
	}
	return uris, nil
}
