package mirror

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Mirror uploads bundles to an S3 bucket using the multipart upload
// manager. Credentials come from the standard AWS credential chain.
type S3Mirror struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

var _ Mirror = (*S3Mirror)(nil)

// NewS3Mirror creates a mirror targeting bucket. Keys are placed under
// prefix when it is non-empty.
func NewS3Mirror(ctx context.Context, bucket, prefix, region string) (*S3Mirror, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Mirror{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// Upload streams r into s3://bucket/prefix/name.
func (m *S3Mirror) Upload(ctx context.Context, name string, r io.Reader) error {
	key := name
	if m.prefix != "" {
		key = path.Join(m.prefix, name)
	}

	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s: %w", key, m.bucket, err)
	}
	return nil
}

func (m *S3Mirror) Name() string {
	return "s3://" + m.bucket + "/" + m.prefix
}
