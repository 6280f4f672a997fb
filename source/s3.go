package source

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultS3Endpoint = "s3.amazonaws.com"

func newS3Client(config S3Config) (*minio.Client, error) {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaultS3Endpoint
	}
	creds := credentials.NewEnvAWS()
	if config.AccessKey != "" {
		creds = credentials.NewStaticV4(config.AccessKey, config.SecretKey, "")
	}
	return minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: !config.Insecure,
		Region: config.Region,
	})
}

func openS3(ctx context.Context, bucket, key string, o *options) (io.ReadCloser, error) {
	client, err := newS3Client(o.s3)
	if err != nil {
		return nil, fmt.Errorf("creating S3 client: %w", err)
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, newS3Error(err)
	}
	// GetObject is lazy; Stat surfaces missing objects before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, newS3Error(err)
	}
	return obj, nil
}

func newS3Error(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case "AccessDenied":
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
