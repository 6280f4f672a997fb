package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	defaultStorageClient *storage.Client
	defaultStorageErr    error
	initializeDefault    sync.Once
)

// storageClient returns a client for the credentials in o.  Clients using the
// application default credentials are cached; the returned function releases
// any client created for this call only.
func storageClient(ctx context.Context, o *options) (*storage.Client, func(), error) {
	switch {
	case o.bearerToken != "":
		token := oauth2.Token{
			TokenType:   "Bearer",
			AccessToken: o.bearerToken,
		}
		opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(&token))}, o.gcs...)
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating client with token source: %w", err)
		}
		return client, func() { client.Close() }, nil

	case o.public || len(o.gcs) > 0:
		var opts []option.ClientOption
		if o.public {
			opts = append(opts, option.WithHTTPClient(http.DefaultClient))
		}
		client, err := storage.NewClient(ctx, append(opts, o.gcs...)...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating storage client: %w", err)
		}
		return client, func() { client.Close() }, nil
	}

	initializeDefault.Do(func() {
		defaultStorageClient, defaultStorageErr = storage.NewClient(context.Background())
	})
	if defaultStorageErr != nil {
		return nil, nil, fmt.Errorf("creating default storage client: %w", defaultStorageErr)
	}
	return defaultStorageClient, func() {}, nil
}

func openGCS(ctx context.Context, bucket, object string, o *options) (io.ReadCloser, error) {
	client, release, err := storageClient(ctx, o)
	if err != nil {
		return nil, err
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		release()
		return nil, newStorageError(err)
	}
	return &releasingReader{r, release}, nil
}

type releasingReader struct {
	io.ReadCloser
	release func()
}

func (r *releasingReader) Close() error {
	defer r.release()
	return r.ReadCloser.Close()
}

func newStorageError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return err
}
