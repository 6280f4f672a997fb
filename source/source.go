// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package source opens annotation files by URI.
//
// Three kinds of location are supported:
//
//	/path/to/file.gff3 or file:///path/to/file.gff3   local files
//	gs://bucket/object                                 Google Cloud Storage
//	s3://bucket/object                                 S3 compatible storage
//
// Objects whose name ends in .gz, .bgz, .zst or .lz4 are decompressed while
// they are read.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"google.golang.org/api/option"
)

var (
	// ErrNotFound is returned when the named file, bucket or object does not
	// exist.
	ErrNotFound = errors.New("source not found")

	// ErrPermissionDenied is returned when the storage service refuses access.
	ErrPermissionDenied = errors.New("permission denied")

	errUnsupportedScheme = errors.New("unsupported scheme")
)

// Option configures Open.
type Option func(*options)

type options struct {
	bearerToken string
	public      bool
	gcs         []option.ClientOption
	s3          S3Config
}

// S3Config holds the connection settings for s3:// URIs.  Credentials are
// read from the AWS_* environment variables when AccessKey is empty.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Insecure  bool   `yaml:"insecure"`
}

// WithBearerToken authenticates Cloud Storage requests with an OAuth2
// access token.
func WithBearerToken(token string) Option {
	return func(o *options) { o.bearerToken = token }
}

// WithPublicAccess reads Cloud Storage objects without any credentials.  Only
// publicly readable objects can be opened.
func WithPublicAccess() Option {
	return func(o *options) { o.public = true }
}

// WithGCSOptions passes extra options to the Cloud Storage client.
func WithGCSOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.gcs = append(o.gcs, opts...) }
}

// WithS3 configures access to S3 compatible storage.
func WithS3(config S3Config) Option {
	return func(o *options) { o.s3 = config }
}

// Open returns a reader for the decompressed contents of the object named by
// uri.  The caller must close the reader.
func Open(ctx context.Context, uri string, opts ...Option) (io.ReadCloser, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	scheme, bucket, name, err := Parse(uri)
	if err != nil {
		return nil, err
	}

	var rc io.ReadCloser
	switch scheme {
	case "file":
		rc, err = openFile(name)
	case "gs":
		rc, err = openGCS(ctx, bucket, name, &o)
	case "s3":
		rc, err = openS3(ctx, bucket, name, &o)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}

	r, err := decompress(name, rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}
	return r, nil
}

// Parse splits uri into its scheme, bucket and object name.  Plain paths have
// scheme "file" and no bucket.
func Parse(uri string) (scheme, bucket, name string, err error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "file", "", uri, nil
	}

	switch scheme {
	case "file":
		if rest == "" {
			return "", "", "", fmt.Errorf("%q: missing path", uri)
		}
		return scheme, "", rest, nil
	case "gs", "s3":
		bucket, name, _ = strings.Cut(rest, "/")
		if bucket == "" || name == "" {
			return "", "", "", fmt.Errorf("%q: want %s://bucket/object", uri, scheme)
		}
		return scheme, bucket, name, nil
	}
	return "", "", "", fmt.Errorf("%q: %w %q", uri, errUnsupportedScheme, scheme)
}

func openFile(name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
