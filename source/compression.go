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

package source

import (
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies a stream compression format.
type Compression int

const (
	None Compression = iota
	// Gzip also covers BGZF, which is a series of gzip members.
	Gzip
	Zstd
	LZ4
)

// CompressionOf returns the compression implied by the extension of name.
func CompressionOf(name string) Compression {
	switch path.Ext(name) {
	case ".gz", ".bgz":
		return Gzip
	case ".zst":
		return Zstd
	case ".lz4":
		return LZ4
	}
	return None
}

// decompress wraps rc in a decompressor chosen by the extension of name.
// Closing the result closes rc.
func decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch CompressionOf(name) {
	case Gzip:
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("reading gzip header: %w", err)
		}
		return &stacked{gz, []io.Closer{gz, rc}}, nil
	case Zstd:
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		dec := zr.IOReadCloser()
		return &stacked{dec, []io.Closer{dec, rc}}, nil
	case LZ4:
		return &stacked{lz4.NewReader(rc), []io.Closer{rc}}, nil
	}
	return rc, nil
}

type stacked struct {
	io.Reader
	closers []io.Closer
}

func (s *stacked) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
