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

// Package gff reads and writes annotations in the GFF3 format.
//
// Each feature line holds nine tab separated columns:
//
//	seqid source type start end score strand phase attributes
//
// Only seqid, type, start, end, strand and attributes are retained.
package gff

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/googlegenomics/gffgraph/annotation"
	"github.com/googlegenomics/gffgraph/genomics"
	"go.uber.org/zap"
)

const (
	columns = 9

	// GFF3 allows sequence data to follow the feature lines.
	fastaDirective = "##FASTA"

	maxLineLength = 16 << 20
)

// ErrMalformed is wrapped by every error describing invalid GFF3 input.
var ErrMalformed = errors.New("malformed GFF3")

// FormatError reports a line that could not be parsed.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrMalformed
}

// Option configures Read.
type Option func(*options)

type options struct {
	logger *zap.Logger
	types  map[string]bool
}

// WithLogger sets the logger used to report progress.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTypes restricts ingestion to features of the listed types.  Lines of
// other types are still checked for syntax.
func WithTypes(types ...string) Option {
	return func(o *options) {
		if o.types == nil {
			o.types = make(map[string]bool)
		}
		for _, t := range types {
			o.types[t] = true
		}
	}
}

// Read parses GFF3 feature lines from r and adds one annotation per line to
// g.  Read stops at the first malformed line; the graph then holds every
// annotation read before it and should be discarded.
//
// A ninth column of "." means no attributes, and empty pairs between
// separators ("a=1;;b=2" or a trailing ";") are ignored.  Any other pair
// without "=" is malformed.
func Read(r io.Reader, g *annotation.Graph, opts ...Option) error {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var lines, records int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineLength)
	for scanner.Scan() {
		lines++
		line := strings.TrimRight(scanner.Text(), " \r")
		if strings.HasPrefix(line, fastaDirective) {
			break
		}
		if len(line) < 2 || strings.HasPrefix(line, "#") {
			continue
		}

		a, err := parseLine(line)
		if err != nil {
			return &FormatError{Line: lines, Reason: err.Error()}
		}
		if o.types != nil && !o.types[a.Type] {
			continue
		}
		if err := g.AddAnnotation(a); err != nil {
			return fmt.Errorf("line %d: %w", lines, err)
		}
		records++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading line %d: %w", lines+1, err)
	}

	o.logger.Debug("Read GFF3 input",
		zap.Int("lines", lines),
		zap.Int("records", records),
		zap.Int("elements", g.Len()))
	return nil
}

func parseLine(line string) (annotation.Annotation, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != columns {
		return annotation.Annotation{}, fmt.Errorf("got %d columns, want %d", len(fields), columns)
	}
	seqid, featureType := fields[0], fields[2]
	if seqid == "" {
		return annotation.Annotation{}, errors.New("empty seqid")
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return annotation.Annotation{}, fmt.Errorf("invalid start %q", fields[3])
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return annotation.Annotation{}, fmt.Errorf("invalid end %q", fields[4])
	}
	if start > end {
		return annotation.Annotation{}, fmt.Errorf("start %d is after end %d", start, end)
	}

	strand, err := genomics.ParseStrand(fields[6])
	if err != nil {
		return annotation.Annotation{}, err
	}

	attributes, err := parseAttributes(fields[8])
	if err != nil {
		return annotation.Annotation{}, err
	}

	a := annotation.Annotation{
		ID:         attributes["ID"],
		SeqID:      seqid,
		Type:       featureType,
		Range:      genomics.NewClosed(start, end),
		Strand:     strand,
		Attributes: attributes,
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("%s:%s_%s_%s:%s", featureType, seqid, fields[3], fields[4], fields[6])
	}
	if parents, ok := attributes["Parent"]; ok {
		a.Parents = strings.Split(parents, ",")
		for _, parent := range a.Parents {
			if parent == "" {
				return annotation.Annotation{}, fmt.Errorf("empty parent ID in %q", parents)
			}
		}
	}
	return a, nil
}

// parseAttributes parses the ninth column.  Values are kept verbatim.
func parseAttributes(column string) (map[string]string, error) {
	attributes := make(map[string]string)
	if column == "." {
		return attributes, nil
	}
	for _, pair := range strings.Split(column, ";") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q has no value", pair)
		}
		attributes[key] = value
	}
	return attributes, nil
}
