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

package gff

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/googlegenomics/gffgraph/annotation"
)

const versionDirective = "##gff-version 3"

// Writer writes elements as GFF3 feature lines.  Columns that are not kept by
// the Graph (source, score and phase) are written as ".".
type Writer struct {
	w      *bufio.Writer
	header bool
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes one line for every record of e.
func (w *Writer) Write(e *annotation.Element) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	for _, record := range e.Records {
		r := record.Range.Normalize()
		_, err := fmt.Fprintf(w.w, "%s\t.\t%s\t%d\t%d\t.\t%s\t.\t%s\n",
			e.SeqID, e.Type, r.Lower, r.Upper, e.Strand, formatAttributes(record.Attributes))
		if err != nil {
			return fmt.Errorf("writing %q: %w", e.ID, err)
		}
	}
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) writeHeader() error {
	if w.header {
		return nil
	}
	w.header = true
	if _, err := fmt.Fprintln(w.w, versionDirective); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// formatAttributes writes ID and Parent first, then the remaining keys in
// sorted order.
func formatAttributes(attributes map[string]string) string {
	if len(attributes) == 0 {
		return "."
	}
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		if key != "ID" && key != "Parent" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range []string{"Parent", "ID"} {
		if _, ok := attributes[key]; ok {
			keys = append([]string{key}, keys...)
		}
	}

	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + "=" + attributes[key]
	}
	return strings.Join(pairs, ";")
}
