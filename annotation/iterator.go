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

package annotation

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/gffgraph/genomics"
	"github.com/googlegenomics/gffgraph/internal/interval"
)

// WindowOption bounds a positional scan.  Omitted bounds are unbounded.
type WindowOption func(*window)

type window struct {
	start, end int64
}

// From sets the first position (inclusive) of a scan.
func From(start int64) WindowOption {
	return func(w *window) { w.start = start }
}

// To sets the last position (inclusive) of a scan.
func To(end int64) WindowOption {
	return func(w *window) { w.end = end }
}

// IDIterator produces element identifiers lazily.  An IDIterator is finite
// and cannot be restarted.
type IDIterator struct {
	graph       *Graph
	cursor      *interval.Cursor
	elementType string
	seen        *roaring.Bitmap
	id          string
}

// IDsOfType returns an iterator over the identifiers of elements of
// elementType with an interval on seqid inside the scan window.  Identifiers
// are produced once each, ordered by the lowest start position of their
// intervals in the window.
func (g *Graph) IDsOfType(seqid, elementType string, opts ...WindowOption) (*IDIterator, error) {
	tree, err := g.tree(seqid)
	if err != nil {
		return nil, err
	}
	w := window{genomics.MinPosition, genomics.MaxPosition}
	for _, opt := range opts {
		opt(&w)
	}
	return &IDIterator{
		graph:       g,
		cursor:      tree.Window(w.start, w.end),
		elementType: elementType,
		seen:        roaring.New(),
	}, nil
}

// Next advances the iterator and reports whether an identifier is available.
func (it *IDIterator) Next() bool {
	for it.cursor.Next() {
		h := it.cursor.Entry().Value
		if it.seen.Contains(h) {
			continue
		}
		if it.graph.elements[h].Type == it.elementType {
			it.seen.Add(h)
			it.id = it.graph.ids[h]
			return true
		}
	}
	it.id = ""
	return false
}

// ID returns the identifier most recently produced by Next.
func (it *IDIterator) ID() string {
	return it.id
}

// Collect drains the iterator, returning at most limit identifiers (or all of
// them if limit is not positive).
func (it *IDIterator) Collect(limit int) []string {
	ids := []string{}
	for (limit <= 0 || len(ids) < limit) && it.Next() {
		ids = append(ids, it.ID())
	}
	return ids
}
