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

// DefaultRadius is the search radius used by callers that do not pick one.
const DefaultRadius = 10000

// NearestOption configures a call to Nearest.
type NearestOption func(*nearestOptions)

type nearestOptions struct {
	elementType string
}

// WithType restricts Nearest to elements of the given type.
func WithType(elementType string) NearestOption {
	return func(o *nearestOptions) { o.elementType = elementType }
}

// Nearest returns the elements closest to [start, end] on seqid.
//
// If any element within radius of the query overlaps it, every overlapping
// element is returned and nothing else.  Otherwise the result holds the
// element(s) at the smallest gap distance, looking no further than radius on
// either side; all elements at that distance are returned, from both sides if
// the two sides tie.  An empty result means nothing lies within radius.
func (g *Graph) Nearest(seqid string, start, end, radius int64, opts ...NearestOption) ([]string, error) {
	var o nearestOptions
	for _, opt := range opts {
		opt(&o)
	}
	if radius < 0 {
		return nil, invalidArgument("negative radius %d", radius)
	}
	query := genomics.NewClosed(start, end)
	if err := query.Validate(); err != nil {
		return nil, invalidArgument("%v", err)
	}
	tree, err := g.tree(seqid)
	if err != nil {
		return nil, err
	}
	return g.names(g.nearest(tree.Window(
		genomics.SaturatingSub(start, radius),
		genomics.SaturatingAdd(end, radius),
	), query, radius, o.elementType)), nil
}

func (g *Graph) nearest(window *interval.Cursor, query genomics.Range, radius int64, elementType string) *roaring.Bitmap {
	var (
		overlapping = roaring.New()

		// Best candidates strictly before and strictly after the query.
		left, right         = roaring.New(), roaring.New()
		leftDist, rightDist = radius, radius
	)
	closest := func() *roaring.Bitmap {
		switch {
		case leftDist < rightDist:
			return left
		case rightDist < leftDist:
			return right
		}
		return roaring.Or(left, right)
	}

	for window.Next() {
		entry := window.Entry()
		if elementType != "" && g.elements[entry.Value].Type != elementType {
			continue
		}

		candidate := entry.Range.Normalize()
		switch {
		case genomics.Overlaps(query, candidate):
			overlapping.Add(entry.Value)

		case candidate.Lower < query.Lower:
			d := genomics.Distance(query, candidate)
			if d < leftDist {
				left.Clear()
				left.Add(entry.Value)
				leftDist = d
			} else if d == leftDist {
				left.Add(entry.Value)
			}

		case candidate.Lower > query.Upper:
			// Candidates arrive by ascending start, so no overlap or closer
			// right-hand candidate can follow.
			if !overlapping.IsEmpty() {
				return overlapping
			}
			d := genomics.Distance(query, candidate)
			switch {
			case d > leftDist:
				return closest()
			case d < rightDist:
				right.Clear()
				right.Add(entry.Value)
				rightDist = d
			case d == rightDist:
				right.Add(entry.Value)
			default:
				return closest()
			}
		}
	}

	if !overlapping.IsEmpty() {
		return overlapping
	}
	return closest()
}
