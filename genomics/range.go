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

// Package genomics contains definitions related to genomic coordinates.
package genomics

import (
	"errors"
	"fmt"
	"math"
)

// MinPosition and MaxPosition are used in place of an omitted bound.
const (
	MinPosition = math.MinInt64
	MaxPosition = math.MaxInt64
)

// ErrEmptyRange is returned when a range contains no integer positions.
var ErrEmptyRange = errors.New("empty range")

// BoundType specifies whether a range endpoint is included in the range.
type BoundType uint8

const (
	// Closed bounds include their endpoint.
	Closed BoundType = iota
	// Open bounds exclude their endpoint.
	Open
)

// Range defines an integer range.  The zero value is the closed range [0, 0].
type Range struct {
	Lower, Upper         int64
	LowerType, UpperType BoundType
}

// NewClosed returns the closed range [lower, upper].
func NewClosed(lower, upper int64) Range {
	return Range{Lower: lower, Upper: upper}
}

// Normalize returns the closed range containing the same integer positions as
// r.  Open endpoints are moved inward by one unit.
func (r Range) Normalize() Range {
	if r.LowerType == Open {
		r.Lower++
		r.LowerType = Closed
	}
	if r.UpperType == Open {
		r.Upper--
		r.UpperType = Closed
	}
	return r
}

// Empty reports whether r contains no integer positions.
func (r Range) Empty() bool {
	n := r.Normalize()
	return n.Lower > n.Upper
}

// Validate returns ErrEmptyRange if r contains no integer positions.
func (r Range) Validate() error {
	if r.Empty() {
		return fmt.Errorf("%s: %w", r, ErrEmptyRange)
	}
	return nil
}

// Contains reports whether pos lies inside r.
func (r Range) Contains(pos int64) bool {
	n := r.Normalize()
	return n.Lower <= pos && pos <= n.Upper
}

// Length returns the number of integer positions in r.
func (r Range) Length() int64 {
	n := r.Normalize()
	if n.Lower > n.Upper {
		return 0
	}
	return n.Upper - n.Lower + 1
}

func (r Range) String() string {
	left, right := "[", "]"
	if r.LowerType == Open {
		left = "("
	}
	if r.UpperType == Open {
		right = ")"
	}
	return fmt.Sprintf("%s%d, %d%s", left, r.Lower, r.Upper, right)
}

// Overlaps reports whether a and b share at least one integer position.
func Overlaps(a, b Range) bool {
	a, b = a.Normalize(), b.Normalize()
	return a.Lower <= b.Upper && b.Lower <= a.Upper
}

// Distance returns the gap distance between a and b measured between the
// facing endpoints, or zero if they overlap.  Distance([10, 20], [24, 26]) is
// 4.
func Distance(a, b Range) int64 {
	a, b = a.Normalize(), b.Normalize()
	switch {
	case a.Upper < b.Lower:
		return b.Lower - a.Upper
	case b.Upper < a.Lower:
		return a.Lower - b.Upper
	}
	return 0
}

// SaturatingSub returns x - y clamped to the int64 range.
func SaturatingSub(x, y int64) int64 {
	if y > 0 && x < math.MinInt64+y {
		return math.MinInt64
	}
	if y < 0 && x > math.MaxInt64+y {
		return math.MaxInt64
	}
	return x - y
}

// SaturatingAdd returns x + y clamped to the int64 range.
func SaturatingAdd(x, y int64) int64 {
	if y > 0 && x > math.MaxInt64-y {
		return math.MaxInt64
	}
	if y < 0 && x < math.MinInt64-y {
		return math.MinInt64
	}
	return x + y
}
