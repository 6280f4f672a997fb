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

// Package interval provides an interval multimap over a single coordinate
// system.
//
// Entries are kept in an array sorted by lower endpoint.  The array doubles as
// an implicit balanced binary tree: the node at position i has level equal to
// the number of trailing one bits of i, and every node records the maximum
// upper endpoint found in its subtree.  Windowed iteration walks the tree in
// order, so entries are always produced by ascending lower endpoint.
package interval

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/gffgraph/genomics"
)

// Subtrees at or below this level are scanned linearly.
const scanLevel = 3

// Entry is a single (range, value) pair stored in a Tree.
type Entry struct {
	Range genomics.Range
	Value uint32
}

type node struct {
	Entry
	lower, upper int64 // normalized endpoints of Entry.Range
	max          int64 // largest upper endpoint in the subtree rooted here
}

// Tree is an interval multimap.  The zero value is an empty tree ready for use.
//
// Put must not be called concurrently with any other method.  Once insertions
// are complete, all read methods are safe for concurrent use.
type Tree struct {
	mu       sync.Mutex
	nodes    []node
	maxLevel int
	indexed  atomic.Bool
}

// Put inserts one entry.  Empty ranges are rejected.
func (t *Tree) Put(r genomics.Range, value uint32) error {
	if err := r.Validate(); err != nil {
		return err
	}
	n := r.Normalize()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = append(t.nodes, node{
		Entry: Entry{Range: r, Value: value},
		lower: n.Lower,
		upper: n.Upper,
	})
	t.indexed.Store(false)
	return nil
}

// Len returns the number of entries in the tree.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// Overlaps returns the distinct values of all entries intersecting r.
func (t *Tree) Overlaps(r genomics.Range) *roaring.Bitmap {
	n := r.Normalize()
	values := roaring.New()
	for c := t.Window(n.Lower, n.Upper); c.Next(); {
		values.Add(c.Entry().Value)
	}
	return values
}

// Window returns a cursor over every entry intersecting the closed range
// [lower, upper] in ascending order of lower endpoint.  Entries with equal
// lower endpoints are produced in insertion order.  Use genomics.MinPosition
// and genomics.MaxPosition for unbounded windows.
func (t *Tree) Window(lower, upper int64) *Cursor {
	t.index()
	c := &Cursor{nodes: t.nodes, lower: lower, upper: upper}
	if len(c.nodes) > 0 && lower <= upper {
		c.stack = append(c.stack, frame{level: t.maxLevel, x: 1<<uint(t.maxLevel) - 1})
	}
	return c
}

func (t *Tree) index() {
	if t.indexed.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexed.Load() {
		return
	}

	slices.SortStableFunc(t.nodes, func(a, b node) int {
		return cmp.Compare(a.lower, b.lower)
	})
	t.maxLevel = augment(t.nodes)
	t.indexed.Store(true)
}

// augment fills in the subtree maxima bottom up and returns the level of the
// root.  Right children beyond the end of the array inherit the maximum of the
// rightmost node that does exist.
func augment(nodes []node) int {
	n := len(nodes)
	if n == 0 {
		return 0
	}

	var (
		lastI int
		last  int64
	)
	for i := 0; i < n; i += 2 {
		nodes[i].max = nodes[i].upper
		lastI, last = i, nodes[i].max
	}

	k := 1
	for ; 1<<uint(k) <= n; k++ {
		x := 1 << uint(k-1)
		for i := 2*x - 1; i < n; i += 4 * x {
			right := last
			if i+x < n {
				right = nodes[i+x].max
			}
			nodes[i].max = max(nodes[i].upper, nodes[i-x].max, right)
		}

		if lastI>>uint(k)&1 == 1 {
			lastI -= x
		} else {
			lastI += x
		}
		if lastI < n && nodes[lastI].max > last {
			last = nodes[lastI].max
		}
	}
	return k - 1
}

type frame struct {
	level, x int
	visited  bool // the left subtree has been scheduled
}

// Cursor iterates over the entries of a Tree window.  A Cursor cannot be
// restarted; request a new window instead.
type Cursor struct {
	nodes        []node
	lower, upper int64
	stack        []frame
	scan, end    int
	current      Entry
}

// Next advances the cursor and reports whether an entry is available.
func (c *Cursor) Next() bool {
	n := len(c.nodes)
	for {
		for c.scan < c.end {
			nd := &c.nodes[c.scan]
			c.scan++
			if nd.lower > c.upper {
				c.scan = c.end
				break
			}
			if nd.upper >= c.lower {
				c.current = nd.Entry
				return true
			}
		}

		if len(c.stack) == 0 {
			return false
		}
		z := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]

		switch {
		case z.level <= scanLevel:
			start := z.x >> uint(z.level) << uint(z.level)
			end := start + 1<<uint(z.level+1) - 1
			if end > n {
				end = n
			}
			c.scan, c.end = start, end
		case !z.visited:
			c.stack = append(c.stack, frame{level: z.level, x: z.x, visited: true})
			if y := z.x - 1<<uint(z.level-1); y >= n || c.nodes[y].max >= c.lower {
				c.stack = append(c.stack, frame{level: z.level - 1, x: y})
			}
		case z.x < n && c.nodes[z.x].lower <= c.upper:
			c.stack = append(c.stack, frame{level: z.level - 1, x: z.x + 1<<uint(z.level-1)})
			if c.nodes[z.x].upper >= c.lower {
				c.current = c.nodes[z.x].Entry
				return true
			}
		}
	}
}

// Entry returns the entry most recently produced by Next.
func (c *Cursor) Entry() Entry {
	return c.current
}
