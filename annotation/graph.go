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

// Package annotation implements a genome annotation graph.
//
// Annotations are indexed by position, one interval index per coordinate
// system (seqid), and by hierarchy: a directed graph holds an edge from every
// parent to each of its children (for example gene -> transcript -> exon).
//
// A Graph is built with AddAnnotation (usually through the gff package) and
// is then read-only.  All read methods are safe for concurrent use once
// building has finished; AddAnnotation must never run concurrently with any
// other method.
package annotation

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/gffgraph/genomics"
	"github.com/googlegenomics/gffgraph/internal/interval"
)

// Annotation describes one ingestion event for an element.
type Annotation struct {
	ID    string
	SeqID string
	Type  string
	Range genomics.Range
	// Strand defaults to genomics.Unknown when left as zero.
	Strand genomics.Strand
	// Attributes are stored as given; the Graph takes ownership of the map.
	Attributes map[string]string
	// Parents and Children name related elements.  They need not have been
	// added yet (or ever).
	Parents, Children []string
}

// Graph stores elements, their parent/child relationships and one interval
// index per seqid.  Every identifier is assigned a dense handle; records,
// adjacency sets and index entries all refer to elements by handle.
type Graph struct {
	handles  map[string]uint32
	ids      []string
	elements []*Element // nil for nodes that are only referenced by edges
	children []*roaring.Bitmap
	parents  []*roaring.Bitmap
	indexes  map[string]*interval.Tree
	edges    int
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		handles: make(map[string]uint32),
		indexes: make(map[string]*interval.Tree),
	}
}

// AddAnnotation records a in the graph.  The element is created on first
// sight; every call appends a's range and attributes and overwrites the
// element's seqid, type and strand.  An edge is added from each parent and to
// each child.
func (g *Graph) AddAnnotation(a Annotation) error {
	if a.ID == "" {
		return invalidArgument("annotation has no ID")
	}
	if a.SeqID == "" {
		return invalidArgument("annotation %q has no seqid", a.ID)
	}
	if err := a.Range.Validate(); err != nil {
		return invalidArgument("annotation %q: %v", a.ID, err)
	}
	for _, id := range a.Parents {
		if id == "" {
			return invalidArgument("annotation %q has an empty parent ID", a.ID)
		}
	}
	for _, id := range a.Children {
		if id == "" {
			return invalidArgument("annotation %q has an empty child ID", a.ID)
		}
	}
	if len(g.ids) == math.MaxUint32 {
		return invalidArgument("too many elements")
	}
	if a.Strand == 0 {
		a.Strand = genomics.Unknown
	}
	if a.Attributes == nil {
		a.Attributes = make(map[string]string)
	}

	h := g.node(a.ID)
	tree, ok := g.indexes[a.SeqID]
	if !ok {
		tree = &interval.Tree{}
		g.indexes[a.SeqID] = tree
	}
	if err := tree.Put(a.Range, h); err != nil {
		return invalidArgument("annotation %q: %v", a.ID, err)
	}

	element := g.elements[h]
	if element == nil {
		element = &Element{ID: a.ID}
		g.elements[h] = element
	}
	element.SeqID = a.SeqID
	element.Type = a.Type
	element.Strand = a.Strand
	element.Records = append(element.Records, Record{Range: a.Range, Attributes: a.Attributes})

	for _, parent := range a.Parents {
		g.addEdge(g.node(parent), h)
	}
	for _, child := range a.Children {
		g.addEdge(h, g.node(child))
	}
	return nil
}

func (g *Graph) node(id string) uint32 {
	if h, ok := g.handles[id]; ok {
		return h
	}
	h := uint32(len(g.ids))
	g.handles[id] = h
	g.ids = append(g.ids, id)
	g.elements = append(g.elements, nil)
	g.children = append(g.children, nil)
	g.parents = append(g.parents, nil)
	return h
}

func (g *Graph) addEdge(parent, child uint32) {
	if g.children[parent] == nil {
		g.children[parent] = roaring.New()
	}
	if !g.children[parent].CheckedAdd(child) {
		return
	}
	if g.parents[child] == nil {
		g.parents[child] = roaring.New()
	}
	g.parents[child].Add(parent)
	g.edges++
}

// Element returns the element with the given identifier.  The returned value
// is shared with the graph and must not be modified.
func (g *Graph) Element(id string) (*Element, error) {
	h, ok := g.handles[id]
	if !ok {
		return nil, &NotFoundError{"element", id}
	}
	if g.elements[h] == nil {
		return nil, &IncompleteElementError{id}
	}
	return g.elements[h], nil
}

// Children returns the sorted identifiers of the children of id.
func (g *Graph) Children(id string) ([]string, error) {
	h, ok := g.handles[id]
	if !ok {
		return nil, &NotFoundError{"element", id}
	}
	return g.names(g.children[h]), nil
}

// Parents returns the sorted identifiers of the parents of id.
func (g *Graph) Parents(id string) ([]string, error) {
	h, ok := g.handles[id]
	if !ok {
		return nil, &NotFoundError{"element", id}
	}
	return g.names(g.parents[h]), nil
}

// Overlapping returns the sorted identifiers of every element with at least
// one interval intersecting [start, end] on seqid.
func (g *Graph) Overlapping(seqid string, start, end int64) ([]string, error) {
	tree, err := g.tree(seqid)
	if err != nil {
		return nil, err
	}
	query := genomics.NewClosed(start, end)
	if err := query.Validate(); err != nil {
		return nil, invalidArgument("%v", err)
	}
	return g.names(tree.Overlaps(query)), nil
}

// SeqIDs returns the sorted names of every indexed coordinate system.
func (g *Graph) SeqIDs() []string {
	seqids := make([]string, 0, len(g.indexes))
	for seqid := range g.indexes {
		seqids = append(seqids, seqid)
	}
	sort.Strings(seqids)
	return seqids
}

// Types returns the sorted distinct element types indexed on seqid.
func (g *Graph) Types(seqid string) ([]string, error) {
	tree, err := g.tree(seqid)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for c := tree.Window(genomics.MinPosition, genomics.MaxPosition); c.Next(); {
		seen[g.elements[c.Entry().Value].Type] = true
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

// Len returns the number of elements with at least one record.
func (g *Graph) Len() int {
	var n int
	for _, element := range g.elements {
		if element != nil {
			n++
		}
	}
	return n
}

// Stats summarizes the contents of a Graph.
type Stats struct {
	Elements  int            `json:"elements"`
	BareNodes int            `json:"bareNodes"`
	Edges     int            `json:"edges"`
	Entries   map[string]int `json:"entries"`
}

// Stats returns a summary of the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{
		Elements: g.Len(),
		Edges:    g.edges,
		Entries:  make(map[string]int, len(g.indexes)),
	}
	stats.BareNodes = len(g.ids) - stats.Elements
	for seqid, tree := range g.indexes {
		stats.Entries[seqid] = tree.Len()
	}
	return stats
}

func (g *Graph) tree(seqid string) (*interval.Tree, error) {
	tree, ok := g.indexes[seqid]
	if !ok {
		return nil, &NotFoundError{"sequence", seqid}
	}
	return tree, nil
}

func (g *Graph) names(handles *roaring.Bitmap) []string {
	if handles == nil {
		return []string{}
	}
	names := make([]string, 0, handles.GetCardinality())
	it := handles.Iterator()
	for it.HasNext() {
		names = append(names, g.ids[it.Next()])
	}
	sort.Strings(names)
	return names
}
