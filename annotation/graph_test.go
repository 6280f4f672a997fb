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
	"encoding/json"
	"errors"
	"testing"

	"github.com/googlegenomics/gffgraph/genomics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func add(t *testing.T, g *Graph, a Annotation) {
	t.Helper()
	require.NoError(t, g.AddAnnotation(a))
}

func geneModel(t *testing.T) *Graph {
	g := NewGraph()
	add(t, g, Annotation{ID: "gene1", SeqID: "chr1", Type: "gene", Range: genomics.NewClosed(1000, 9000), Strand: genomics.Forward})
	add(t, g, Annotation{ID: "mRNA1", SeqID: "chr1", Type: "mRNA", Range: genomics.NewClosed(1050, 9000), Strand: genomics.Forward, Parents: []string{"gene1"}})
	add(t, g, Annotation{ID: "mRNA2", SeqID: "chr1", Type: "mRNA", Range: genomics.NewClosed(1050, 5000), Strand: genomics.Forward, Parents: []string{"gene1"}})
	add(t, g, Annotation{ID: "exon1", SeqID: "chr1", Type: "exon", Range: genomics.NewClosed(1050, 1500), Strand: genomics.Forward, Parents: []string{"mRNA1", "mRNA2"}})
	add(t, g, Annotation{ID: "exon2", SeqID: "chr1", Type: "exon", Range: genomics.NewClosed(3000, 3902), Strand: genomics.Forward, Parents: []string{"mRNA1"}})
	add(t, g, Annotation{ID: "cds1", SeqID: "chr1", Type: "CDS", Range: genomics.NewClosed(1201, 1500), Parents: []string{"mRNA1"},
		Attributes: map[string]string{"phase": "0"}})
	add(t, g, Annotation{ID: "cds1", SeqID: "chr1", Type: "CDS", Range: genomics.NewClosed(3000, 3902), Parents: []string{"mRNA1"},
		Attributes: map[string]string{"phase": "1"}})
	add(t, g, Annotation{ID: "gene2", SeqID: "chr2", Type: "gene", Range: genomics.NewClosed(10, 20), Children: []string{"orphan"}})
	return g
}

func TestGraph_Overlapping(t *testing.T) {
	g := NewGraph()
	add(t, g, Annotation{ID: "A", SeqID: "chr1", Type: "gene", Range: genomics.NewClosed(100, 200)})
	add(t, g, Annotation{ID: "B", SeqID: "chr1", Type: "gene", Range: genomics.NewClosed(500, 600)})

	testCases := []struct {
		name       string
		start, end int64
		want       []string
	}{
		{"inside A", 150, 160, []string{"A"}},
		{"A lower endpoint", 90, 100, []string{"A"}},
		{"A upper endpoint", 200, 210, []string{"A"}},
		{"disjoint", 201, 499, []string{}},
		{"both", 200, 500, []string{"A", "B"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.Overlapping("chr1", tc.start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGraph_OverlappingDeduplicates(t *testing.T) {
	g := geneModel(t)
	got, err := g.Overlapping("chr1", 1100, 3500)
	require.NoError(t, err)
	assert.Equal(t, []string{"cds1", "exon1", "exon2", "gene1", "mRNA1", "mRNA2"}, got)
}

func TestGraph_UnknownSequence(t *testing.T) {
	g := geneModel(t)

	_, err := g.Overlapping("chrX", 1, 10)
	assert.True(t, errors.Is(err, ErrNotFound), "Overlapping: %v", err)

	_, err = g.IDsOfType("chrX", "gene")
	assert.True(t, errors.Is(err, ErrNotFound), "IDsOfType: %v", err)

	_, err = g.Nearest("chrX", 1, 10, 100)
	assert.True(t, errors.Is(err, ErrNotFound), "Nearest: %v", err)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "sequence", notFound.Kind)
	assert.Equal(t, "chrX", notFound.Key)
}

func TestGraph_KnownSequenceEmptyResult(t *testing.T) {
	g := geneModel(t)
	got, err := g.Overlapping("chr2", 100, 200)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGraph_Element(t *testing.T) {
	g := geneModel(t)

	gene, err := g.Element("gene1")
	require.NoError(t, err)
	assert.Equal(t, "gene", gene.Type)
	assert.Equal(t, "chr1", gene.SeqID)
	assert.Equal(t, genomics.Forward, gene.Strand)
	assert.Equal(t, []genomics.Range{genomics.NewClosed(1000, 9000)}, gene.Intervals())

	cds, err := g.Element("cds1")
	require.NoError(t, err)
	assert.Equal(t, genomics.Unknown, cds.Strand)
	require.Len(t, cds.Intervals(), 2)
	require.Len(t, cds.Attributes(), 2)
	assert.Equal(t, genomics.NewClosed(3000, 3902), cds.Intervals()[1])
	assert.Equal(t, "1", cds.Attributes()[1]["phase"])
	assert.Equal(t, genomics.NewClosed(1201, 3902), cds.Span())

	_, err = g.Element("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrIncompleteElement))
}

func TestGraph_BareNodes(t *testing.T) {
	g := geneModel(t)

	_, err := g.Element("orphan")
	assert.True(t, errors.Is(err, ErrIncompleteElement), "got %v", err)
	assert.False(t, errors.Is(err, ErrNotFound))

	parents, err := g.Parents("orphan")
	require.NoError(t, err)
	assert.Equal(t, []string{"gene2"}, parents)

	children, err := g.Children("orphan")
	require.NoError(t, err)
	assert.Empty(t, children)

	// A referenced identifier becomes complete once it is ingested.
	add(t, g, Annotation{ID: "orphan", SeqID: "chr2", Type: "mRNA", Range: genomics.NewClosed(12, 18)})
	element, err := g.Element("orphan")
	require.NoError(t, err)
	assert.Equal(t, "mRNA", element.Type)

	stats := g.Stats()
	assert.Equal(t, 0, stats.BareNodes)
}

func TestGraph_Hierarchy(t *testing.T) {
	g := geneModel(t)

	children, err := g.Children("gene1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mRNA1", "mRNA2"}, children)

	parents, err := g.Parents("exon1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mRNA1", "mRNA2"}, parents)

	// The repeated cds1 parent edge is stored once.
	children, err = g.Children("mRNA1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cds1", "exon1", "exon2"}, children)

	_, err = g.Children("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = g.Parents("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGraph_ChildrenAndParentsAreInverse(t *testing.T) {
	g := geneModel(t)
	for _, id := range g.ids {
		children, err := g.Children(id)
		require.NoError(t, err)
		for _, child := range children {
			parents, err := g.Parents(child)
			require.NoError(t, err)
			assert.Contains(t, parents, id, "%s is a child of %s", child, id)
		}

		parents, err := g.Parents(id)
		require.NoError(t, err)
		for _, parent := range parents {
			children, err := g.Children(parent)
			require.NoError(t, err)
			assert.Contains(t, children, id, "%s is a parent of %s", parent, id)
		}
	}
}

func TestGraph_LastWriteWins(t *testing.T) {
	g := NewGraph()
	add(t, g, Annotation{ID: "x", SeqID: "chr1", Type: "gene", Range: genomics.NewClosed(1, 10), Strand: genomics.Forward})
	add(t, g, Annotation{ID: "x", SeqID: "chr1", Type: "pseudogene", Range: genomics.NewClosed(20, 30), Strand: genomics.Reverse})

	element, err := g.Element("x")
	require.NoError(t, err)
	assert.Equal(t, "pseudogene", element.Type)
	assert.Equal(t, genomics.Reverse, element.Strand)
	assert.Len(t, element.Records, 2)
	assert.Equal(t, len(element.Intervals()), len(element.Attributes()))
}

func TestGraph_AddAnnotationErrors(t *testing.T) {
	testCases := []struct {
		name       string
		annotation Annotation
	}{
		{"missing id", Annotation{SeqID: "chr1", Range: genomics.NewClosed(1, 2)}},
		{"missing seqid", Annotation{ID: "a", Range: genomics.NewClosed(1, 2)}},
		{"inverted range", Annotation{ID: "a", SeqID: "chr1", Range: genomics.NewClosed(2, 1)}},
		{"empty parent", Annotation{ID: "a", SeqID: "chr1", Range: genomics.NewClosed(1, 2), Parents: []string{"p", ""}}},
		{"empty child", Annotation{ID: "a", SeqID: "chr1", Range: genomics.NewClosed(1, 2), Children: []string{""}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGraph()
			err := g.AddAnnotation(tc.annotation)
			assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
			assert.Equal(t, 0, g.Len())
			assert.Empty(t, g.SeqIDs())
			assert.Equal(t, Stats{Entries: map[string]int{}}, g.Stats())
		})
	}
}

func TestGraph_IDsOfType(t *testing.T) {
	g := geneModel(t)

	it, err := g.IDsOfType("chr1", "exon")
	require.NoError(t, err)
	assert.Equal(t, []string{"exon1", "exon2"}, it.Collect(0))
	assert.False(t, it.Next(), "iterator restarted after exhaustion")

	it, err = g.IDsOfType("chr1", "CDS", From(2000), To(4000))
	require.NoError(t, err)
	assert.Equal(t, []string{"cds1"}, it.Collect(0))

	it, err = g.IDsOfType("chr1", "mRNA", To(1000))
	require.NoError(t, err)
	assert.Empty(t, it.Collect(0))

	it, err = g.IDsOfType("chr1", "mRNA")
	require.NoError(t, err)
	assert.Equal(t, []string{"mRNA1"}, it.Collect(1))
}

func TestGraph_IDsOfTypeYieldsOnce(t *testing.T) {
	g := NewGraph()
	for _, r := range []genomics.Range{
		genomics.NewClosed(50, 60),
		genomics.NewClosed(10, 20),
		genomics.NewClosed(30, 40),
	} {
		add(t, g, Annotation{ID: "repeat", SeqID: "chr1", Type: "repeat_region", Range: r})
	}
	add(t, g, Annotation{ID: "other", SeqID: "chr1", Type: "repeat_region", Range: genomics.NewClosed(25, 26)})
	add(t, g, Annotation{ID: "gene", SeqID: "chr1", Type: "gene", Range: genomics.NewClosed(1, 100)})

	it, err := g.IDsOfType("chr1", "repeat_region")
	require.NoError(t, err)
	var got []string
	for it.Next() {
		got = append(got, it.ID())
	}
	assert.Equal(t, []string{"repeat", "other"}, got)
}

func TestGraph_SeqIDsAndTypes(t *testing.T) {
	g := geneModel(t)
	assert.Equal(t, []string{"chr1", "chr2"}, g.SeqIDs())

	types, err := g.Types("chr1")
	require.NoError(t, err)
	assert.Equal(t, []string{"CDS", "exon", "gene", "mRNA"}, types)

	stats := g.Stats()
	assert.Equal(t, 7, stats.Elements)
	assert.Equal(t, 1, stats.BareNodes)
	assert.Equal(t, 7, stats.Edges)
	assert.Equal(t, map[string]int{"chr1": 7, "chr2": 1}, stats.Entries)
}

func TestElement_MarshalJSON(t *testing.T) {
	g := geneModel(t)
	e, err := g.Element("cds1")
	require.NoError(t, err)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	var got struct {
		ID        string `json:"id"`
		SeqID     string `json:"seqid"`
		Strand    string `json:"strand"`
		Intervals []struct {
			Start int64 `json:"start"`
			End   int64 `json:"end"`
		} `json:"intervals"`
		Attributes []map[string]string `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "cds1", got.ID)
	assert.Equal(t, "chr1", got.SeqID)
	assert.Len(t, got.Intervals, len(e.Records))
	assert.Len(t, got.Attributes, len(e.Records))
	assert.Equal(t, e.Records[0].Range.Normalize().Lower, got.Intervals[0].Start)
	assert.Equal(t, e.Strand.String(), got.Strand)
}
