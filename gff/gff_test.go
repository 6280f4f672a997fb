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
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/googlegenomics/gffgraph/annotation"
	"github.com/googlegenomics/gffgraph/genomics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func readFile(t *testing.T, name string, opts ...Option) *annotation.Graph {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	if err != nil {
		t.Fatalf("Error opening test file: %v", err)
	}
	defer f.Close()

	g := annotation.NewGraph()
	opts = append(opts, WithLogger(zaptest.NewLogger(t)))
	if err := Read(f, g, opts...); err != nil {
		t.Fatalf("Error reading test file: %v", err)
	}
	return g
}

func TestRead_Overlapping(t *testing.T) {
	g := readFile(t, "pt.gff3")

	got, err := g.Overlapping("Pt", 100, 4000)
	require.NoError(t, err)
	assert.Len(t, got, 12)
	for _, id := range []string{
		"repeat_region:Pt_320_1262:+",
		"repeat_region:Pt_3550_3560:?",
		"repeat_region:Pt_3683_3696:?",
		"repeat_region:Pt_3764_3775:?",
		"exon:Pt_1674_3308:-",
		"gene:GRMZM5G836994",
		"transcript:GRMZM5G836994_T01",
		"CDS:GRMZM5G836994_P01",
	} {
		assert.Contains(t, got, id)
	}
	assert.NotContains(t, got, "CDS:GRMZM5G811749_P01")
	assert.NotContains(t, got, "repeat_region:Pt_1_48:?")
}

func TestRead_Element(t *testing.T) {
	g := readFile(t, "pt.gff3")

	gene, err := g.Element("gene:GRMZM5G811749")
	require.NoError(t, err)
	assert.Equal(t, "gene", gene.Type)
	assert.Equal(t, genomics.Forward, gene.Strand)
	assert.Equal(t, []genomics.Range{genomics.NewClosed(3363, 5604)}, gene.Intervals())
	require.Len(t, gene.Attributes(), 1)
	assert.Equal(t, "RPS16", gene.Attributes()[0]["external_name"])
	assert.Equal(t, "protein_coding", gene.Attributes()[0]["biotype"])

	// Both CDS lines share an ID and so belong to one element.
	cds, err := g.Element("CDS:GRMZM5G811749_P01")
	require.NoError(t, err)
	assert.Equal(t, []genomics.Range{
		genomics.NewClosed(4292, 4531),
		genomics.NewClosed(5570, 5604),
	}, cds.Intervals())
	assert.Len(t, cds.Attributes(), 2)

	repeat, err := g.Element("repeat_region:Mt_10_20:.")
	require.NoError(t, err)
	assert.Equal(t, genomics.Unstranded, repeat.Strand)
	assert.Equal(t, map[string]string{"repeat_consensus": "GA"}, repeat.Attributes()[0])

	empty, err := g.Element("repeat_region:Pt_3550_3560:?")
	require.NoError(t, err)
	assert.Empty(t, empty.Attributes()[0])
}

func TestRead_IDsOfType(t *testing.T) {
	g := readFile(t, "pt.gff3")

	it, err := g.IDsOfType("Pt", "gene", annotation.From(100), annotation.To(4000))
	require.NoError(t, err)
	require.True(t, it.Next())
	assert.Equal(t, "gene:GRMZM5G836994", it.ID())
	require.True(t, it.Next())
	assert.Equal(t, "gene:GRMZM5G811749", it.ID())
	assert.False(t, it.Next())
}

func TestRead_Hierarchy(t *testing.T) {
	g := readFile(t, "pt.gff3")

	children, err := g.Children("transcript:GRMZM5G811749_T01")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CDS:GRMZM5G811749_P01",
		"exon:Pt_3363_3402:+",
		"exon:Pt_4292_4531:+",
		"exon:Pt_5570_5604:+",
	}, children)

	parents, err := g.Parents("transcript:GRMZM5G836994_T01")
	require.NoError(t, err)
	assert.Equal(t, []string{"gene:GRMZM5G836994"}, parents)
}

func TestRead_StopsAtFASTA(t *testing.T) {
	g := readFile(t, "pt.gff3")
	assert.Equal(t, []string{"Mt", "Pt"}, g.SeqIDs())
}

func TestRead_Lines(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		id    string
		want  genomics.Range
	}{
		{"crlf", "chr1\t.\tgene\t10\t20\t.\t+\t.\tID=g1\r\n", "g1", genomics.NewClosed(10, 20)},
		{"trailing spaces", "chr1\t.\tgene\t10\t20\t.\t+\t.\tID=g1  \n", "g1", genomics.NewClosed(10, 20)},
		{"empty attributes", "chr1\t.\tgene\t10\t20\t.\t-\t.\t\n", "gene:chr1_10_20:-", genomics.NewClosed(10, 20)},
		{"trailing separator", "chr1\t.\tgene\t1\t1\t.\t?\t.\tID=g1;Name=x;\n", "g1", genomics.NewClosed(1, 1)},
		{"value with equals", "chr1\t.\tgene\t5\t9\t.\t+\t.\tID=g1;Note=a=b\n", "g1", genomics.NewClosed(5, 9)},
		{"comments and blanks", "# comment\n\n.\n##gff-version 3\nchr1\t.\tgene\t5\t9\t.\t+\t.\tID=g1\n", "g1", genomics.NewClosed(5, 9)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := annotation.NewGraph()
			require.NoError(t, Read(strings.NewReader(tc.input), g))
			element, err := g.Element(tc.id)
			require.NoError(t, err)
			assert.Equal(t, []genomics.Range{tc.want}, element.Intervals())
		})
	}
}

func TestRead_SynthesizedIDRepeats(t *testing.T) {
	input := "chr1\t.\trepeat_region\t10\t20\t.\t+\t.\tName=first\n" +
		"chr1\t.\trepeat_region\t10\t20\t.\t+\t.\tName=second\n"
	g := annotation.NewGraph()
	require.NoError(t, Read(strings.NewReader(input), g))

	e, err := g.Element("repeat_region:chr1_10_20:+")
	require.NoError(t, err)
	assert.Equal(t, []genomics.Range{genomics.NewClosed(10, 20), genomics.NewClosed(10, 20)}, e.Intervals())
	assert.Equal(t, []map[string]string{{"Name": "first"}, {"Name": "second"}}, e.Attributes())
	assert.Equal(t, 1, g.Len())
}

func TestRead_MultipleParents(t *testing.T) {
	input := "chr1\t.\texon\t10\t20\t.\t+\t.\tID=e1;Parent=t1,t2\n"
	g := annotation.NewGraph()
	require.NoError(t, Read(strings.NewReader(input), g))

	parents, err := g.Parents("e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, parents)

	_, err = g.Element("t1")
	assert.True(t, errors.Is(err, annotation.ErrIncompleteElement))
}

func TestRead_WithTypes(t *testing.T) {
	g := readFile(t, "pt.gff3", WithTypes("gene", "transcript"))

	got, err := g.Overlapping("Pt", 1, 140384)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"gene:GRMZM5G811749",
		"gene:GRMZM5G836994",
		"transcript:GRMZM5G811749_T01",
		"transcript:GRMZM5G836994_T01",
	}, got)
	assert.Equal(t, []string{"Pt"}, g.SeqIDs())
}

func TestRead_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		line  int
	}{
		{"too few columns", "chr1\t.\tgene\t10\t20\n", 1},
		{"too many columns", "chr1\t.\tgene\t10\t20\t.\t+\t.\tID=a\textra\n", 1},
		{"attribute without value", "chr1\t.\tgene\t10\t20\t.\t+\t.\tID=a;broken\n", 1},
		{"non-integer start", "chr1\t.\tgene\tten\t20\t.\t+\t.\tID=a\n", 1},
		{"non-integer end", "chr1\t.\tgene\t10\t2.5\t.\t+\t.\tID=a\n", 1},
		{"start after end", "chr1\t.\tgene\t20\t10\t.\t+\t.\tID=a\n", 1},
		{"invalid strand", "chr1\t.\tgene\t10\t20\t.\tx\t.\tID=a\n", 1},
		{"empty parent in list", "chr1\t.\texon\t10\t20\t.\t+\t.\tID=e1;Parent=a,,b\n", 1},
		{"empty parent", "chr1\t.\texon\t10\t20\t.\t+\t.\tID=e1;Parent=\n", 1},
		{"empty seqid", "\t.\tgene\t10\t20\t.\t+\t.\tID=a\n", 1},
		{"after valid lines", "#c\nchr1\t.\tgene\t10\t20\t.\t+\t.\tID=a\nbad\n", 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Read(strings.NewReader(tc.input), annotation.NewGraph())
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Read() = %v, want ErrMalformed", err)
			}
			var formatErr *FormatError
			require.True(t, errors.As(err, &formatErr))
			if got, want := formatErr.Line, tc.line; got != want {
				t.Errorf("Incorrect line: got %d, want %d", got, want)
			}
		})
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	g := readFile(t, "pt.gff3")

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, seqid := range g.SeqIDs() {
		types, err := g.Types(seqid)
		require.NoError(t, err)
		for _, elementType := range types {
			it, err := g.IDsOfType(seqid, elementType)
			require.NoError(t, err)
			for it.Next() {
				element, err := g.Element(it.ID())
				require.NoError(t, err)
				require.NoError(t, w.Write(element))
			}
		}
	}
	require.NoError(t, w.Flush())
	require.True(t, strings.HasPrefix(buf.String(), versionDirective+"\n"))

	reread := annotation.NewGraph()
	require.NoError(t, Read(&buf, reread))
	assert.Equal(t, g.Stats(), reread.Stats())

	for _, seqid := range g.SeqIDs() {
		ids, err := g.Overlapping(seqid, genomics.MinPosition, genomics.MaxPosition)
		require.NoError(t, err)
		for _, id := range ids {
			want, err := g.Element(id)
			require.NoError(t, err)
			got, err := reread.Element(id)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestWriter_EmptyOutput(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Flush())
	if got, want := buf.String(), versionDirective+"\n"; got != want {
		t.Errorf("Incorrect output: got %q, want %q", got, want)
	}
}
