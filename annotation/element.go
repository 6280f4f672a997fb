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

	"github.com/googlegenomics/gffgraph/genomics"
)

// Record is the data captured by a single ingestion event for an element.
type Record struct {
	Range      genomics.Range
	Attributes map[string]string
}

// Element is a named genomic feature.  Seqid, type and strand hold the values
// from the most recent ingestion event; every event appends one Record.
type Element struct {
	ID      string
	SeqID   string
	Type    string
	Strand  genomics.Strand
	Records []Record
}

// Intervals returns the recorded ranges in ingestion order.
func (e *Element) Intervals() []genomics.Range {
	ranges := make([]genomics.Range, len(e.Records))
	for i, record := range e.Records {
		ranges[i] = record.Range
	}
	return ranges
}

// Attributes returns the recorded attribute maps in ingestion order.  The i-th
// map was recorded together with the i-th interval.
func (e *Element) Attributes() []map[string]string {
	attributes := make([]map[string]string, len(e.Records))
	for i, record := range e.Records {
		attributes[i] = record.Attributes
	}
	return attributes
}

// Span returns the smallest closed range covering every recorded interval.
func (e *Element) Span() genomics.Range {
	var span genomics.Range
	for i, record := range e.Records {
		r := record.Range.Normalize()
		if i == 0 || r.Lower < span.Lower {
			span.Lower = r.Lower
		}
		if i == 0 || r.Upper > span.Upper {
			span.Upper = r.Upper
		}
	}
	return span
}

type intervalJSON struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// MarshalJSON encodes e with its intervals as closed start/end pairs.
func (e *Element) MarshalJSON() ([]byte, error) {
	intervals := make([]intervalJSON, len(e.Records))
	for i, record := range e.Records {
		r := record.Range.Normalize()
		intervals[i] = intervalJSON{r.Lower, r.Upper}
	}
	return json.Marshal(struct {
		ID         string              `json:"id"`
		SeqID      string              `json:"seqid"`
		Type       string              `json:"type"`
		Strand     genomics.Strand     `json:"strand"`
		Intervals  []intervalJSON      `json:"intervals"`
		Attributes []map[string]string `json:"attributes"`
	}{e.ID, e.SeqID, e.Type, e.Strand, intervals, e.Attributes()})
}
