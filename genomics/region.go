// Copyright 2017 Google Inc.
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

package genomics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errMissingSeqID = errors.New("no sequence name specified")

// Region defines a region of genomic interest.
type Region struct {
	// SeqID names the coordinate system (e.g. a chromosome) of the region.
	SeqID string
	// Range holds the 1-based positions covered by the region.  A region
	// parsed without coordinates covers every position.
	Range
}

// WholeSequence returns a region matching every position on seqID.
func WholeSequence(seqID string) Region {
	return Region{SeqID: seqID, Range: NewClosed(MinPosition, MaxPosition)}
}

func (region Region) String() string {
	return fmt.Sprintf("[seqid:%s, start:%d, end:%d]", region.SeqID, region.Lower, region.Upper)
}

// ParseRegion parses regions of the form "chr1", "chr1:100" and
// "chr1:100-200".  Positions are 1-based inclusive and may contain commas.
func ParseRegion(input string) (Region, error) {
	i := strings.LastIndexByte(input, ':')
	if i < 0 {
		if input == "" {
			return Region{}, errMissingSeqID
		}
		return WholeSequence(input), nil
	}

	region := Region{SeqID: input[:i]}
	if region.SeqID == "" {
		return Region{}, errMissingSeqID
	}

	start, end := input[i+1:], input[i+1:]
	if j := strings.IndexByte(start, '-'); j >= 0 {
		start, end = start[:j], start[j+1:]
	}

	lower, err := parsePosition(start)
	if err != nil {
		return Region{}, fmt.Errorf("parsing start: %w", err)
	}
	upper, err := parsePosition(end)
	if err != nil {
		return Region{}, fmt.Errorf("parsing end: %w", err)
	}

	region.Range = NewClosed(lower, upper)
	if err := region.Validate(); err != nil {
		return Region{}, fmt.Errorf("%s: start > end", input)
	}
	return region, nil
}

func parsePosition(s string) (int64, error) {
	return strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
}
