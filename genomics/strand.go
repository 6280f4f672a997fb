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

package genomics

import "fmt"

// Strand identifies the strand of a feature.
type Strand byte

const (
	Forward Strand = '+'
	Reverse Strand = '-'
	Unknown Strand = '?'
	// Unstranded is the GFF3 marker for features without a strand.
	Unstranded Strand = '.'
)

// ParseStrand parses one of "+", "-", "?" or ".".
func ParseStrand(s string) (Strand, error) {
	if len(s) == 1 {
		switch v := Strand(s[0]); v {
		case Forward, Reverse, Unknown, Unstranded:
			return v, nil
		}
	}
	return 0, fmt.Errorf("invalid strand %q", s)
}

func (s Strand) String() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strand) MarshalText() ([]byte, error) {
	return []byte{byte(s)}, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strand) UnmarshalText(text []byte) error {
	v, err := ParseStrand(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
