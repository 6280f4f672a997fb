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
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by errors for unknown sequences and elements.
	ErrNotFound = errors.New("not found")
	// ErrIncompleteElement is matched by errors for identifiers that are only
	// known as the endpoint of a parent or child relationship.
	ErrIncompleteElement = errors.New("incomplete element")
	// ErrInvalidArgument is matched by errors for malformed queries and
	// annotations.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotFoundError describes a lookup of an unknown sequence or element.
type NotFoundError struct {
	// Kind is either "sequence" or "element".
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IncompleteElementError describes a metadata lookup on an element that was
// never ingested, only referenced.
type IncompleteElementError struct {
	ID string
}

func (e *IncompleteElementError) Error() string {
	return fmt.Sprintf("element %q is referenced but has no record", e.ID)
}

// Is reports whether target is ErrIncompleteElement.
func (e *IncompleteElementError) Is(target error) bool {
	return target == ErrIncompleteElement
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
