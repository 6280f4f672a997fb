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

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/gffgraph/annotation"
)

// apiError is used to capture errors that have a name and status code in the
// query API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func (err *apiError) Unwrap() error {
	return err.cause
}

func newAPIError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %w", context, err)}
}

func newInvalidInputError(context string, err error) error {
	return newAPIError("InvalidInput", http.StatusBadRequest, context, err)
}

func newNotFoundError(context string, err error) error {
	return newAPIError("NotFound", http.StatusNotFound, context, err)
}

func newIncompleteElementError(context string, err error) error {
	return newAPIError("IncompleteElement", http.StatusConflict, context, err)
}

func newUnavailableError(context string, err error) error {
	return newAPIError("Unavailable", http.StatusServiceUnavailable, context, err)
}

func newTooManyRequestsError(err error) error {
	return &apiError{"TooManyRequests", http.StatusTooManyRequests, err}
}

// newQueryError classifies an error returned by the annotation package.
func newQueryError(context string, err error) error {
	switch {
	case errors.Is(err, annotation.ErrNotFound), errors.Is(err, errUnknownDataset):
		return newNotFoundError(context, err)
	case errors.Is(err, annotation.ErrIncompleteElement):
		return newIncompleteElementError(context, err)
	case errors.Is(err, annotation.ErrInvalidArgument):
		return newInvalidInputError(context, err)
	case errors.Is(err, errNotLoaded):
		return newUnavailableError(context, err)
	}
	return err
}

// writeError writes a JSON object describing err and aborts the handler
// chain.  Errors without a name in the API are reported as internal errors.
func writeError(c *gin.Context, err error) {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		apiErr = &apiError{"InternalError", http.StatusInternalServerError, err}
	}
	c.Error(err)
	c.AbortWithStatusJSON(apiErr.code, gin.H{
		"error":   apiErr.name,
		"message": fmt.Sprintf("%s: %v", http.StatusText(apiErr.code), apiErr.cause),
	})
}
