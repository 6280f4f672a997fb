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

// Package server implements an HTTP query API over annotation graphs.
//
// Every dataset is an annotation file loaded into its own graph.  Queries are
// served under /datasets/{dataset}/ and answered with JSON; identifier lists
// are returned as {"ids": [...]}.  Errors are JSON objects with an "error"
// name and a "message".
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/gffgraph/analytics"
	"github.com/googlegenomics/gffgraph/annotation"
	"github.com/googlegenomics/gffgraph/genomics"
	"go.uber.org/zap"
)

var (
	errMissingParameter = errors.New("missing parameter")
	errRadiusTooLarge   = errors.New("radius exceeds the server maximum")
)

// Options controls query limits and request handling.
type Options struct {
	// MaxRadius bounds the radius of nearest queries.  Zero means no bound.
	MaxRadius int64
	// MaxLimit bounds the number of identifiers returned by type queries.
	// Zero means no bound.
	MaxLimit int

	// RateLimit is the number of requests per second allowed for each client
	// address; zero disables limiting.
	RateLimit float64
	RateBurst int

	// Track receives the usage hits recorded while serving each request.
	// Usage is not tracked when Track is nil.
	Track func([]analytics.Hit)
}

// Server serves queries against the datasets of a Registry.
type Server struct {
	registry *Registry
	logger   *zap.Logger
	options  Options
	metrics  *metrics
}

// New returns a Server for registry.  It must be called before the registry is
// loaded for dataset load metrics to be recorded.
func New(registry *Registry, logger *zap.Logger, options Options) *Server {
	s := &Server{
		registry: registry,
		logger:   logger,
		options:  options,
		metrics:  newMetrics(),
	}
	registry.metrics = s.metrics
	return s
}

// Handler returns the HTTP handler serving the query API.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger), s.metrics.middleware(), forwardOrigin)
	if s.options.Track != nil {
		router.Use(analytics.Middleware(s.options.Track))
	}

	router.GET("/healthz", s.serveHealth)
	router.GET("/metrics", gin.WrapH(s.metrics.handler()))

	api := router.Group("/datasets")
	if s.options.RateLimit > 0 {
		api.Use(newRateLimiter(s.options.RateLimit, s.options.RateBurst).middleware())
	}
	api.GET("", s.serveDatasets)
	api.GET("/:dataset", s.serveDataset)
	api.GET("/:dataset/overlapping", s.serveOverlapping)
	api.GET("/:dataset/nearest", s.serveNearest)
	api.GET("/:dataset/types/:type", s.serveType)
	api.GET("/:dataset/elements/:id", s.serveElement)
	api.GET("/:dataset/elements/:id/children", s.serveChildren)
	api.GET("/:dataset/elements/:id/parents", s.serveParents)
	return router
}

func (s *Server) serveHealth(c *gin.Context) {
	if !s.registry.Ready() {
		writeError(c, newUnavailableError("checking datasets", errNotLoaded))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) serveDatasets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"datasets": s.registry.Datasets()})
}

func (s *Server) serveDataset(c *gin.Context) {
	name := c.Param("dataset")
	for _, info := range s.registry.Datasets() {
		if info.Name == name {
			c.JSON(http.StatusOK, info)
			return
		}
	}
	writeError(c, newNotFoundError("finding dataset", fmt.Errorf("%w %q", errUnknownDataset, name)))
}

func (s *Server) serveOverlapping(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Queries", "Overlapping Request Received", c.Param("dataset"), nil))

	g, ok := s.graph(c)
	if !ok {
		return
	}
	region, err := parseRegion(c, true)
	if err != nil {
		writeError(c, newInvalidInputError("parsing region", err))
		return
	}

	ids, err := g.Overlapping(region.SeqID, region.Lower, region.Upper)
	if err != nil {
		writeError(c, newQueryError("finding overlapping elements", err))
		return
	}
	s.writeIDs(c, "overlapping", ids)
}

func (s *Server) serveNearest(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Queries", "Nearest Request Received", c.Param("dataset"), nil))

	g, ok := s.graph(c)
	if !ok {
		return
	}
	region, err := parseRegion(c, true)
	if err != nil {
		writeError(c, newInvalidInputError("parsing region", err))
		return
	}
	radius, err := parseInt(c, "radius", annotation.DefaultRadius)
	if err != nil {
		writeError(c, newInvalidInputError("parsing radius", err))
		return
	}
	if s.options.MaxRadius > 0 && radius > s.options.MaxRadius {
		writeError(c, newInvalidInputError("checking radius", fmt.Errorf("%w (%d > %d)", errRadiusTooLarge, radius, s.options.MaxRadius)))
		return
	}

	var opts []annotation.NearestOption
	if t := c.Query("type"); t != "" {
		opts = append(opts, annotation.WithType(t))
	}
	ids, err := g.Nearest(region.SeqID, region.Lower, region.Upper, radius, opts...)
	if err != nil {
		writeError(c, newQueryError("finding nearest elements", err))
		return
	}
	s.writeIDs(c, "nearest", ids)
}

func (s *Server) serveType(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Queries", "Type Request Received", c.Param("dataset"), nil))

	g, ok := s.graph(c)
	if !ok {
		return
	}
	region, err := parseRegion(c, false)
	if err != nil {
		writeError(c, newInvalidInputError("parsing region", err))
		return
	}
	limit, err := parseInt(c, "limit", int64(s.options.MaxLimit))
	if err != nil || limit < 0 {
		writeError(c, newInvalidInputError("parsing limit", fmt.Errorf("invalid limit %q", c.Query("limit"))))
		return
	}
	if s.options.MaxLimit > 0 && (limit == 0 || limit > int64(s.options.MaxLimit)) {
		limit = int64(s.options.MaxLimit)
	}

	it, err := g.IDsOfType(region.SeqID, c.Param("type"), annotation.From(region.Lower), annotation.To(region.Upper))
	if err != nil {
		writeError(c, newQueryError("finding elements of type", err))
		return
	}
	s.writeIDs(c, "type", it.Collect(int(limit)))
}

func (s *Server) serveElement(c *gin.Context) {
	g, ok := s.graph(c)
	if !ok {
		return
	}
	e, err := g.Element(c.Param("id"))
	if err != nil {
		writeError(c, newQueryError("finding element", err))
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) serveChildren(c *gin.Context) {
	g, ok := s.graph(c)
	if !ok {
		return
	}
	ids, err := g.Children(c.Param("id"))
	if err != nil {
		writeError(c, newQueryError("finding children", err))
		return
	}
	s.writeIDs(c, "children", ids)
}

func (s *Server) serveParents(c *gin.Context) {
	g, ok := s.graph(c)
	if !ok {
		return
	}
	ids, err := g.Parents(c.Param("id"))
	if err != nil {
		writeError(c, newQueryError("finding parents", err))
		return
	}
	s.writeIDs(c, "parents", ids)
}

// graph returns the graph of the dataset named in the request path, or writes
// an error and returns false.
func (s *Server) graph(c *gin.Context) (*annotation.Graph, bool) {
	g, err := s.registry.Graph(c.Param("dataset"))
	if err != nil {
		writeError(c, newQueryError("finding dataset", err))
		return nil, false
	}
	return g, true
}

func (s *Server) writeIDs(c *gin.Context, query string, ids []string) {
	s.metrics.observeResults(query, len(ids))
	count := int64(len(ids))
	analytics.TrackerFromContext(c.Request.Context())(analytics.Event("Queries", "Response ID Count", query, &count))
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

// parseRegion reads the seqid, start and end query parameters.  When bounded
// is false start and end may be omitted.
func parseRegion(c *gin.Context, bounded bool) (genomics.Region, error) {
	seqid := c.Query("seqid")
	if seqid == "" {
		return genomics.Region{}, fmt.Errorf("%w: seqid", errMissingParameter)
	}
	region := genomics.WholeSequence(seqid)

	for _, p := range []struct {
		name string
		dst  *int64
	}{
		{"start", &region.Lower},
		{"end", &region.Upper},
	} {
		value, ok := c.GetQuery(p.name)
		if !ok {
			if bounded {
				return genomics.Region{}, fmt.Errorf("%w: %s", errMissingParameter, p.name)
			}
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return genomics.Region{}, fmt.Errorf("invalid %s %q", p.name, value)
		}
		*p.dst = n
	}
	if err := region.Validate(); err != nil {
		return genomics.Region{}, err
	}
	return region, nil
}

func parseInt(c *gin.Context, name string, def int64) (int64, error) {
	value, ok := c.GetQuery(name)
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return n, nil
}
