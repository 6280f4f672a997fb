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
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/googlegenomics/gffgraph/annotation"
	"github.com/googlegenomics/gffgraph/gff"
	"github.com/googlegenomics/gffgraph/internal/config"
	"github.com/googlegenomics/gffgraph/source"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Datasets are loaded at most this many at a time.
const maxConcurrentLoads = 4

var (
	errUnknownDataset = errors.New("unknown dataset")
	errNotLoaded      = errors.New("dataset is not loaded yet")
)

// LoadFunc builds the graph for one dataset.
type LoadFunc func(ctx context.Context, dataset config.Dataset) (*annotation.Graph, error)

// NewLoadFunc returns a LoadFunc that reads GFF3 through the source package.
func NewLoadFunc(logger *zap.Logger, opts ...source.Option) LoadFunc {
	return func(ctx context.Context, dataset config.Dataset) (*annotation.Graph, error) {
		r, err := source.Open(ctx, dataset.URI, opts...)
		if err != nil {
			return nil, err
		}
		defer r.Close()

		readOpts := []gff.Option{gff.WithLogger(logger.With(zap.String("dataset", dataset.Name)))}
		if len(dataset.Types) > 0 {
			readOpts = append(readOpts, gff.WithTypes(dataset.Types...))
		}
		g := annotation.NewGraph()
		if err := gff.Read(r, g, readOpts...); err != nil {
			return nil, fmt.Errorf("reading %s: %w", dataset.URI, err)
		}
		return g, nil
	}
}

type snapshot struct {
	graph    *annotation.Graph
	loadedAt time.Time
}

type entry struct {
	config  config.Dataset
	current atomic.Pointer[snapshot]

	// Held for the whole of a reload so that the last load to start is the
	// last one published.
	reloading sync.Mutex
}

// Registry holds the current graph of every configured dataset.  Graphs are
// never modified once published; a reload builds a new graph and swaps it
// in, so queries already running keep the graph they started with.
type Registry struct {
	load     LoadFunc
	logger   *zap.Logger
	metrics  *metrics
	names    []string
	datasets map[string]*entry
}

// NewRegistry returns a Registry for datasets.  Nothing is loaded until Load
// or Reload is called.
func NewRegistry(datasets []config.Dataset, load LoadFunc, logger *zap.Logger) *Registry {
	r := &Registry{
		load:     load,
		logger:   logger,
		datasets: make(map[string]*entry, len(datasets)),
	}
	for _, d := range datasets {
		r.names = append(r.names, d.Name)
		r.datasets[d.Name] = &entry{config: d}
	}
	sort.Strings(r.names)
	return r
}

// Load loads every dataset concurrently.  All datasets are attempted; the
// first error is returned.
func (r *Registry) Load(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrentLoads)
	for _, name := range r.names {
		g.Go(func() error {
			return r.Reload(ctx, name)
		})
	}
	return g.Wait()
}

// Reload rebuilds one dataset and publishes the result.  On failure the
// previous graph, if any, stays in service.
func (r *Registry) Reload(ctx context.Context, name string) error {
	e, ok := r.datasets[name]
	if !ok {
		return fmt.Errorf("%w %q", errUnknownDataset, name)
	}

	e.reloading.Lock()
	defer e.reloading.Unlock()

	start := time.Now()
	g, err := r.load(ctx, e.config)
	if err != nil {
		r.metrics.observeLoad(name, err)
		r.logger.Error("Failed to load dataset",
			zap.String("dataset", name), zap.String("uri", e.config.URI), zap.Error(err))
		return fmt.Errorf("loading dataset %q: %w", name, err)
	}
	e.current.Store(&snapshot{graph: g, loadedAt: time.Now()})

	stats := g.Stats()
	r.metrics.observeLoad(name, nil)
	r.metrics.setElements(name, stats.Elements)
	r.logger.Info("Loaded dataset",
		zap.String("dataset", name),
		zap.Int("elements", stats.Elements),
		zap.Int("edges", stats.Edges),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Graph returns the current graph of the named dataset.
func (r *Registry) Graph(name string) (*annotation.Graph, error) {
	e, ok := r.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownDataset, name)
	}
	s := e.current.Load()
	if s == nil {
		return nil, fmt.Errorf("%q: %w", name, errNotLoaded)
	}
	return s.graph, nil
}

// Ready reports whether every dataset has been loaded at least once.
func (r *Registry) Ready() bool {
	for _, e := range r.datasets {
		if e.current.Load() == nil {
			return false
		}
	}
	return true
}

// DatasetInfo describes a dataset for listing.
type DatasetInfo struct {
	Name     string            `json:"name"`
	URI      string            `json:"uri"`
	Loaded   bool              `json:"loaded"`
	LoadedAt *time.Time        `json:"loadedAt,omitempty"`
	SeqIDs   []string          `json:"seqids,omitempty"`
	Stats    *annotation.Stats `json:"stats,omitempty"`
}

// Datasets describes every dataset, sorted by name.
func (r *Registry) Datasets() []DatasetInfo {
	infos := make([]DatasetInfo, 0, len(r.names))
	for _, name := range r.names {
		e := r.datasets[name]
		info := DatasetInfo{Name: name, URI: e.config.URI}
		if s := e.current.Load(); s != nil {
			stats := s.graph.Stats()
			info.Loaded = true
			info.LoadedAt = &s.loadedAt
			info.SeqIDs = s.graph.SeqIDs()
			info.Stats = &stats
		}
		infos = append(infos, info)
	}
	return infos
}

// localFiles maps the paths of datasets stored on the local file system to
// their dataset names.
func (r *Registry) localFiles() map[string][]string {
	files := make(map[string][]string)
	for _, name := range r.names {
		scheme, _, path, err := source.Parse(r.datasets[name].config.URI)
		if err == nil && scheme == "file" {
			files[path] = append(files[path], name)
		}
	}
	return files
}
