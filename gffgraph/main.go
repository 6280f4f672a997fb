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

// This binary loads one GFF3 file and answers a single query against it.
//
// Usage:
//
//	gffgraph [flags] <command> <gff-uri> [args]
//
// Commands:
//
//	overlap <region>                  elements overlapping region
//	info <id>                         one element
//	children <id>                     children of an element
//	parents <id>                      parents of an element
//	type <seqid> <type> [start-end]   elements of a type, by position
//	nearest <region> <radius> [type]  elements closest to region
//	stats                             graph summary
//	export <seqid> <type>             elements of a type as GFF3
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/googlegenomics/gffgraph/annotation"
	"github.com/googlegenomics/gffgraph/genomics"
	"github.com/googlegenomics/gffgraph/gff"
	"github.com/googlegenomics/gffgraph/internal/config"
	"github.com/googlegenomics/gffgraph/source"
	"github.com/pkg/profile"
)

var errUsage = errors.New("usage: gffgraph [flags] <command> <gff-uri> [args]")

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("gffgraph", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		types    = flags.String("types", "", "comma separated feature types to load (default all)")
		public   = flags.Bool("public", false, "read gs:// files without credentials")
		logLevel = flags.String("log_level", "warn", "minimum log level (debug, info, warn or error)")
		prof     = flags.String("profile", "", "write a cpu or mem profile to the working directory")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 2 {
		return errUsage
	}
	command, uri, rest := flags.Arg(0), flags.Arg(1), flags.Args()[2:]

	switch *prof {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile %q", *prof)
	}

	logger, err := config.NewLogger(*logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// S3 settings come from the same GFFGRAPH_S3_* variables as the server.
	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	sourceOpts := []source.Option{source.WithS3(cfg.S3)}
	if *public {
		sourceOpts = append(sourceOpts, source.WithPublicAccess())
	}
	readOpts := []gff.Option{gff.WithLogger(logger)}
	if *types != "" {
		readOpts = append(readOpts, gff.WithTypes(strings.Split(*types, ",")...))
	}

	g, err := load(ctx, uri, sourceOpts, readOpts)
	if err != nil {
		return err
	}
	return query(g, command, rest, stdout)
}

func load(ctx context.Context, uri string, sourceOpts []source.Option, readOpts []gff.Option) (*annotation.Graph, error) {
	r, err := source.Open(ctx, uri, sourceOpts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	g := annotation.NewGraph()
	if err := gff.Read(r, g, readOpts...); err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	return g, nil
}

func query(g *annotation.Graph, command string, args []string, w io.Writer) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d arguments, got %d", command, n, len(args))
		}
		return nil
	}

	var result interface{}
	switch command {
	case "overlap":
		if err := need(1); err != nil {
			return err
		}
		region, err := genomics.ParseRegion(args[0])
		if err != nil {
			return err
		}
		if result, err = g.Overlapping(region.SeqID, region.Lower, region.Upper); err != nil {
			return err
		}

	case "info":
		if err := need(1); err != nil {
			return err
		}
		e, err := g.Element(args[0])
		if err != nil {
			return err
		}
		result = e

	case "children", "parents":
		if err := need(1); err != nil {
			return err
		}
		lookup := g.Children
		if command == "parents" {
			lookup = g.Parents
		}
		ids, err := lookup(args[0])
		if err != nil {
			return err
		}
		result = ids

	case "type", "export":
		if err := need(2); err != nil {
			return err
		}
		region := genomics.WholeSequence(args[0])
		if command == "type" && len(args) > 2 {
			var err error
			if region, err = genomics.ParseRegion(args[0] + ":" + args[2]); err != nil {
				return err
			}
		}
		it, err := g.IDsOfType(region.SeqID, args[1], annotation.From(region.Lower), annotation.To(region.Upper))
		if err != nil {
			return err
		}
		if command == "export" {
			return export(g, it, w)
		}
		result = it.Collect(0)

	case "nearest":
		if err := need(2); err != nil {
			return err
		}
		region, err := genomics.ParseRegion(args[0])
		if err != nil {
			return err
		}
		radius, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid radius %q", args[1])
		}
		var opts []annotation.NearestOption
		if len(args) > 2 {
			opts = append(opts, annotation.WithType(args[2]))
		}
		if result, err = g.Nearest(region.SeqID, region.Lower, region.Upper, radius, opts...); err != nil {
			return err
		}

	case "stats":
		result = struct {
			annotation.Stats
			SeqIDs []string `json:"seqids"`
		}{g.Stats(), g.SeqIDs()}

	default:
		return fmt.Errorf("unknown command %q", command)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func export(g *annotation.Graph, it *annotation.IDIterator, w io.Writer) error {
	out := gff.NewWriter(w)
	for it.Next() {
		e, err := g.Element(it.ID())
		if err != nil {
			return err
		}
		if err := out.Write(e); err != nil {
			return err
		}
	}
	return out.Flush()
}
