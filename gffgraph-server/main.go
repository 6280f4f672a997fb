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

// This binary serves queries over GFF3 annotation files stored locally, in
// GCS or in S3-compatible storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/googlegenomics/gffgraph/analytics"
	"github.com/googlegenomics/gffgraph/internal/config"
	"github.com/googlegenomics/gffgraph/server"
	"github.com/googlegenomics/gffgraph/source"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile = flag.String("config", "", "YAML configuration file")

	port     = flag.Int("port", 8080, "HTTP service port")
	logLevel = flag.String("log_level", "info", "minimum log level (debug, info, warn or error)")

	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")

	watch  = flag.Bool("watch", false, "reload local datasets when their files change")
	public = flag.Bool("public", false, "read gs:// datasets without credentials")

	// Enable or disable anonymous usage tracking.
	//
	// If enabled, anonymous information about requests handled by the server is
	// logged to Google via Google Analytics.
	//
	// This information helps Google determine how well the software is
	// performing and where improvements should be made.  No user identifying
	// information is ever sent to Google.
	trackUsage = flag.Bool("track_usage", false, "anonymous usage tracking")

	datasets []config.Dataset
)

func init() {
	flag.Func("dataset", "dataset to serve as name=uri (repeatable)", func(s string) error {
		d, err := config.ParseDataset(s)
		if err != nil {
			return err
		}
		datasets = append(datasets, d)
		return nil
	})
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to configure server: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// loadConfig reads the configuration file and environment, then applies the
// flags given on the command line.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "log_level":
			cfg.LogLevel = *logLevel
		case "https_cert":
			cfg.HTTPSCert = *httpsCert
		case "https_key":
			cfg.HTTPSKey = *httpsKey
		case "watch":
			cfg.Watch = *watch
		case "public":
			cfg.Public = *public
		case "track_usage":
			cfg.TrackUsage = *trackUsage
		case "dataset":
			cfg.Datasets = datasets
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceOpts := []source.Option{source.WithS3(cfg.S3)}
	if cfg.Public {
		sourceOpts = append(sourceOpts, source.WithPublicAccess())
	}
	registry := server.NewRegistry(cfg.Datasets, server.NewLoadFunc(logger, sourceOpts...), logger)

	options := server.Options{
		MaxRadius: cfg.MaxRadius,
		MaxLimit:  cfg.MaxLimit,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}
	if cfg.TrackUsage {
		logger.Info("Enabling anonymous usage tracking")
		dispatcher := analytics.NewDispatcher(analytics.NewClient("UA-103022118-1", ""), logger)
		go dispatcher.Run(ctx)
		options.Track = dispatcher.Track
	}
	srv := server.New(registry, logger, options)

	// Queries are answered with Unavailable until every dataset has loaded.
	go func() {
		if err := registry.Load(ctx); err != nil {
			logger.Error("Some datasets failed to load", zap.Error(err))
		}
		if cfg.Watch {
			if err := registry.Watch(ctx); err != nil {
				logger.Error("Dataset watcher stopped", zap.Error(err))
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("Serving queries",
			zap.String("address", httpServer.Addr),
			zap.Bool("https", cfg.HTTPSCert != ""),
			zap.Int("datasets", len(cfg.Datasets)))
		if cfg.HTTPSCert != "" {
			errc <- httpServer.ListenAndServeTLS(cfg.HTTPSCert, cfg.HTTPSKey)
		} else {
			errc <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
