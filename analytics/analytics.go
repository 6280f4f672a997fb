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

// Package analytics records anonymous usage events and delivers them in
// batches to a Measurement Protocol endpoint.
package analytics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultEndpoint  = "https://www.google-analytics.com"
	defaultBatchSize = 20 // The maximum number supported by batch endpoint.
	defaultQueueSize = 256
)

// Hit represents a single analytics event (called a 'hit').
type Hit map[string]string

// Event generates a new event typed hit.  The label may be empty and the
// value may be nil but category and action are required.
func Event(category, action, label string, value *int64) Hit {
	hit := Hit{
		"t":  "event",
		"ec": category,
		"ea": action,
	}
	if label != "" {
		hit["el"] = label
	}
	if value != nil {
		hit["ev"] = strconv.FormatInt(*value, 10)
	}
	return hit
}

// Client uploads hits on behalf of one anonymous client.
type Client struct {
	propertyID string
	clientID   string
	endpoint   string
	batchSize  int
	http       *http.Client
}

// NewClient returns a Client that reports to propertyID.  A random client ID
// is generated when clientID is empty.
func NewClient(propertyID, clientID string) *Client {
	if clientID == "" {
		clientID = uuid.New().String()
	}
	return &Client{
		propertyID: propertyID,
		clientID:   clientID,
		endpoint:   defaultEndpoint,
		batchSize:  defaultBatchSize,
		http:       http.DefaultClient,
	}
}

// Send uploads hits, splitting them into as many batch requests as needed.
func (c *Client) Send(ctx context.Context, hits []Hit) error {
	for start := 0; start < len(hits); start += c.batchSize {
		end := min(start+c.batchSize, len(hits))
		if err := c.upload(ctx, hits[start:end]); err != nil {
			return fmt.Errorf("uploading hits: %w", err)
		}
	}
	return nil
}

func (c *Client) upload(ctx context.Context, hits []Hit) error {
	var body bytes.Buffer
	for _, hit := range hits {
		payload := url.Values{
			"v":   []string{"1"},
			"tid": []string{c.propertyID},
			"cid": []string{c.clientID},
		}
		for key, value := range hit {
			payload.Add(key, value)
		}
		body.WriteString(payload.Encode())
		body.WriteByte('\n')
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/batch", &body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer response.Body.Close()
	io.Copy(io.Discard, response.Body)

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status: %v", response.Status)
	}
	return nil
}

// Dispatcher delivers hits from request handlers to a Client in the
// background.  Hits are dropped rather than blocking the caller when the
// queue is full.
type Dispatcher struct {
	client *Client
	logger *zap.Logger
	queue  chan []Hit
}

// NewDispatcher returns a Dispatcher that sends through client.  Run must be
// called for hits to be delivered.
func NewDispatcher(client *Client, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger,
		queue:  make(chan []Hit, defaultQueueSize),
	}
}

// Track queues hits for delivery.
func (d *Dispatcher) Track(hits []Hit) {
	if len(hits) == 0 {
		return
	}
	select {
	case d.queue <- hits:
	default:
		d.logger.Warn("Dropping analytics hits", zap.Int("hits", len(hits)))
	}
}

// Run delivers queued hits until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case hits := <-d.queue:
			if err := d.client.Send(ctx, hits); err != nil {
				d.logger.Warn("Failed to send hits to analytics",
					zap.Int("hits", len(hits)), zap.Error(err))
			}
		}
	}
}

type contextKey int

var (
	hitsKey = contextKey(1)
)

// Middleware returns a gin handler that prepares each request's context for
// use with TrackerFromContext.  Once the rest of the chain has run, track is
// invoked with any hits accumulated during the request.
func Middleware(track func([]Hit)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var hits []Hit
		ctx := context.WithValue(c.Request.Context(), hitsKey, &hits)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		track(hits)
	}
}

// TrackerFromContext is intended to be used with contexts prepared by
// Middleware.  It returns a function that buffers hits to be delivered to
// the track function given to Middleware, or one that discards them if ctx
// was not prepared.
func TrackerFromContext(ctx context.Context) func(Hit) {
	if hits, ok := ctx.Value(hitsKey).(*[]Hit); ok {
		return func(hit Hit) { *hits = append(*hits, hit) }
	}
	return func(Hit) {}
}
