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
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Changes arriving within this interval of each other trigger one reload.
const debounceDelay = 500 * time.Millisecond

// Watch reloads datasets stored in local files whenever those files change.
// It blocks until ctx is cancelled.  Datasets stored elsewhere are ignored.
func (r *Registry) Watch(ctx context.Context) error {
	return r.watch(ctx, debounceDelay)
}

func (r *Registry) watch(ctx context.Context, delay time.Duration) error {
	files := make(map[string][]string)
	for path, names := range r.localFiles() {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		files[abs] = append(files[abs], names...)
	}
	if len(files) == 0 {
		r.logger.Info("No local datasets to watch")
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Directories are watched so that files replaced by rename are seen.
	dirs := make(map[string]bool)
	for path := range files {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
		r.logger.Debug("Watching dataset directory", zap.String("dir", dir))
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("File watcher error", zap.Error(err))

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)
			names, watched := files[path]
			if !watched || !(event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create)) {
				continue
			}
			r.logger.Info("Dataset file changed",
				zap.String("file", event.Name), zap.String("operation", event.Op.String()))

			mu.Lock()
			if t, ok := pending[path]; ok && t.Stop() {
				wg.Done()
			}
			wg.Add(1)
			pending[path] = time.AfterFunc(delay, func() {
				defer wg.Done()
				for _, name := range names {
					// Failures are logged by Reload; the old graph stays in service.
					_ = r.Reload(ctx, name)
				}
			})
			mu.Unlock()
		}
	}
}
