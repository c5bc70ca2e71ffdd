// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/eventlog"
)

// Cleanup deletes daily event files (and their lock sidecars) whose date is
// older than retentionDays, measured against now. It operates only on the
// log's own directory; state, memory, and cache trees are never touched.
// Idempotent: a second run with the same inputs deletes nothing.
func (a *Aggregator) Cleanup(retentionDays int, now time.Time) (removed int, err error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	files, err := a.log.DailyFiles()
	if err != nil {
		return 0, err
	}
	cutoff := startOfDay(now).AddDate(0, 0, -retentionDays)

	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		date, parseErr := time.ParseInLocation(eventlog.DateLayout, name, now.Location())
		if parseErr != nil {
			// Not a daily file; leave it alone.
			continue
		}
		if !date.Before(cutoff) {
			continue
		}
		if rmErr := os.Remove(path); rmErr != nil {
			a.logger.Warn("failed to remove expired daily file",
				zap.String("path", path),
				zap.Error(rmErr))
			continue
		}
		os.Remove(path + ".lock")
		removed++
		a.logger.Info("removed expired daily file", zap.String("path", path))
	}
	return removed, nil
}
