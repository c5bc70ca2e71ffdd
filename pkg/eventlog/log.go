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
package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/project"
)

const (
	// DefaultLockWait bounds how long a writer waits for the sidecar lock.
	DefaultLockWait = 5 * time.Second

	// lockRetryDelay is the polling interval while waiting for a lock.
	lockRetryDelay = 50 * time.Millisecond

	// DateLayout names daily files: YYYY-MM-DD.jsonl.
	DateLayout = "2006-01-02"

	fileSuffix = ".jsonl"
	lockSuffix = ".lock"
	fileMode   = 0o600
)

// ErrLockTimeout is returned when the sidecar lock cannot be acquired within
// the bounded wait. Hooks treat it as "skip this side effect", never as a
// reason to block the host.
var ErrLockTimeout = errors.New("event log lock timeout")

// Log is an append-only per-day JSONL event log for one project.
// Writers take an exclusive advisory lock on the sidecar `.lock` file and
// write each record as a single line; readers take shared locks. Within a
// daily file, append order equals observation order.
type Log struct {
	dir      string
	lockWait time.Duration
	logger   *zap.Logger

	// Now supplies timestamps for file selection; overridable in tests.
	Now func() time.Time
}

// Open resolves the metrics directory for a project and returns its log.
func Open(ctx *project.Context, logger *zap.Logger) (*Log, error) {
	dir, err := project.DataDir(ctx, project.KindMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve metrics directory: %w", err)
	}
	return New(dir, logger), nil
}

// New creates a log over an existing directory.
func New(dir string, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		dir:      dir,
		lockWait: DefaultLockWait,
		logger:   logger,
		Now:      time.Now,
	}
}

// Dir returns the directory holding the daily files.
func (l *Log) Dir() string {
	return l.dir
}

// FileFor returns the daily file path for a date.
func (l *Log) FileFor(day time.Time) string {
	return filepath.Join(l.dir, day.Format(DateLayout)+fileSuffix)
}

// Append serialises the event to one line and appends it to today's file
// under an exclusive lock. The line is written with a single write call so a
// killed process never leaves a partial record.
func (l *Log) Append(ctx context.Context, event any) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialise event: %w", err)
	}

	path := l.FileFor(l.Now())
	unlock, err := l.lock(ctx, path, true)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, fileMode)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ReadDay parses one daily file under a shared lock. Malformed lines are
// skipped with a warning; a missing file yields no records.
func (l *Log) ReadDay(ctx context.Context, day time.Time) ([]Record, error) {
	path := l.FileFor(day)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	unlock, err := l.lock(ctx, path, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var h head
		if err := json.Unmarshal(line, &h); err != nil || h.RecordType == "" {
			l.logger.Warn("skipping malformed event log line",
				zap.String("file", path),
				zap.Int("line", lineNo))
			continue
		}
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		records = append(records, Record{Type: h.RecordType, Time: h.Timestamp, Raw: raw})
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to read event log: %w", err)
	}
	return records, nil
}

// ReadRange reads every daily file whose date falls in [since, until],
// inclusive, in date order.
func (l *Log) ReadRange(ctx context.Context, since, until time.Time) ([]Record, error) {
	var all []Record
	start := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, since.Location())
	for day := start; !day.After(until); day = day.AddDate(0, 0, 1) {
		records, err := l.ReadDay(ctx, day)
		if err != nil {
			l.logger.Warn("failed to read daily file, skipping",
				zap.String("date", day.Format(DateLayout)),
				zap.Error(err))
			continue
		}
		all = append(all, records...)
	}
	return all, nil
}

// Tail returns the last n records of today's file.
func (l *Log) Tail(ctx context.Context, n int) ([]Record, error) {
	records, err := l.ReadDay(ctx, l.Now())
	if err != nil {
		return nil, err
	}
	if len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// DailyFiles lists the daily files in the log directory, oldest first.
func (l *Log) DailyFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, "*"+fileSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list event log files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// lock acquires the advisory sidecar lock for path. Exclusive for writers,
// shared for readers. Returns ErrLockTimeout past the bounded wait.
func (l *Log) lock(ctx context.Context, path string, exclusive bool) (func(), error) {
	fl := flock.New(path + lockSuffix)
	lockCtx, cancel := context.WithTimeout(ctx, l.lockWait)
	defer cancel()

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(lockCtx, lockRetryDelay)
	} else {
		ok, err = fl.TryRLockContext(lockCtx, lockRetryDelay)
	}
	if err != nil || !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}
		return nil, fmt.Errorf("failed to lock event log: %w", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			l.logger.Warn("failed to release event log lock", zap.Error(err))
		}
	}, nil
}
