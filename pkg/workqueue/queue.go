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
package workqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/project"
)

const (
	// FileName is the queue file under the project state directory.
	FileName = "work-queue.json"

	lockWait       = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
	fileMode       = 0o600

	// tmpGracePeriod is how old an orphaned temp file must be before a
	// writer sweeps it (a killed process may leave one behind).
	tmpGracePeriod = time.Minute

	// completedHistoryWindow bounds how long completed items are kept for
	// the adaptive WIP computation.
	completedHistoryWindow = 48 * time.Hour
)

// ErrLockTimeout is returned when the queue lock cannot be acquired in time.
var ErrLockTimeout = errors.New("work queue lock timeout")

// Queue persists and mutates the work queue of one project.
type Queue struct {
	path     string
	wipLimit int
	logger   *zap.Logger

	// Now supplies timestamps; overridable in tests.
	Now func() time.Time
}

// Open resolves the state directory for a project and returns its queue.
func Open(ctx *project.Context, wipLimit int, logger *zap.Logger) (*Queue, error) {
	dir, err := project.DataDir(ctx, project.KindState)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory: %w", err)
	}
	return New(filepath.Join(dir, FileName), wipLimit, logger), nil
}

// New creates a queue over an explicit file path. wipLimit seeds new state
// files; existing state keeps its persisted limit.
func New(path string, wipLimit int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if wipLimit <= 0 {
		wipLimit = project.DefaultWIPLimit
	}
	return &Queue{path: path, wipLimit: wipLimit, logger: logger, Now: time.Now}
}

// Enqueue adds a new item in status queued and returns it with its id set.
func (q *Queue) Enqueue(ctx context.Context, item Item) (*Item, error) {
	var out *Item
	err := q.mutate(ctx, func(state *State) error {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if q.findAnywhere(state, item.ID) != nil {
			return fmt.Errorf("work item already exists: %s", item.ID)
		}
		item.Status = StatusQueued
		item.StartedAt = nil
		item.CompletedAt = nil
		state.Queued = append(state.Queued, item)
		out = &item
		return nil
	})
	return out, err
}

// StartNext promotes the best eligible queued item to in_progress and
// returns it. It returns (nil, nil) when the WIP limit is reached or no
// queued item has all dependencies completed.
func (q *Queue) StartNext(ctx context.Context) (*Item, error) {
	var out *Item
	err := q.mutate(ctx, func(state *State) error {
		if len(state.Active) >= state.WIPLimit {
			return nil
		}
		idx := q.selectNext(state)
		if idx < 0 {
			return nil
		}
		item := state.Queued[idx]
		state.Queued = append(state.Queued[:idx], state.Queued[idx+1:]...)
		now := q.Now()
		item.Status = StatusInProgress
		item.StartedAt = &now
		state.Active = append(state.Active, item)
		out = &item
		return nil
	})
	return out, err
}

// Complete transitions an in_progress item to completed.
func (q *Queue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, StatusCompleted, "")
}

// Fail transitions an in_progress item to failed.
func (q *Queue) Fail(ctx context.Context, id, reason string) error {
	return q.finish(ctx, id, StatusFailed, reason)
}

// Status returns the current persisted state.
func (q *Queue) Status(ctx context.Context) (*State, error) {
	unlock, err := q.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return q.loadLocked()
}

// finish implements the shared completed/failed transition.
func (q *Queue) finish(ctx context.Context, id string, to Status, reason string) error {
	return q.mutate(ctx, func(state *State) error {
		for i, item := range state.Active {
			if item.ID != id {
				continue
			}
			state.Active = append(state.Active[:i], state.Active[i+1:]...)
			now := q.Now()
			item.Status = to
			item.CompletedAt = &now
			item.FailureReason = reason
			if to == StatusCompleted {
				state.CompletedIDs = appendUnique(state.CompletedIDs, item.ID)
			}
			state.Completed = trimHistory(append(state.Completed, item), now)
			return nil
		}
		// Not active: report the precise violated transition.
		if item := q.findAnywhere(state, id); item != nil {
			return &TransitionError{ID: id, From: item.Status, To: to}
		}
		return &NotFoundError{ID: id}
	})
}

// selectNext picks the highest-priority eligible queued item; ties go to the
// item that unblocks the most queued dependents, then to the smaller id.
func (q *Queue) selectNext(state *State) int {
	completed := map[string]bool{}
	for _, id := range state.CompletedIDs {
		completed[id] = true
	}

	eligible := func(item Item) bool {
		for _, dep := range item.Dependencies {
			if !completed[dep] {
				return false
			}
		}
		return true
	}

	unblocks := func(id string) int {
		n := 0
		for _, other := range state.Queued {
			for _, dep := range other.Dependencies {
				if dep == id {
					n++
					break
				}
			}
		}
		return n
	}

	best := -1
	for i, item := range state.Queued {
		if !eligible(item) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := state.Queued[best]
		switch {
		case item.Priority != b.Priority:
			if item.Priority > b.Priority {
				best = i
			}
		case unblocks(item.ID) != unblocks(b.ID):
			if unblocks(item.ID) > unblocks(b.ID) {
				best = i
			}
		case item.ID < b.ID:
			best = i
		}
	}
	return best
}

// findAnywhere looks an id up across all item lists of a state.
func (q *Queue) findAnywhere(state *State, id string) *Item {
	if state == nil || id == "" {
		return nil
	}
	for _, list := range [][]Item{state.Active, state.Queued, state.Completed} {
		for i := range list {
			if list[i].ID == id {
				return &list[i]
			}
		}
	}
	return nil
}

// mutate runs fn on the loaded state under the exclusive lock and persists
// the result atomically unless fn returns an error.
func (q *Queue) mutate(ctx context.Context, fn func(*State) error) error {
	unlock, err := q.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := q.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}
	return q.storeLocked(state)
}

// loadLocked reads the state file; missing file yields fresh state, an
// unreadable one yields CorruptStateError and is never overwritten.
func (q *Queue) loadLocked() (*State, error) {
	data, err := os.ReadFile(q.path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{WIPLimit: q.wipLimit}, nil
	}
	if err != nil {
		return nil, &CorruptStateError{Path: q.path, Err: err}
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &CorruptStateError{Path: q.path, Err: err}
	}
	if state.WIPLimit <= 0 {
		state.WIPLimit = q.wipLimit
	}
	return &state, nil
}

// storeLocked writes the state to a sibling temp file (0600) and renames it
// over the live file, then sweeps any orphaned temp files past the grace
// period.
func (q *Queue) storeLocked(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialise work queue: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.tmp", q.path, os.Getpid())
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return fmt.Errorf("failed to write work queue: %w", err)
	}
	if err := os.Rename(tmp, q.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace work queue: %w", err)
	}
	q.sweepStaleTemps()
	return nil
}

// sweepStaleTemps removes temp files abandoned by killed writers.
func (q *Queue) sweepStaleTemps() {
	matches, err := filepath.Glob(q.path + ".*.tmp")
	if err != nil {
		return
	}
	cutoff := q.Now().Add(-tmpGracePeriod)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err == nil {
			q.logger.Warn("removed stale work queue temp file", zap.String("path", path))
		}
	}
}

func (q *Queue) lock(ctx context.Context) (func(), error) {
	fl := flock.New(q.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, q.path)
		}
		return nil, fmt.Errorf("failed to lock work queue: %w", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			q.logger.Warn("failed to release work queue lock", zap.Error(err))
		}
	}, nil
}

// trimHistory drops completed items older than the history window.
func trimHistory(items []Item, now time.Time) []Item {
	cutoff := now.Add(-completedHistoryWindow)
	out := items[:0]
	for _, item := range items {
		if item.CompletedAt != nil && item.CompletedAt.After(cutoff) {
			out = append(out, item)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	ids = append(ids, id)
	sort.Strings(ids)
	return ids
}

// Summarize renders a short human-readable queue overview for briefings.
func Summarize(state *State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "work queue: %d active / %d queued (wip limit %d)",
		len(state.Active), len(state.Queued), state.WIPLimit)
	for _, item := range state.Active {
		fmt.Fprintf(&b, "\n  [active] %s: %s", item.ID, item.Description)
	}
	for _, item := range state.Queued {
		fmt.Fprintf(&b, "\n  [queued] p%d %s: %s", item.Priority, item.ID, item.Description)
	}
	return b.String()
}
