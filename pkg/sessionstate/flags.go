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
// Package sessionstate keeps per-project, per-session one-shot flags.
// Flags live in state/session-flags.json, are cleared at session start, and
// are mutated load-modify-store under an exclusive advisory lock so
// concurrent hooks cannot double-fire a one-shot warning.
package sessionstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/project"
)

const (
	// FileName is the flags file under the project state directory.
	FileName = "session-flags.json"

	lockWait       = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
	fileMode       = 0o600
)

// ErrLockTimeout mirrors the event log's bounded-wait behaviour.
var ErrLockTimeout = errors.New("session flags lock timeout")

// Flags is the persisted per-session flag set. Unknown keys written by newer
// versions survive a load/store cycle via Extra.
type Flags struct {
	ContextThresholdWarned bool `json:"context_threshold_warned"`

	Extra map[string]bool `json:"extra,omitempty"`
}

// Store reads and writes the session flags of one project.
type Store struct {
	path   string
	logger *zap.Logger
}

// Open resolves the state directory for a project and returns its store.
func Open(ctx *project.Context, logger *zap.Logger) (*Store, error) {
	dir, err := project.DataDir(ctx, project.KindState)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory: %w", err)
	}
	return New(filepath.Join(dir, FileName), logger), nil
}

// New creates a store over an explicit file path.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the current flags. A missing or corrupt file yields zero flags:
// the worst outcome of losing flag state is one repeated warning.
func (s *Store) Load(ctx context.Context) (*Flags, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.loadLocked(), nil
}

// Clear resets all flags, called at session start.
func (s *Store) Clear(ctx context.Context) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return s.storeLocked(&Flags{})
}

// MarkContextWarned sets the context-threshold flag and reports whether this
// call performed the false→true transition. The one-warning-per-session
// contract rests on exactly one caller seeing first == true.
func (s *Store) MarkContextWarned(ctx context.Context) (first bool, err error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	flags := s.loadLocked()
	if flags.ContextThresholdWarned {
		return false, nil
	}
	flags.ContextThresholdWarned = true
	if err := s.storeLocked(flags); err != nil {
		return false, err
	}
	return true, nil
}

// loadLocked reads flags without taking the lock; callers hold it.
func (s *Store) loadLocked() *Flags {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return &Flags{}
	}
	var flags Flags
	if err := json.Unmarshal(data, &flags); err != nil {
		s.logger.Warn("corrupt session flags file, resetting",
			zap.String("path", s.path),
			zap.Error(err))
		return &Flags{}
	}
	return &flags
}

// storeLocked writes flags atomically: temp file, then rename.
func (s *Store) storeLocked(flags *Flags) error {
	data, err := json.MarshalIndent(flags, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialise session flags: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return fmt.Errorf("failed to write session flags: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session flags: %w", err)
	}
	return nil
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	fl := flock.New(s.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, s.path)
		}
		return nil, fmt.Errorf("failed to lock session flags: %w", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release session flags lock", zap.Error(err))
		}
	}, nil
}
