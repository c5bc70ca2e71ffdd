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
// Package cache memoises routing results per project. Each entry lives in
// its own file keyed by a hash of the request text and context hash, with an
// advisory lock sidecar, so concurrent hooks contend only on the entry they
// touch. Entries expire by TTL and whenever a declared dependency file is
// modified after the entry was written.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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
	lockWait       = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
	fileMode       = 0o600
	fileSuffix     = ".json"
)

// ErrLockTimeout is returned when an entry lock cannot be acquired in time.
var ErrLockTimeout = errors.New("cache lock timeout")

// Entry is one memoised routing result.
type Entry struct {
	Key         string          `json:"key"`
	RequestText string          `json:"request_text"`
	AgentUsed   string          `json:"agent_used,omitempty"`
	Result      json.RawMessage `json:"result"`
	Timestamp   time.Time       `json:"timestamp"`
	ContextHash string          `json:"context_hash,omitempty"`
	TTLDays     int             `json:"ttl_days"`
	HitCount    int             `json:"hit_count"`

	// Dependencies are files whose modification invalidates the entry.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Store reads and writes the cache entries of one project.
type Store struct {
	dir     string
	ttlDays int
	logger  *zap.Logger

	// Now supplies timestamps; overridable in tests.
	Now func() time.Time
}

// Open resolves the cache directory for a project and returns its store.
func Open(ctx *project.Context, ttlDays int, logger *zap.Logger) (*Store, error) {
	dir, err := project.DataDir(ctx, project.KindCache)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return New(dir, ttlDays, logger), nil
}

// New creates a store over an existing directory.
func New(dir string, ttlDays int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttlDays <= 0 {
		ttlDays = project.DefaultCacheTTLDays
	}
	return &Store{dir: dir, ttlDays: ttlDays, logger: logger, Now: time.Now}
}

// Key derives the entry key from the request text and context hash.
func Key(requestText, contextHash string) string {
	sum := sha256.Sum256([]byte(requestText + contextHash))
	return hex.EncodeToString(sum[:])[:16]
}

// Get returns a valid cached entry or (nil, nil) on miss. A hit increments
// the entry's hit count in place; expired and stale entries are removed.
func (s *Store) Get(ctx context.Context, requestText, contextHash string) (*Entry, error) {
	key := Key(requestText, contextHash)
	path := s.pathFor(key)

	unlock, err := s.lock(ctx, path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("removing corrupt cache entry", zap.String("path", path))
		os.Remove(path)
		return nil, nil
	}
	if !s.valid(&entry) {
		os.Remove(path)
		return nil, nil
	}

	entry.HitCount++
	if err := s.writeLocked(path, &entry); err != nil {
		s.logger.Warn("failed to record cache hit", zap.Error(err))
	}
	return &entry, nil
}

// Put stores a routing result, overwriting any previous entry for the key.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	if entry.Key == "" {
		entry.Key = Key(entry.RequestText, entry.ContextHash)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.Now()
	}
	if entry.TTLDays <= 0 {
		entry.TTLDays = s.ttlDays
	}
	path := s.pathFor(entry.Key)

	unlock, err := s.lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()
	return s.writeLocked(path, &entry)
}

// Purge removes every invalid entry and returns how many were deleted.
func (s *Store) Purge(ctx context.Context) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+fileSuffix))
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}
	removed := 0
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry Entry
		if json.Unmarshal(data, &entry) == nil && s.valid(&entry) {
			continue
		}
		if os.Remove(path) == nil {
			os.Remove(path + ".lock")
			removed++
		}
	}
	return removed, nil
}

// valid reports whether an entry is inside its TTL and none of its
// dependencies changed after it was written.
func (s *Store) valid(entry *Entry) bool {
	ttl := time.Duration(entry.TTLDays) * 24 * time.Hour
	if s.Now().After(entry.Timestamp.Add(ttl)) {
		return false
	}
	for _, dep := range entry.Dependencies {
		info, err := os.Stat(dep)
		if err != nil {
			// A vanished dependency invalidates too.
			return false
		}
		if info.ModTime().After(entry.Timestamp) {
			return false
		}
	}
	return true
}

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.dir, key+fileSuffix)
}

// writeLocked persists an entry atomically; callers hold the entry lock.
func (s *Store) writeLocked(path string, entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialise cache entry: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace cache entry: %w", err)
	}
	return nil
}

func (s *Store) lock(ctx context.Context, path string) (func(), error) {
	fl := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}
		return nil, fmt.Errorf("failed to lock cache entry: %w", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release cache entry lock", zap.Error(err))
		}
	}, nil
}
