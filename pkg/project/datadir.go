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
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind names a per-project data subdirectory.
type Kind string

// Recognised data directory kinds.
const (
	KindState   Kind = "state"
	KindMetrics Kind = "metrics"
	KindLogs    Kind = "logs"
	KindMemory  Kind = "memory"
	KindCache   Kind = "cache"
)

// Kinds lists every recognised data directory kind.
func Kinds() []Kind {
	return []Kind{KindState, KindMetrics, KindLogs, KindMemory, KindCache}
}

const (
	// EnvDataDir overrides the data root, mainly for tests.
	EnvDataDir = "SWITCHBOARD_DATA_DIR"

	// pluginNamespace is the subdirectory of ~/.claude that holds all
	// switchboard state.
	pluginNamespace = "switchboard"

	dirMode  = 0o700
	fileMode = 0o600
)

// DataRoot returns the switchboard data directory.
//
// Priority:
// 1. SWITCHBOARD_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.claude/switchboard (default)
//
// The returned path is always absolute. Tilde (~) in SWITCHBOARD_DATA_DIR is
// expanded to the user's home directory; relative paths are made absolute.
func DataRoot() string {
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		return expandPath(dataDir)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return filepath.Join(".claude", pluginNamespace)
	}
	return filepath.Join(homeDir, ".claude", pluginNamespace)
}

// DataDir resolves (and creates on demand, mode 0700) the data directory of
// the given kind for a project. No two projects share a data directory.
func DataDir(ctx *Context, kind Kind) (string, error) {
	dir := filepath.Join(DataRoot(), "projects", ctx.ID, string(kind))
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", kind, err)
	}
	return dir, nil
}

// UserClaudeDir returns ~/.claude, the user-level configuration directory.
func UserClaudeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return MarkerDir
	}
	return filepath.Join(homeDir, MarkerDir)
}

// expandPath expands ~ and resolves to an absolute path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
