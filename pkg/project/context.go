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
// Package project derives project identity from a working directory and
// resolves per-project data directories and cascaded configuration.
//
// A project is the nearest ancestor of the working directory that contains a
// `.claude` marker directory. When no marker exists, the sentinel identity
// "global" is used so hooks still have somewhere to write.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	// MarkerDir is the directory name that marks a project root.
	MarkerDir = ".claude"

	// GlobalID is the sentinel identity used when no project root is found.
	GlobalID = "global"

	// EnvProjectRoot optionally overrides project detection. It must name an
	// existing absolute path containing a `.claude` directory; anything else
	// is rejected with a warning and auto-detection is used instead.
	EnvProjectRoot = "CLAUDE_PROJECT_ROOT"
)

// Context identifies the project a hook invocation operates on.
type Context struct {
	// ID is the first 16 hex digits of SHA-256(Root), or "global".
	ID string `json:"id"`
	// Root is the absolute project root path, empty for the global project.
	Root string `json:"root"`
	// Name is the basename of Root, or "global".
	Name string `json:"name"`
}

// Global returns the sentinel context used when no project root exists.
func Global() *Context {
	return &Context{ID: GlobalID, Root: "", Name: GlobalID}
}

// Detect resolves the project context for cwd.
//
// The CLAUDE_PROJECT_ROOT override takes precedence over the ancestor walk
// when it passes validation. Detection never fails: the worst case is the
// global sentinel.
func Detect(cwd string, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := os.Getenv(EnvProjectRoot); override != "" {
		if root, err := validateOverride(override); err != nil {
			logger.Warn("ignoring project root override",
				zap.String("override", override),
				zap.Error(err))
		} else {
			logger.Info("using project root override", zap.String("root", root))
			return contextFor(root)
		}
	}

	root, ok := findRoot(cwd)
	if !ok {
		return Global()
	}
	return contextFor(root)
}

// contextFor builds a Context for a known project root.
func contextFor(root string) *Context {
	return &Context{
		ID:   ProjectID(root),
		Root: root,
		Name: filepath.Base(root),
	}
}

// ProjectID derives the stable project identity for a root path.
// The same absolute path always yields the same id.
func ProjectID(root string) string {
	if root == "" || root == GlobalID {
		return GlobalID
	}
	sum := sha256.Sum256([]byte(root))
	return hex.EncodeToString(sum[:])[:16]
}

// findRoot walks ancestors of cwd looking for a child `.claude` directory.
func findRoot(cwd string) (string, bool) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return "", false
	}
	for {
		marker := filepath.Join(dir, MarkerDir)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// validateOverride checks a CLAUDE_PROJECT_ROOT value. The path must be
// absolute, must exist, and must contain a `.claude` directory. Cleaning the
// path first defuses `..` traversal segments.
func validateOverride(override string) (string, error) {
	if !filepath.IsAbs(override) {
		return "", fmt.Errorf("override path is not absolute: %s", override)
	}
	root := filepath.Clean(override)
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("override path does not exist: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("override path is not a directory: %s", root)
	}
	marker, err := os.Stat(filepath.Join(root, MarkerDir))
	if err != nil || !marker.IsDir() {
		return "", fmt.Errorf("override path has no %s directory: %s", MarkerDir, root)
	}
	return root, nil
}
