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
// Package registry enumerates the available agents. Definitions come from
// YAML manifests under the user and project `.claude/agents` directories,
// layered over a small built-in set; a manifest with a known id replaces the
// built-in definition.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Model tiers, cheapest first.
const (
	TierHaiku  = "haiku"
	TierSonnet = "sonnet"
	TierOpus   = "opus"

	// TierUnknown is reported for agent ids the registry cannot resolve.
	TierUnknown = "unknown"
)

// AgentsDirName is the manifest directory name under `.claude`.
const AgentsDirName = "agents"

// Agent is a read-only agent definition.
type Agent struct {
	ID          string   `yaml:"id" json:"id"`
	ModelTier   string   `yaml:"model_tier" json:"model_tier"`
	Description string   `yaml:"description" json:"description"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
}

// Registry holds the loaded agent definitions.
type Registry struct {
	agents map[string]Agent
	logger *zap.Logger
}

// Load builds a registry from the built-in agents plus manifests found under
// userDir and projectDir (either may be empty). Project manifests win over
// user manifests, which win over builtins. Manifest errors are logged and the
// offending file skipped; loading never fails outright.
func Load(userDir, projectDir string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{agents: map[string]Agent{}, logger: logger}

	for _, a := range Builtins() {
		r.agents[a.ID] = a
	}
	for _, dir := range []string{userDir, projectDir} {
		if dir == "" {
			continue
		}
		r.loadDir(dir)
	}
	return r
}

// FromAgents builds a registry from explicit definitions, mainly for tests.
func FromAgents(agents []Agent, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{agents: map[string]Agent{}, logger: logger}
	for _, a := range agents {
		a.ModelTier = normalizeTier(a.ModelTier)
		r.agents[a.ID] = a
	}
	return r
}

// loadDir reads every *.yaml / *.yml manifest in dir.
func (r *Registry) loadDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		agent, err := loadManifest(path)
		if err != nil {
			r.logger.Warn("skipping invalid agent manifest",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		r.agents[agent.ID] = *agent
	}
}

// loadManifest parses and validates one manifest file.
func loadManifest(path string) (*Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var agent Agent
	if err := yaml.Unmarshal(data, &agent); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if agent.ID == "" {
		return nil, fmt.Errorf("manifest missing agent id")
	}
	agent.ModelTier = normalizeTier(agent.ModelTier)
	for i, kw := range agent.Keywords {
		agent.Keywords[i] = strings.ToLower(strings.TrimSpace(kw))
	}
	return &agent, nil
}

// List returns all agents ordered by id.
func (r *Registry) List() []Agent {
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get looks up an agent by id.
func (r *Registry) Get(id string) (Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// ModelTier resolves the tier for an agent id. Unknown ids resolve to
// "unknown" with a warning.
func (r *Registry) ModelTier(id string) string {
	if a, ok := r.agents[id]; ok {
		return a.ModelTier
	}
	r.logger.Warn("unknown agent id", zap.String("agent_id", id))
	return TierUnknown
}

// MechanicalTier returns the cheapest-tier agent, ties broken by id. Used by
// the router's explicit-path fast route. Returns false when the registry is
// empty.
func (r *Registry) MechanicalTier() (Agent, bool) {
	agents := r.List()
	if len(agents) == 0 {
		return Agent{}, false
	}
	best := agents[0]
	for _, a := range agents[1:] {
		if tierRank(a.ModelTier) < tierRank(best.ModelTier) {
			best = a
		}
	}
	return best, true
}

func tierRank(tier string) int {
	switch tier {
	case TierHaiku:
		return 0
	case TierSonnet:
		return 1
	case TierOpus:
		return 2
	default:
		return 3
	}
}

func normalizeTier(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case TierHaiku:
		return TierHaiku
	case TierSonnet:
		return TierSonnet
	case TierOpus:
		return TierOpus
	default:
		return TierUnknown
	}
}
