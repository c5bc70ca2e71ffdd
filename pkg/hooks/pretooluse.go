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
package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/project"
)

// PolicyFileName is the per-project tool policy under `.claude`.
const PolicyFileName = "tool-policy.json"

// PolicySchema validates a tool policy file before it is trusted.
const PolicySchema = `{
  "type": "object",
  "properties": {
    "default": {"type": "string", "enum": ["allow", "deny"]},
    "allow": {"type": "array", "items": {"type": "string"}},
    "deny": {"type": "array", "items": {"type": "string"}}
  },
  "additionalProperties": false
}`

// ToolPolicy is a prefix-matched allow/deny list over tool names. The zero
// policy is permissive.
type ToolPolicy struct {
	Default string   `json:"default,omitempty"`
	Allow   []string `json:"allow,omitempty"`
	Deny    []string `json:"deny,omitempty"`
}

// toolVerdict is the stdout reply the host acts on.
type toolVerdict struct {
	Decision string `json:"decision"` // "allow" | "deny"
	Reason   string `json:"reason,omitempty"`
}

// PreToolUse evaluates the project tool policy against the tool the host is
// about to run and writes the verdict to stdout. Missing or invalid policy
// files degrade to the permissive default.
func (d *Dispatcher) PreToolUse(ctx context.Context, in *Input) error {
	env, err := d.resolve(in.CWD)
	if err != nil {
		return err
	}

	policy, err := LoadToolPolicy(env.proj)
	if err != nil {
		d.logger.Warn("invalid tool policy, defaulting to allow", zap.Error(err))
		policy = &ToolPolicy{}
	}

	verdict := policy.Evaluate(in.ToolName)
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to serialise tool verdict: %w", err)
	}
	fmt.Fprintln(d.stdout, string(payload))
	if verdict.Decision == "deny" {
		fmt.Fprintf(d.stderr, "switchboard: denied tool %s: %s\n", in.ToolName, verdict.Reason)
	}
	return nil
}

// LoadToolPolicy reads and schema-validates the project's policy file. A
// missing file yields the permissive zero policy.
func LoadToolPolicy(proj *project.Context) (*ToolPolicy, error) {
	if proj.Root == "" {
		return &ToolPolicy{}, nil
	}
	path := filepath.Join(proj.Root, project.MarkerDir, PolicyFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ToolPolicy{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tool policy: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(PolicySchema),
		gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to validate tool policy: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("tool policy %s violates schema: %s", path, strings.Join(details, "; "))
	}

	var policy ToolPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse tool policy: %w", err)
	}
	return &policy, nil
}

// Evaluate applies the policy to one tool name. Deny prefixes win over
// allow prefixes; unmatched tools get the default, which is allow unless
// the policy says otherwise.
func (p *ToolPolicy) Evaluate(toolName string) toolVerdict {
	for _, prefix := range p.Deny {
		if strings.HasPrefix(toolName, prefix) {
			return toolVerdict{Decision: "deny", Reason: fmt.Sprintf("matches deny rule %q", prefix)}
		}
	}
	for _, prefix := range p.Allow {
		if strings.HasPrefix(toolName, prefix) {
			return toolVerdict{Decision: "allow"}
		}
	}
	if p.Default == "deny" {
		return toolVerdict{Decision: "deny", Reason: "policy default is deny"}
	}
	return toolVerdict{Decision: "allow"}
}
