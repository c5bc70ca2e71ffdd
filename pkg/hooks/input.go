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
// Package hooks implements the host-facing lifecycle entry points. Every
// hook reads one JSON object from stdin, writes advisory frames to stdout
// (the host injects them into its context) and human-readable lines to
// stderr, and exits 0 no matter what went wrong internally: a broken hook
// must never block the host conversation.
package hooks

import (
	"encoding/json"
	"fmt"
	"io"
)

// maxInputBytes bounds how much stdin a hook will consume.
const maxInputBytes = 1 << 20

// Input is the host-supplied payload. Hooks use only the fields relevant to
// them; unknown fields are ignored.
type Input struct {
	CWD            string  `json:"cwd,omitempty"`
	Prompt         string  `json:"prompt,omitempty"`
	AgentType      string  `json:"agent_type,omitempty"`
	AgentID        string  `json:"agent_id,omitempty"`
	DurationSec    float64 `json:"duration_sec,omitempty"`
	Status         string  `json:"status,omitempty"`
	TranscriptPath string  `json:"transcript_path,omitempty"`
	SessionID      string  `json:"session_id,omitempty"`
	ToolName       string  `json:"tool_name,omitempty"`

	ToolInput json.RawMessage `json:"tool_input,omitempty"`
}

// ReadInput parses the host payload. Empty stdin yields an empty input, not
// an error, because some hosts invoke lifecycle hooks without a body.
func ReadInput(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read hook input: %w", err)
	}
	in := &Input{}
	if len(data) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(data, in); err != nil {
		return nil, fmt.Errorf("failed to parse hook input: %w", err)
	}
	return in, nil
}
