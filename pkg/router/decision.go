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
// Package router maps a natural-language request to a routing decision: a
// mechanical escalation checklist followed by an agent matcher with a
// confidence threshold. The router never panics and never blocks unbounded;
// every failure mode degrades to an ESCALATE decision with a diagnostic
// reason.
package router

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Decision outcomes.
const (
	DecisionDirect   = "DIRECT"
	DecisionEscalate = "ESCALATE"
)

// MaxRequestLen is the longest request the router accepts, after stripping.
const MaxRequestLen = 10_000

// Decision is the immutable result of routing one request. Agent is empty
// exactly when the decision is ESCALATE with no preferred agent; it
// serialises as JSON null in that case.
type Decision struct {
	Decision    string
	Agent       string
	Reason      string
	Confidence  float64
	RequestHash string
}

type decisionJSON struct {
	Decision    string  `json:"decision"`
	Agent       *string `json:"agent"`
	Reason      string  `json:"reason"`
	Confidence  float64 `json:"confidence"`
	RequestHash string  `json:"request_hash"`
}

// MarshalJSON emits a null agent when none was selected.
func (d Decision) MarshalJSON() ([]byte, error) {
	out := decisionJSON{
		Decision:    d.Decision,
		Reason:      d.Reason,
		Confidence:  d.Confidence,
		RequestHash: d.RequestHash,
	}
	if d.Agent != "" {
		out.Agent = &d.Agent
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts a null or missing agent.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var in decisionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	d.Decision = in.Decision
	d.Reason = in.Reason
	d.Confidence = in.Confidence
	d.RequestHash = in.RequestHash
	d.Agent = ""
	if in.Agent != nil {
		d.Agent = *in.Agent
	}
	return nil
}

// RequestHash returns the first 16 hex digits of SHA-256(text), used to
// correlate routing events across the pipeline.
func RequestHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// InvalidInputError is raised for empty or oversized requests. Hooks swallow
// it into an ESCALATE decision; the CLI maps it to exit code 2.
type InvalidInputError struct {
	Detail string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Detail)
}
