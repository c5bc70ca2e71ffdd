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
// Package eventlog persists append-only per-day JSON-line event files with
// advisory file locking. Every record carries an RFC 3339 timestamp and the
// project envelope; unknown record types are preserved for readers to skip.
package eventlog

import (
	"encoding/json"
	"time"

	"github.com/teradata-labs/switchboard/pkg/project"
)

// Record types discriminating event log entries.
const (
	TypeRoutingRecommendation = "routing_recommendation"
	TypeRequestTracking       = "request_tracking"
	TypeAgentEvent            = "agent_event"
	TypeMetric                = "metric"
)

// Agent lifecycle event names.
const (
	AgentStart = "agent_start"
	AgentStop  = "agent_stop"
)

// Compliance classification values.
const (
	ComplianceFollowed    = "followed"
	ComplianceIgnored     = "ignored"
	ComplianceNoDirective = "no_directive"
	ComplianceUnknown     = "unknown"
)

// Recommendation is the advisory part of a routing recommendation event.
type Recommendation struct {
	Agent      string  `json:"agent,omitempty"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Analysis captures the full routing decision for auditing.
type Analysis struct {
	Decision   string  `json:"decision"`
	Agent      string  `json:"agent,omitempty"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// RoutingRecommendation records the router's advice for one request.
type RoutingRecommendation struct {
	RecordType     string           `json:"record_type"`
	Timestamp      time.Time        `json:"timestamp"`
	RequestHash    string           `json:"request_hash"`
	Recommendation Recommendation   `json:"recommendation"`
	FullAnalysis   Analysis         `json:"full_analysis"`
	Project        *project.Context `json:"project"`
}

// RequestTracking links a recommendation to the agent actually invoked.
type RequestTracking struct {
	RecordType        string            `json:"record_type"`
	Timestamp         time.Time         `json:"timestamp"`
	RequestHash       string            `json:"request_hash,omitempty"`
	RoutingDecision   string            `json:"routing_decision,omitempty"`
	RoutingAgent      string            `json:"routing_agent,omitempty"`
	RoutingConfidence float64           `json:"routing_confidence,omitempty"`
	ActualHandler     string            `json:"actual_handler"` // "agent" | "main"
	AgentInvoked      string            `json:"agent_invoked,omitempty"`
	AgentID           string            `json:"agent_id,omitempty"`
	ComplianceStatus  string            `json:"compliance_status"`
	Project           *project.Context  `json:"project"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// AgentEvent records an agent lifecycle transition.
type AgentEvent struct {
	RecordType  string           `json:"record_type"`
	Event       string           `json:"event"` // agent_start | agent_stop
	Timestamp   time.Time        `json:"timestamp"`
	AgentType   string           `json:"agent_type"`
	AgentID     string           `json:"agent_id,omitempty"`
	ModelTier   string           `json:"model_tier,omitempty"`
	DurationSec float64          `json:"duration_sec,omitempty"`
	Project     *project.Context `json:"project"`
}

// Metric is a free-form counter or gauge sample for the aggregator.
type Metric struct {
	RecordType string           `json:"record_type"`
	Solution   string           `json:"solution"`
	Name       string           `json:"name"`
	Value      float64          `json:"value"`
	Timestamp  time.Time        `json:"timestamp"`
	Project    *project.Context `json:"project"`
}

// Record is one parsed event log line. Raw holds the full JSON object so
// callers can decode the concrete type they care about; record types they do
// not recognise are simply skipped, never rejected.
type Record struct {
	Type string
	Time time.Time
	Raw  json.RawMessage
}

// head is the minimal shape every valid record must have.
type head struct {
	RecordType string    `json:"record_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// Decode unmarshals the record into out.
func (r Record) Decode(out any) error {
	return json.Unmarshal(r.Raw, out)
}

// RoutingRecommendation decodes the record as a routing recommendation.
func (r Record) RoutingRecommendation() (*RoutingRecommendation, bool) {
	if r.Type != TypeRoutingRecommendation {
		return nil, false
	}
	var rec RoutingRecommendation
	if err := r.Decode(&rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// RequestTracking decodes the record as a request tracking event.
func (r Record) RequestTracking() (*RequestTracking, bool) {
	if r.Type != TypeRequestTracking {
		return nil, false
	}
	var rec RequestTracking
	if err := r.Decode(&rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// AgentEvent decodes the record as an agent lifecycle event.
func (r Record) AgentEvent() (*AgentEvent, bool) {
	if r.Type != TypeAgentEvent {
		return nil, false
	}
	var rec AgentEvent
	if err := r.Decode(&rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// Metric decodes the record as a metric sample.
func (r Record) Metric() (*Metric, bool) {
	if r.Type != TypeMetric {
		return nil, false
	}
	var rec Metric
	if err := r.Decode(&rec); err != nil {
		return nil, false
	}
	return &rec, true
}
