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
// Package compliance joins routing recommendations to the agents actually
// invoked. The host does not propagate a request id into the agent-start
// hook, so the join is temporal: the most recent recommendation within a
// short window is assumed to belong to the invocation. The window is the
// primary source of "unknown" classifications.
package compliance

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/eventlog"
	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/router"
)

const (
	// Window is how far back a recommendation may be and still be joined to
	// an agent invocation.
	Window = 60 * time.Second

	// tailLines bounds how much of today's log the tracker scans.
	tailLines = 200
)

// Tracker classifies agent invocations against recent routing advice.
type Tracker struct {
	log     *eventlog.Log
	project *project.Context
	stderr  io.Writer
	logger  *zap.Logger

	// Now supplies the invocation timestamp; overridable in tests.
	Now func() time.Time
}

// New creates a tracker over a project's event log. Warnings about ignored
// recommendations go to stderr so the user sees them in the terminal.
func New(log *eventlog.Log, proj *project.Context, stderr io.Writer, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Tracker{log: log, project: proj, stderr: stderr, logger: logger, Now: time.Now}
}

// TrackInvocation classifies the invocation of agentType against the most
// recent routing recommendation and appends a request_tracking event. The
// returned event reports what was recorded.
func (t *Tracker) TrackInvocation(ctx context.Context, agentType, agentID string) (*eventlog.RequestTracking, error) {
	now := t.Now()
	rec := t.latestRecommendation(ctx, now)

	tracking := &eventlog.RequestTracking{
		RecordType:    eventlog.TypeRequestTracking,
		Timestamp:     now,
		ActualHandler: "agent",
		AgentInvoked:  agentType,
		AgentID:       agentID,
		Project:       t.project,
	}

	switch {
	case rec == nil:
		tracking.ComplianceStatus = eventlog.ComplianceUnknown
	default:
		tracking.RequestHash = rec.RequestHash
		tracking.RoutingDecision = rec.FullAnalysis.Decision
		tracking.RoutingAgent = rec.Recommendation.Agent
		tracking.RoutingConfidence = rec.Recommendation.Confidence
		tracking.ComplianceStatus = classify(rec, agentType)
	}

	if tracking.ComplianceStatus == eventlog.ComplianceIgnored {
		fmt.Fprintf(t.stderr,
			"switchboard: routing recommendation ignored: recommended %q, invoked %q\n",
			recommendedName(rec), agentType)
	}

	if err := t.log.Append(ctx, tracking); err != nil {
		return nil, fmt.Errorf("failed to record request tracking: %w", err)
	}
	return tracking, nil
}

// TrackDirectHandling records that the main conversation handled a request
// itself. An outstanding direct recommendation counts against compliance.
func (t *Tracker) TrackDirectHandling(ctx context.Context) (*eventlog.RequestTracking, error) {
	now := t.Now()
	rec := t.latestRecommendation(ctx, now)

	tracking := &eventlog.RequestTracking{
		RecordType:    eventlog.TypeRequestTracking,
		Timestamp:     now,
		ActualHandler: "main",
		Project:       t.project,
	}
	switch {
	case rec == nil:
		tracking.ComplianceStatus = eventlog.ComplianceNoDirective
	case rec.Recommendation.Agent == "":
		tracking.ComplianceStatus = eventlog.ComplianceFollowed
	default:
		tracking.RequestHash = rec.RequestHash
		tracking.RoutingDecision = rec.FullAnalysis.Decision
		tracking.RoutingAgent = rec.Recommendation.Agent
		tracking.ComplianceStatus = eventlog.ComplianceIgnored
	}

	if err := t.log.Append(ctx, tracking); err != nil {
		return nil, fmt.Errorf("failed to record request tracking: %w", err)
	}
	return tracking, nil
}

// latestRecommendation scans the tail of today's log for the most recent
// routing recommendation inside the window. Read errors degrade to "none
// found": the tracker must never block an agent start.
func (t *Tracker) latestRecommendation(ctx context.Context, now time.Time) *eventlog.RoutingRecommendation {
	records, err := t.log.Tail(ctx, tailLines)
	if err != nil {
		t.logger.Warn("failed to read event log for compliance join", zap.Error(err))
		return nil
	}

	var latest *eventlog.RoutingRecommendation
	for _, record := range records {
		rec, ok := record.RoutingRecommendation()
		if !ok {
			continue
		}
		age := now.Sub(rec.Timestamp)
		if age < 0 || age > Window {
			continue
		}
		if latest == nil || rec.Timestamp.After(latest.Timestamp) {
			latest = rec
		}
	}
	return latest
}

// classify applies the compliance table for an agent invocation.
func classify(rec *eventlog.RoutingRecommendation, agentType string) string {
	recommended := rec.Recommendation.Agent
	switch rec.FullAnalysis.Decision {
	case router.DecisionEscalate:
		// Any escalation path counts unless a specific agent was named and
		// a different one ran.
		if recommended == "" || recommended == agentType {
			return eventlog.ComplianceFollowed
		}
		return eventlog.ComplianceIgnored
	case router.DecisionDirect:
		if recommended == agentType {
			return eventlog.ComplianceFollowed
		}
		return eventlog.ComplianceIgnored
	default:
		return eventlog.ComplianceUnknown
	}
}

func recommendedName(rec *eventlog.RoutingRecommendation) string {
	if rec == nil || rec.Recommendation.Agent == "" {
		return "main conversation"
	}
	return rec.Recommendation.Agent
}
