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
// Package metrics computes reports over a project's event log. Reports are
// pure functions of the log: nothing aggregated is persisted separately, so
// a report can always be recomputed from the daily files.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/eventlog"
)

// Aggregator reads a project's event log and computes reports.
type Aggregator struct {
	log    *eventlog.Log
	logger *zap.Logger
}

// New creates an aggregator over an event log.
func New(log *eventlog.Log, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{log: log, logger: logger}
}

// Activity is the per-range activity summary shared by daily and weekly
// reports.
type Activity struct {
	Since time.Time
	Until time.Time

	Recommendations int
	DirectRoutes    int
	Escalations     int
	AgentStarts     int
	AgentStops      int

	// StartsByAgent counts agent_start events per agent type.
	StartsByAgent map[string]int

	// MetricTotals sums metric samples keyed by "solution/name".
	MetricTotals map[string]float64

	Compliance ComplianceStats
}

// ComplianceStats summarises request tracking over a range. Unknown
// classifications are surfaced separately rather than folded into the rate:
// they are an artefact of the temporal join, not a routing outcome.
type ComplianceStats struct {
	TotalRecommendations int
	Followed             int
	Ignored              int
	NoDirective          int
	Unknown              int

	// ByAgent breaks followed/ignored down by the recommended agent.
	ByAgent map[string]AgentCompliance
}

// AgentCompliance is the per-recommended-agent compliance breakdown.
type AgentCompliance struct {
	Followed int
	Ignored  int
}

// Rate is followed / total recommendations, zero when nothing was
// recommended.
func (c ComplianceStats) Rate() float64 {
	if c.TotalRecommendations == 0 {
		return 0
	}
	return float64(c.Followed) / float64(c.TotalRecommendations)
}

// Daily computes the activity summary for a single date.
func (a *Aggregator) Daily(ctx context.Context, date time.Time) (*Activity, error) {
	since := startOfDay(date)
	return a.activity(ctx, since, since.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

// Weekly computes the activity summary for the ISO week containing date.
func (a *Aggregator) Weekly(ctx context.Context, date time.Time) (*Activity, error) {
	since := startOfISOWeek(date)
	return a.activity(ctx, since, since.AddDate(0, 0, 7).Add(-time.Nanosecond))
}

// Compliance computes the compliance statistics for an arbitrary range.
func (a *Aggregator) Compliance(ctx context.Context, since, until time.Time) (*ComplianceStats, error) {
	activity, err := a.activity(ctx, since, until)
	if err != nil {
		return nil, err
	}
	return &activity.Compliance, nil
}

// activity folds every record in the range into one summary.
func (a *Aggregator) activity(ctx context.Context, since, until time.Time) (*Activity, error) {
	records, err := a.log.ReadRange(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	out := &Activity{
		Since:         since,
		Until:         until,
		StartsByAgent: map[string]int{},
		MetricTotals:  map[string]float64{},
		Compliance:    ComplianceStats{ByAgent: map[string]AgentCompliance{}},
	}

	for _, record := range records {
		if record.Time.Before(since) || record.Time.After(until) {
			continue
		}
		switch record.Type {
		case eventlog.TypeRoutingRecommendation:
			rec, ok := record.RoutingRecommendation()
			if !ok {
				continue
			}
			out.Recommendations++
			out.Compliance.TotalRecommendations++
			if rec.Recommendation.Agent != "" {
				out.DirectRoutes++
			} else {
				out.Escalations++
			}
		case eventlog.TypeRequestTracking:
			tracking, ok := record.RequestTracking()
			if !ok {
				continue
			}
			a.foldTracking(out, tracking)
		case eventlog.TypeAgentEvent:
			event, ok := record.AgentEvent()
			if !ok {
				continue
			}
			switch event.Event {
			case eventlog.AgentStart:
				out.AgentStarts++
				out.StartsByAgent[event.AgentType]++
			case eventlog.AgentStop:
				out.AgentStops++
			}
		case eventlog.TypeMetric:
			sample, ok := record.Metric()
			if !ok {
				continue
			}
			out.MetricTotals[sample.Solution+"/"+sample.Name] += sample.Value
		}
	}
	return out, nil
}

func (a *Aggregator) foldTracking(out *Activity, tracking *eventlog.RequestTracking) {
	c := &out.Compliance
	switch tracking.ComplianceStatus {
	case eventlog.ComplianceFollowed:
		c.Followed++
	case eventlog.ComplianceIgnored:
		c.Ignored++
	case eventlog.ComplianceNoDirective:
		c.NoDirective++
	case eventlog.ComplianceUnknown:
		c.Unknown++
	default:
		a.logger.Warn("unrecognised compliance status",
			zap.String("status", tracking.ComplianceStatus))
		return
	}
	if tracking.RoutingAgent == "" {
		return
	}
	agent := c.ByAgent[tracking.RoutingAgent]
	switch tracking.ComplianceStatus {
	case eventlog.ComplianceFollowed:
		agent.Followed++
	case eventlog.ComplianceIgnored:
		agent.Ignored++
	}
	c.ByAgent[tracking.RoutingAgent] = agent
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfISOWeek returns the Monday 00:00 of the ISO week containing t.
func startOfISOWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}
