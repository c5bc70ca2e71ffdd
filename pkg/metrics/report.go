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
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderActivity renders a daily or weekly report as human-readable text.
func RenderActivity(a *Activity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Activity %s to %s\n",
		a.Since.Format("2006-01-02"), a.Until.Format("2006-01-02"))
	fmt.Fprintf(&b, "  recommendations: %d (%d direct, %d escalated)\n",
		a.Recommendations, a.DirectRoutes, a.Escalations)
	fmt.Fprintf(&b, "  agent runs:      %d started, %d stopped\n",
		a.AgentStarts, a.AgentStops)

	for _, agent := range sortedKeys(a.StartsByAgent) {
		fmt.Fprintf(&b, "    %-20s %d\n", agent, a.StartsByAgent[agent])
	}
	if len(a.MetricTotals) > 0 {
		b.WriteString("  metrics:\n")
		for _, key := range sortedKeys(a.MetricTotals) {
			fmt.Fprintf(&b, "    %-28s %.1f\n", key, a.MetricTotals[key])
		}
	}
	b.WriteString(RenderCompliance(&a.Compliance))
	return b.String()
}

// RenderCompliance renders compliance statistics as human-readable text.
func RenderCompliance(c *ComplianceStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  compliance:      %.0f%% followed (%d/%d), %d ignored, %d no directive\n",
		c.Rate()*100, c.Followed, c.TotalRecommendations, c.Ignored, c.NoDirective)
	if c.Unknown > 0 {
		fmt.Fprintf(&b, "  unknown:         %d (recommendation outside the join window)\n", c.Unknown)
	}
	for _, agent := range sortedKeys(c.ByAgent) {
		stats := c.ByAgent[agent]
		fmt.Fprintf(&b, "    %-20s %d followed / %d ignored\n", agent, stats.Followed, stats.Ignored)
	}
	return b.String()
}

// ParseDate parses a YYYY-MM-DD CLI argument, defaulting to fallback when
// empty.
func ParseDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", value, err)
	}
	return t, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
