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
package workqueue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// completionWindow is the lookback used for the throughput signal.
	completionWindow = 24 * time.Hour

	// stallAge is how long an active item may run before it counts as stalled.
	stallAge = time.Hour

	wipFloor   = 1
	wipDefault = 3
	wipCeiling = 4

	stallHigh      = 0.30
	stallLow       = 0.10
	throughputHigh = 2.0 // completions per hour
)

// AdjustWIP recomputes the WIP limit from recent throughput and stall
// signals and persists the new value. Called at session end.
//
// A stall rate above 30% shrinks the limit to 1 so attention converges on
// what is stuck. High throughput with a low stall rate raises it to 4.
// Everything else settles on the default of 3.
func (q *Queue) AdjustWIP(ctx context.Context) (int, error) {
	var limit int
	err := q.mutate(ctx, func(state *State) error {
		now := q.Now()
		completion := completionRate(state, now)
		stall := stallRate(state, now)

		limit = wipDefault
		switch {
		case stall > stallHigh:
			limit = wipFloor
		case completion > throughputHigh && stall < stallLow:
			limit = wipCeiling
		}

		if limit != state.WIPLimit {
			q.logger.Info("adjusted WIP limit",
				zap.Int("from", state.WIPLimit),
				zap.Int("to", limit),
				zap.Float64("completion_rate", completion),
				zap.Float64("stall_rate", stall))
		}
		state.WIPLimit = limit
		return nil
	})
	return limit, err
}

// completionRate is items completed per hour over the completion window.
func completionRate(state *State, now time.Time) float64 {
	cutoff := now.Add(-completionWindow)
	n := 0
	for _, item := range state.Completed {
		if item.Status == StatusCompleted && item.CompletedAt != nil && item.CompletedAt.After(cutoff) {
			n++
		}
	}
	return float64(n) / completionWindow.Hours()
}

// stallRate is the fraction of active items older than the stall age.
func stallRate(state *State, now time.Time) float64 {
	if len(state.Active) == 0 {
		return 0
	}
	stalled := 0
	for _, item := range state.Active {
		if item.StartedAt != nil && now.Sub(*item.StartedAt) > stallAge {
			stalled++
		}
	}
	return float64(stalled) / float64(len(state.Active))
}
