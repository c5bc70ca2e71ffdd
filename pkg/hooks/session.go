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
	"fmt"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/eventlog"
	"github.com/teradata-labs/switchboard/pkg/sessionstate"
	"github.com/teradata-labs/switchboard/pkg/workqueue"
)

// FrameMorningBriefing tags the session-start work overview frame.
const FrameMorningBriefing = "morning-briefing"

// metricSolution labels session lifecycle metric samples.
const metricSolution = "session"

// SessionStart clears the one-shot session flags and emits a briefing of
// open work items so the conversation starts with the queue in view.
func (d *Dispatcher) SessionStart(ctx context.Context, in *Input) error {
	env, err := d.resolve(in.CWD)
	if err != nil {
		return err
	}

	flags, err := sessionstate.Open(env.proj, d.logger)
	if err == nil {
		if err := flags.Clear(ctx); err != nil {
			d.logger.Warn("failed to clear session flags", zap.Error(err))
		}
	}

	queue, err := workqueue.Open(env.proj, env.settings.WIPLimit, d.logger)
	if err != nil {
		return err
	}
	state, err := queue.Status(ctx)
	if err != nil {
		return err
	}
	if len(state.Active)+len(state.Queued) > 0 {
		d.frame(FrameMorningBriefing, workqueue.Summarize(state))
	}

	if err := env.log.Append(ctx, &eventlog.Metric{
		RecordType: eventlog.TypeMetric,
		Solution:   metricSolution,
		Name:       "session_start",
		Value:      1,
		Timestamp:  d.Now(),
		Project:    env.proj,
	}); err != nil {
		d.logger.Warn("failed to record session start", zap.Error(err))
	}
	return nil
}

// SessionEnd persists a summary metric and recomputes the adaptive WIP
// limit from the session's throughput.
func (d *Dispatcher) SessionEnd(ctx context.Context, in *Input) error {
	env, err := d.resolve(in.CWD)
	if err != nil {
		return err
	}

	if err := env.log.Append(ctx, &eventlog.Metric{
		RecordType: eventlog.TypeMetric,
		Solution:   metricSolution,
		Name:       "session_end",
		Value:      1,
		Timestamp:  d.Now(),
		Project:    env.proj,
	}); err != nil {
		d.logger.Warn("failed to record session end", zap.Error(err))
	}

	queue, err := workqueue.Open(env.proj, env.settings.WIPLimit, d.logger)
	if err != nil {
		return err
	}
	queue.Now = d.Now
	limit, err := queue.AdjustWIP(ctx)
	if err != nil {
		return fmt.Errorf("failed to adjust WIP limit: %w", err)
	}
	d.logger.Info("session ended", zap.Int("wip_limit", limit))
	return nil
}
