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
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/compliance"
	"github.com/teradata-labs/switchboard/pkg/eventlog"
)

// AgentStart records the agent start and classifies it against the most
// recent routing recommendation.
func (d *Dispatcher) AgentStart(ctx context.Context, in *Input) error {
	env, err := d.resolve(in.CWD)
	if err != nil {
		return err
	}
	if !env.settings.Enabled {
		return nil
	}
	agentType := sanitize(in.AgentType)

	if err := env.log.Append(ctx, &eventlog.AgentEvent{
		RecordType: eventlog.TypeAgentEvent,
		Event:      eventlog.AgentStart,
		Timestamp:  d.Now(),
		AgentType:  agentType,
		AgentID:    sanitize(in.AgentID),
		ModelTier:  d.loadRegistry(env.proj).ModelTier(agentType),
		Project:    env.proj,
	}); err != nil {
		d.logger.Warn("failed to record agent start", zap.Error(err))
	}

	tracker := compliance.New(env.log, env.proj, d.stderr, d.logger)
	tracker.Now = d.Now
	if _, err := tracker.TrackInvocation(ctx, agentType, sanitize(in.AgentID)); err != nil {
		d.logger.Warn("compliance tracking failed", zap.Error(err))
	}

	fmt.Fprintf(d.stderr, "switchboard: agent %s started\n", agentType)
	return nil
}

// AgentStop records the agent stop with its model tier and duration.
func (d *Dispatcher) AgentStop(ctx context.Context, in *Input) error {
	env, err := d.resolve(in.CWD)
	if err != nil {
		return err
	}
	if !env.settings.Enabled {
		return nil
	}
	agentType := sanitize(in.AgentType)

	if err := env.log.Append(ctx, &eventlog.AgentEvent{
		RecordType:  eventlog.TypeAgentEvent,
		Event:       eventlog.AgentStop,
		Timestamp:   d.Now(),
		AgentType:   agentType,
		AgentID:     sanitize(in.AgentID),
		ModelTier:   d.loadRegistry(env.proj).ModelTier(agentType),
		DurationSec: in.DurationSec,
		Project:     env.proj,
	}); err != nil {
		d.logger.Warn("failed to record agent stop", zap.Error(err))
	}

	fmt.Fprintf(d.stderr, "switchboard: agent %s stopped (%s, %.1fs)\n",
		agentType, sanitize(in.Status), in.DurationSec)
	return nil
}

// sanitize strips pipes, newlines, and control characters from host-supplied
// free text before it reaches the event log or the terminal.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '|' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
