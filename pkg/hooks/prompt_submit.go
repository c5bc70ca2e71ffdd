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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/cache"
	"github.com/teradata-labs/switchboard/pkg/eventlog"
	"github.com/teradata-labs/switchboard/pkg/router"
)

// Stdout frame tags recognised by the host.
const (
	FrameRoutingRecommendation = "routing-recommendation"
	FrameCurrentDatetime       = "current-datetime"
	FrameContextAdvisory       = "context-advisory"
)

// PromptSubmit routes the submitted prompt and emits the recommendation.
// When routing is disabled for the project the prompt passes through
// untouched: no frames, no events.
func (d *Dispatcher) PromptSubmit(ctx context.Context, in *Input) error {
	env, err := d.resolve(in.CWD)
	if err != nil {
		return err
	}
	if !env.settings.Enabled {
		return nil
	}

	decision := d.routeWithCache(ctx, env, in.Prompt)

	now := d.Now()
	event := &eventlog.RoutingRecommendation{
		RecordType:  eventlog.TypeRoutingRecommendation,
		Timestamp:   now,
		RequestHash: decision.RequestHash,
		Recommendation: eventlog.Recommendation{
			Agent:      decision.Agent,
			Reason:     decision.Reason,
			Confidence: decision.Confidence,
		},
		FullAnalysis: eventlog.Analysis{
			Decision:   decision.Decision,
			Agent:      decision.Agent,
			Reason:     decision.Reason,
			Confidence: decision.Confidence,
		},
		Project: env.proj,
	}
	if err := env.log.Append(ctx, event); err != nil {
		d.logger.Warn("failed to record routing recommendation", zap.Error(err))
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to serialise routing decision: %w", err)
	}
	d.frame(FrameRoutingRecommendation, string(payload))
	d.frame(FrameCurrentDatetime, now.Format(time.RFC3339))
	fmt.Fprintln(d.stderr, "switchboard: "+summarize(decision))

	d.checkContextThreshold(ctx, env, in)
	return nil
}

// routeWithCache consults the routing cache before running the router. The
// cache is best effort: any cache failure falls through to a fresh route.
func (d *Dispatcher) routeWithCache(ctx context.Context, env *hookEnv, prompt string) *router.Decision {
	r := router.New(d.loadRegistry(env.proj), router.Config{
		KeywordThreshold:  env.settings.KeywordThreshold,
		SemanticThreshold: env.settings.SemanticThreshold,
		ForceMode:         env.settings.ForceMode,
	}, d.semanticMatcher(), d.logger)

	store, err := cache.Open(env.proj, env.settings.CacheTTLDays, d.logger)
	if err != nil {
		d.logger.Warn("routing cache unavailable", zap.Error(err))
		return r.RouteOrEscalate(ctx, prompt)
	}

	if entry, err := store.Get(ctx, prompt, ""); err == nil && entry != nil {
		var cached router.Decision
		if json.Unmarshal(entry.Result, &cached) == nil {
			return &cached
		}
	}

	decision := r.RouteOrEscalate(ctx, prompt)
	if payload, err := json.Marshal(decision); err == nil {
		if err := store.Put(ctx, cache.Entry{
			RequestText: prompt,
			AgentUsed:   decision.Agent,
			Result:      payload,
		}); err != nil {
			d.logger.Warn("failed to cache routing decision", zap.Error(err))
		}
	}
	return decision
}

// summarize renders the one-line stderr summary of a decision.
func summarize(d *router.Decision) string {
	if d.Decision == router.DecisionDirect {
		return fmt.Sprintf("route → %s (%.2f): %s", d.Agent, d.Confidence, d.Reason)
	}
	return fmt.Sprintf("escalate to main conversation: %s", d.Reason)
}
