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
package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/registry"
)

// explicitPathConfidence is reported when the explicit-path fast route fires
// without a matcher result to borrow a score from.
const explicitPathConfidence = 0.9

// Config tunes one router instance. Zero values fall back to the defaults
// from the configuration cascade.
type Config struct {
	KeywordThreshold  float64
	SemanticThreshold float64
	// ForceMode: project.ForceModeSingleStage pins the keyword matcher,
	// project.ForceModeMultiStage insists on the semantic matcher.
	ForceMode string
}

// Router maps requests to routing decisions. Given the same request,
// configuration, and registry, Route returns the same decision; the only
// admitted non-determinism is the semantic matcher, bounded by its keyword
// fallback.
type Router struct {
	registry *registry.Registry
	cfg      Config
	keyword  *keywordMatcher
	semantic SemanticMatcher // nil when not configured
	logger   *zap.Logger
}

// New creates a router. semantic may be nil.
func New(reg *registry.Registry, cfg Config, semantic SemanticMatcher, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeywordThreshold <= 0 {
		cfg.KeywordThreshold = project.DefaultKeywordThreshold
	}
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = project.DefaultSemanticThreshold
	}
	return &Router{
		registry: reg,
		cfg:      cfg,
		keyword:  &keywordMatcher{registry: reg},
		semantic: semantic,
		logger:   logger,
	}
}

// Route classifies one request. It returns *InvalidInputError for empty or
// oversized input and no other error; every internal failure degrades to an
// ESCALATE decision with a diagnostic reason.
func (r *Router) Route(ctx context.Context, requestText string) (*Decision, error) {
	stripped := strings.TrimSpace(requestText)
	if stripped == "" {
		return nil, &InvalidInputError{Detail: "empty request"}
	}
	if len(stripped) > MaxRequestLen {
		return nil, &InvalidInputError{
			Detail: fmt.Sprintf("request length %d exceeds %d bytes", len(stripped), MaxRequestLen),
		}
	}
	hash := RequestHash(requestText)

	q := analyze(stripped)
	if reason, escalate := checkTriggers(q); escalate {
		return &Decision{
			Decision:    DecisionEscalate,
			Reason:      reason,
			Confidence:  1.0,
			RequestHash: hash,
		}, nil
	}

	agentID, confidence, threshold, note := r.match(ctx, q)

	// Explicit path plus a syntactically simple operation bypasses the
	// confidence threshold: mechanical work goes to the mechanical tier.
	if q.hasExplicitPath() && q.isSimpleOperation() {
		if agentID != "" {
			reason := ReasonHighConfidence
			if confidence < threshold {
				reason = ReasonExplicitPath
			}
			return &Decision{
				Decision:    DecisionDirect,
				Agent:       agentID,
				Reason:      reason + note,
				Confidence:  confidence,
				RequestHash: hash,
			}, nil
		}
		if mech, ok := r.registry.MechanicalTier(); ok {
			return &Decision{
				Decision:    DecisionDirect,
				Agent:       mech.ID,
				Reason:      ReasonExplicitPath + note,
				Confidence:  explicitPathConfidence,
				RequestHash: hash,
			}, nil
		}
	}

	// g. No match or confidence below threshold.
	if agentID == "" || confidence < threshold {
		return &Decision{
			Decision:    DecisionEscalate,
			Reason:      fmt.Sprintf("Low confidence match (%.2f)", confidence) + note,
			Confidence:  1.0,
			RequestHash: hash,
		}, nil
	}

	return &Decision{
		Decision:    DecisionDirect,
		Agent:       agentID,
		Reason:      ReasonHighConfidence + note,
		Confidence:  confidence,
		RequestHash: hash,
	}, nil
}

// RouteOrEscalate is the hook-facing wrapper: input violations become an
// ESCALATE decision instead of an error, so hooks never propagate failures
// to the host.
func (r *Router) RouteOrEscalate(ctx context.Context, requestText string) *Decision {
	decision, err := r.Route(ctx, requestText)
	if err == nil {
		return decision
	}
	return &Decision{
		Decision:    DecisionEscalate,
		Reason:      fmt.Sprintf("input-invalid: %v", err),
		Confidence:  1.0,
		RequestHash: RequestHash(requestText),
	}
}

// match consults the configured matcher once. It returns the winning agent
// (possibly empty), its confidence, the threshold that applies to it, and a
// note recording any fallback cause for the decision reason.
func (r *Router) match(ctx context.Context, q *request) (string, float64, float64, string) {
	useSemantic := r.semantic != nil && r.cfg.ForceMode != project.ForceModeSingleStage

	note := ""
	if r.cfg.ForceMode == project.ForceModeMultiStage && r.semantic == nil {
		note = " (multi-stage forced but no semantic matcher configured)"
	}

	if useSemantic {
		result, err := r.semantic.Match(ctx, q.raw, r.registry.List())
		if err == nil {
			return result.Agent, result.Confidence, r.cfg.SemanticThreshold, ""
		}
		r.logger.Warn("semantic matcher failed, falling back to keyword matcher",
			zap.String("matcher", r.semantic.Name()),
			zap.Error(err))
		note = fmt.Sprintf(" (fell back to keyword matcher: %v)", err)
	}

	agentID, confidence := r.keyword.match(q)
	return agentID, confidence, r.cfg.KeywordThreshold, note
}
