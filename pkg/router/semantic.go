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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sahilm/fuzzy"

	"github.com/teradata-labs/switchboard/pkg/registry"
)

// SemanticResult is the contract every semantic matcher fulfils. An empty
// Agent means "no suitable agent"; Confidence is always in [0, 1].
type SemanticResult struct {
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// SemanticMatcher is the single point where non-determinism is admitted.
// Any error (timeout, malformed output, unknown agent id) causes the router
// to fall back to the keyword matcher with the cause recorded.
type SemanticMatcher interface {
	Name() string
	Match(ctx context.Context, request string, agents []registry.Agent) (*SemanticResult, error)
}

// --- Local fuzzy matcher ---------------------------------------------------

// FuzzyMatcher is a purely local semantic matcher: request tokens are
// fuzzy-matched against each agent's keywords and description vocabulary.
// Deterministic and dependency-free at runtime.
type FuzzyMatcher struct{}

// Name implements SemanticMatcher.
func (m *FuzzyMatcher) Name() string { return "fuzzy" }

// Match implements SemanticMatcher.
func (m *FuzzyMatcher) Match(_ context.Context, req string, agents []registry.Agent) (*SemanticResult, error) {
	vocab, owner := buildVocabulary(agents)
	if len(vocab) == 0 {
		return &SemanticResult{Reason: "no agent vocabulary"}, nil
	}

	tokens := eligibleTokens(req)
	if len(tokens) == 0 {
		return &SemanticResult{Reason: "no matchable tokens"}, nil
	}

	scores := map[string]float64{}
	for _, token := range tokens {
		matches := fuzzy.Find(token, vocab)
		if len(matches) == 0 {
			continue
		}
		best := matches[0]
		weight := 0.5
		if vocab[best.Index] == token {
			weight = 1.0
		}
		scores[owner[best.Index]] += weight
	}

	bestID := ""
	bestScore := 0.0
	for _, agent := range agents {
		score := scores[agent.ID] / float64(len(tokens))
		if score > bestScore {
			bestID = agent.ID
			bestScore = score
		}
	}
	if bestID == "" {
		return &SemanticResult{Reason: "no token matched any agent"}, nil
	}
	if bestScore > 1 {
		bestScore = 1
	}
	return &SemanticResult{
		Agent:      bestID,
		Confidence: bestScore,
		Reason:     "fuzzy description match",
	}, nil
}

// buildVocabulary flattens every agent's keywords and description words into
// one target list, remembering which agent owns each word.
func buildVocabulary(agents []registry.Agent) (vocab []string, owner []string) {
	for _, agent := range agents {
		words := append([]string{}, agent.Keywords...)
		words = append(words, tokenize(strings.ToLower(agent.Description))...)
		for _, w := range words {
			if len(w) < 3 {
				continue
			}
			vocab = append(vocab, w)
			owner = append(owner, agent.ID)
		}
	}
	return vocab, owner
}

// eligibleTokens keeps distinct request tokens long enough to carry signal.
func eligibleTokens(req string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tok := range tokenize(strings.ToLower(req)) {
		if len(tok) < 3 || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// --- LLM matcher -------------------------------------------------------------

// DefaultLLMTimeout bounds a single classification call.
const DefaultLLMTimeout = 10 * time.Second

// defaultLLMModel is deliberately the cheapest tier: the classifier only
// picks an agent id, it does not do the work.
const defaultLLMModel = "claude-3-5-haiku-latest"

// LLMMatcher delegates classification to the Anthropic API.
type LLMMatcher struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// NewLLMMatcher builds a matcher over the Anthropic API.
func NewLLMMatcher(apiKey, model string, timeout time.Duration) *LLMMatcher {
	if model == "" {
		model = defaultLLMModel
	}
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLMMatcher{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
	}
}

// Name implements SemanticMatcher.
func (m *LLMMatcher) Name() string { return "llm" }

// Match implements SemanticMatcher.
func (m *LLMMatcher) Match(ctx context.Context, req string, agents []registry.Agent) (*SemanticResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var roster strings.Builder
	for _, agent := range agents {
		fmt.Fprintf(&roster, "- %s (%s): %s\n", agent.ID, agent.ModelTier, agent.Description)
	}

	prompt := fmt.Sprintf(
		"Pick the single best agent for the request, or null if none fits.\n\nAgents:\n%s\nRequest: %s\n\n"+
			`Respond with only JSON: {"agent": <id or null>, "confidence": <0.0-1.0>, "reason": <short string>}`,
		roster.String(), req)

	msg, err := m.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	result, err := parseSemanticResult(text.String())
	if err != nil {
		return nil, err
	}
	if err := validateResult(result, agents); err != nil {
		return nil, err
	}
	return result, nil
}

// parseSemanticResult extracts the first JSON object from classifier output,
// tolerating prose or fencing around it.
func parseSemanticResult(text string) (*SemanticResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("classifier returned no JSON object")
	}
	var result SemanticResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("classifier returned malformed JSON: %w", err)
	}
	return &result, nil
}

// validateResult rejects out-of-range confidences and agent ids the registry
// does not know; both cause a documented keyword fallback.
func validateResult(result *SemanticResult, agents []registry.Agent) error {
	if result.Confidence < 0 || result.Confidence > 1 {
		return fmt.Errorf("classifier confidence %v out of range", result.Confidence)
	}
	if result.Agent == "" {
		return nil
	}
	for _, agent := range agents {
		if agent.ID == result.Agent {
			return nil
		}
	}
	return fmt.Errorf("classifier named unknown agent %q", result.Agent)
}
