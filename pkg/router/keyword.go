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
	"github.com/teradata-labs/switchboard/pkg/registry"
)

// keywordMatcher is the always-available fallback matcher. For each agent the
// score is the fraction of the request's keyword-bearing tokens that belong
// to that agent's keyword set; ties break by agent id lexicographic order.
type keywordMatcher struct {
	registry *registry.Registry
}

// match returns the best agent and its confidence, or ("", 0) when the
// request contains no token that is a keyword of any agent.
func (m *keywordMatcher) match(q *request) (string, float64) {
	agents := m.registry.List()

	// Distinct request tokens that are keywords of at least one agent.
	keywordTokens := map[string]bool{}
	for _, agent := range agents {
		for _, kw := range agent.Keywords {
			if q.words[kw] {
				keywordTokens[kw] = true
			}
		}
	}
	if len(keywordTokens) == 0 {
		return "", 0
	}

	bestID := ""
	bestScore := 0.0
	for _, agent := range agents { // List() is id-ordered, so first win is the tie-break
		matched := 0
		for _, kw := range agent.Keywords {
			if keywordTokens[kw] {
				matched++
			}
		}
		score := float64(matched) / float64(len(keywordTokens))
		if score > bestScore {
			bestID = agent.ID
			bestScore = score
		}
	}
	if bestID == "" {
		return "", 0
	}
	return bestID, bestScore
}
