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
	"regexp"
	"strings"
)

// Escalation reasons emitted by the mechanical checklist.
const (
	ReasonComplexitySignal = "Request contains complexity signal keywords"
	ReasonBulkDestructive  = "Bulk destructive operation"
	ReasonPathDiscovery    = "File operation needs path discovery"
	ReasonAgentDefinition  = "Agent definition modification"
	ReasonMultiObjective   = "Multiple objectives"
	ReasonCreationPlanning = "Creation/design requires planning"
	ReasonMetaRequest      = "Meta-request about routing"
)

// Non-escalation reasons.
const (
	ReasonHighConfidence = "High-confidence agent match"
	ReasonExplicitPath   = "Explicit file path with simple operation"
)

// Trigger vocabularies. Fixed by contract; extending them changes routing
// behaviour for every project on the host.
var (
	judgmentKeywords = []string{
		"complex", "best", "should i", "recommend", "design", "architecture",
		"strategy", "trade-off", "tradeoff", "which approach", "decide",
	}

	destructiveVerbs = []string{"delete", "remove", "drop"}
	bulkQuantifiers  = []string{"all", "multiple", "every", "*"}

	fileOpVerbs = []string{"edit", "modify", "change", "update", "delete", "remove"}

	creationKeywords = []string{"new", "create", "design", "build", "implement"}

	conjunctions = []string{" and ", ", then ", " after ", " before ", ";"}

	metaKeywords       = []string{"router", "routing", "agent", "delegate"}
	interrogativeLeads = []string{"how", "what", "why", "which", "when", "explain", "describe"}
)

// filenameRe recognises a token as an explicit filename: something with an
// extension. Paths containing a separator are recognised separately.
var filenameRe = regexp.MustCompile(`^[\w.-]+\.[A-Za-z0-9]{1,8}$`)

// newFileRe matches the "new file <explicit-name>" form exempt from trigger f.
var newFileRe = regexp.MustCompile(`^(?:create |add )?new file [\w./-]+\S*$`)

// request is a pre-analysed routing input shared by all triggers.
type request struct {
	raw    string
	lower  string // lowercased, whitespace-normalised
	padded string // lower with a leading/trailing space for phrase search
	tokens []string
	words  map[string]bool
}

func analyze(text string) *request {
	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))
	tokens := tokenize(lower)
	words := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		words[tok] = true
	}
	return &request{
		raw:    text,
		lower:  lower,
		padded: " " + lower + " ",
		tokens: tokens,
		words:  words,
	}
}

// tokenize splits on everything that is not a letter, digit or underscore,
// so "README.md:" yields "readme" and "md".
func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})
}

// containsPhrase matches a multi-word phrase or a single word with crude word
// boundaries; "*" matches literally anywhere.
func (q *request) containsPhrase(phrase string) bool {
	if phrase == "*" {
		return strings.Contains(q.lower, "*")
	}
	if strings.ContainsAny(phrase, " -") {
		return strings.Contains(q.padded, " "+phrase+" ") ||
			strings.Contains(q.lower, phrase)
	}
	return q.words[phrase]
}

func (q *request) containsAny(phrases []string) bool {
	for _, p := range phrases {
		if q.containsPhrase(p) {
			return true
		}
	}
	return false
}

// hasExplicitPath reports whether any whitespace-separated token looks like a
// concrete file path or filename.
func (q *request) hasExplicitPath() bool {
	for _, field := range strings.Fields(q.lower) {
		trimmed := strings.Trim(field, `"'():,`)
		if strings.ContainsRune(trimmed, '/') && len(trimmed) > 1 {
			return true
		}
		if filenameRe.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// conjunctionCount counts occurrences of the fixed coordinating set.
func (q *request) conjunctionCount() int {
	n := 0
	for _, c := range conjunctions {
		n += strings.Count(q.lower, c)
	}
	return n
}

// verbCount counts distinct operation verbs present in the request.
func (q *request) verbCount() int {
	n := 0
	seen := map[string]bool{}
	for _, v := range append(append([]string{}, fileOpVerbs...), creationKeywords...) {
		if !seen[v] && q.words[v] {
			seen[v] = true
			n++
		}
	}
	return n
}

// isSimpleOperation gates the explicit-path fast route: a single operation
// verb and at most one conjunction.
func (q *request) isSimpleOperation() bool {
	return q.verbCount() <= 1 && q.conjunctionCount() <= 1
}

// checkTriggers runs the mechanical escalation checklist in contract order
// (a through f, then h; trigger g lives in the router because it consumes
// the matcher result). The first matching trigger wins.
func checkTriggers(q *request) (reason string, escalate bool) {
	// a. Judgment keywords.
	if q.containsAny(judgmentKeywords) {
		return ReasonComplexitySignal, true
	}

	// b. Destructive verb together with a bulk quantifier.
	if q.containsAny(destructiveVerbs) && q.containsAny(bulkQuantifiers) {
		return ReasonBulkDestructive, true
	}

	// c. File operation with no explicit path to operate on.
	if q.containsAny(fileOpVerbs) && !q.hasExplicitPath() {
		return ReasonPathDiscovery, true
	}

	// d. Mutating an agent definition.
	if strings.Contains(q.lower, ".claude/agents/") &&
		(q.containsAny(fileOpVerbs) || q.containsAny(creationKeywords)) {
		return ReasonAgentDefinition, true
	}

	// e. Two or more coordinating conjunctions.
	if q.conjunctionCount() >= 2 {
		return ReasonMultiObjective, true
	}

	// f. Creation/design work, unless it is just "new file <name>".
	if q.containsAny(creationKeywords) && !newFileRe.MatchString(q.lower) {
		return ReasonCreationPlanning, true
	}

	// h. Meta-request about the routing system itself.
	if q.containsAny(metaKeywords) && q.isInterrogative() {
		return ReasonMetaRequest, true
	}

	return "", false
}

// isInterrogative recognises question-shaped or explanatory requests.
func (q *request) isInterrogative() bool {
	if strings.Contains(q.lower, "?") {
		return true
	}
	for _, lead := range interrogativeLeads {
		if strings.HasPrefix(q.lower, lead+" ") {
			return true
		}
	}
	return false
}
