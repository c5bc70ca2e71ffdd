// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package registry

// Builtins returns the agent definitions available without any manifest.
// Manifests with the same id override these.
func Builtins() []Agent {
	return []Agent{
		{
			ID:          "haiku-general",
			ModelTier:   TierHaiku,
			Description: "Fast mechanical edits: typos, renames, formatting, comments, small single-file fixes.",
			Keywords: []string{
				"typo", "fix", "rename", "whitespace", "readme", "comment",
				"format", "import", "lint", "spelling",
			},
		},
		{
			ID:          "sonnet-general",
			ModelTier:   TierSonnet,
			Description: "General coding work: writing functions, tests, debugging, refactoring within a known scope.",
			Keywords: []string{
				"test", "refactor", "debug", "bug", "function", "implement",
				"write", "add", "error", "failing",
			},
		},
		{
			ID:          "opus-architect",
			ModelTier:   TierOpus,
			Description: "Design and judgment work: architecture, trade-offs, multi-step plans, ambiguous requirements.",
			Keywords: []string{
				"architecture", "design", "plan", "migrate", "strategy",
				"review", "security", "performance",
			},
		},
	}
}
