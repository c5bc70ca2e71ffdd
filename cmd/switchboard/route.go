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
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/switchboard/internal/log"
	"github.com/teradata-labs/switchboard/pkg/cache"
	"github.com/teradata-labs/switchboard/pkg/hooks"
	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/router"
)

var (
	routeJSON    bool
	routeNoCache bool
)

var routeCmd = &cobra.Command{
	Use:   "route \"<request>\"",
	Short: "Classify a request into a routing decision",
	Long: heredoc.Doc(`
		Run the router against a single request and print the decision.

		The decision is DIRECT (with the chosen agent) or ESCALATE (for the
		main conversation). Exit code 2 means the input itself was invalid:
		empty, whitespace-only, or over the size limit.
	`),
	Example: heredoc.Doc(`
		switchboard route "Fix typo in README.md"
		switchboard route --json --no-cache "Refactor the config loader"
	`),
	Args: cobra.ExactArgs(1),
	Run:  runRoute,
}

func init() {
	routeCmd.Flags().BoolVar(&routeJSON, "json", false, "print the raw decision JSON")
	routeCmd.Flags().BoolVar(&routeNoCache, "no-cache", false, "skip the routing cache")
}

func runRoute(cmd *cobra.Command, args []string) {
	proj := currentProject()
	settings := project.LoadSettings(proj.Root, log.Logger())

	var semantic router.SemanticMatcher
	if os.Getenv(hooks.EnvUseLLM) != "" {
		if key := os.Getenv(hooks.EnvAPIKey); key != "" {
			semantic = router.NewLLMMatcher(key, "", router.DefaultLLMTimeout)
		} else {
			semantic = &router.FuzzyMatcher{}
		}
	}

	r := router.New(loadRegistry(proj), router.Config{
		KeywordThreshold:  settings.KeywordThreshold,
		SemanticThreshold: settings.SemanticThreshold,
		ForceMode:         settings.ForceMode,
	}, semantic, log.Logger())

	var store *cache.Store
	if !routeNoCache {
		if s, err := cache.Open(proj, settings.CacheTTLDays, log.Logger()); err == nil {
			store = s
		}
	}

	decision := cachedDecision(cmd, store, args[0])
	if decision == nil {
		var err error
		decision, err = r.Route(cmd.Context(), args[0])
		if err != nil {
			var invalid *router.InvalidInputError
			if errors.As(err, &invalid) {
				fmt.Fprintf(os.Stderr, "Error: invalid input: %s\n", invalid.Detail)
				os.Exit(2)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if store != nil {
			if payload, err := json.Marshal(decision); err == nil {
				_ = store.Put(cmd.Context(), cache.Entry{
					RequestText: args[0],
					AgentUsed:   decision.Agent,
					Result:      payload,
				})
			}
		}
	}

	if routeJSON {
		payload, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	if decision.Decision == router.DecisionDirect {
		fmt.Printf("DIRECT → %s (confidence %.2f)\n", decision.Agent, decision.Confidence)
	} else {
		fmt.Println("ESCALATE to main conversation")
	}
	fmt.Printf("  reason: %s\n", decision.Reason)
	fmt.Printf("  hash:   %s\n", decision.RequestHash)
}

// cachedDecision returns a cached decision or nil on miss.
func cachedDecision(cmd *cobra.Command, store *cache.Store, request string) *router.Decision {
	if store == nil {
		return nil
	}
	entry, err := store.Get(cmd.Context(), request, "")
	if err != nil || entry == nil {
		return nil
	}
	var decision router.Decision
	if json.Unmarshal(entry.Result, &decision) != nil {
		return nil
	}
	return &decision
}
