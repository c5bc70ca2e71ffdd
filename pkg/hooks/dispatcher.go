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
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/eventlog"
	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/registry"
	"github.com/teradata-labs/switchboard/pkg/router"
)

// Hook names as registered with the host.
const (
	HookPromptSubmit = "prompt-submit"
	HookAgentStart   = "agent-start"
	HookAgentStop    = "agent-stop"
	HookSessionStart = "session-start"
	HookSessionEnd   = "session-end"
	HookPreToolUse   = "pre-tool-use"
)

// Environment toggles for the semantic matcher.
const (
	EnvUseLLM = "ROUTER_USE_LLM"
	EnvAPIKey = "ANTHROPIC_API_KEY"
)

// Names lists every hook the dispatcher knows, in lifecycle order.
func Names() []string {
	return []string{
		HookSessionStart, HookPromptSubmit, HookPreToolUse,
		HookAgentStart, HookAgentStop, HookSessionEnd,
	}
}

// Dispatcher runs hooks against host-supplied streams.
type Dispatcher struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger

	// Now supplies timestamps; overridable in tests.
	Now func() time.Time
}

// NewDispatcher wires a dispatcher to explicit streams.
func NewDispatcher(stdin io.Reader, stdout, stderr io.Writer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if stdout == nil {
		stdout = io.Discard
	}
	return &Dispatcher{stdin: stdin, stdout: stdout, stderr: stderr, logger: logger, Now: time.Now}
}

// Run reads the host payload and dispatches one hook. It always returns
// exit code 0: hook failures are reported on stderr and in the log, never
// to the host's exit-status check.
func (d *Dispatcher) Run(ctx context.Context, hook string) int {
	in, err := ReadInput(d.stdin)
	if err != nil {
		d.logger.Warn("unreadable hook input, continuing with empty payload",
			zap.String("hook", hook),
			zap.Error(err))
		in = &Input{}
	}

	switch hook {
	case HookPromptSubmit:
		err = d.PromptSubmit(ctx, in)
	case HookAgentStart:
		err = d.AgentStart(ctx, in)
	case HookAgentStop:
		err = d.AgentStop(ctx, in)
	case HookSessionStart:
		err = d.SessionStart(ctx, in)
	case HookSessionEnd:
		err = d.SessionEnd(ctx, in)
	case HookPreToolUse:
		err = d.PreToolUse(ctx, in)
	default:
		err = fmt.Errorf("unknown hook %q", hook)
	}
	if err != nil {
		d.logger.Warn("hook failed", zap.String("hook", hook), zap.Error(err))
		fmt.Fprintf(d.stderr, "switchboard: %s: %v\n", hook, err)
	}
	return 0
}

// hookEnv is the per-invocation project environment every hook resolves
// before doing anything else.
type hookEnv struct {
	proj     *project.Context
	settings *project.Settings
	log      *eventlog.Log
}

// resolve detects the project for cwd and opens its event log. cwd defaults
// to the process working directory when the host omits it.
func (d *Dispatcher) resolve(cwd string) (*hookEnv, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		cwd = wd
	}
	proj := project.Detect(cwd, d.logger)
	log, err := eventlog.Open(proj, d.logger)
	if err != nil {
		return nil, err
	}
	log.Now = d.Now
	return &hookEnv{
		proj:     proj,
		settings: project.LoadSettings(proj.Root, d.logger),
		log:      log,
	}, nil
}

// loadRegistry merges built-in, user, and project agent manifests.
func (d *Dispatcher) loadRegistry(proj *project.Context) *registry.Registry {
	userDir := filepath.Join(project.UserClaudeDir(), registry.AgentsDirName)
	projectDir := ""
	if proj.Root != "" {
		projectDir = filepath.Join(proj.Root, project.MarkerDir, registry.AgentsDirName)
	}
	return registry.Load(userDir, projectDir, d.logger)
}

// semanticMatcher picks the optional second routing stage. The LLM matcher
// needs both the opt-in flag and an API key; with the flag alone the local
// fuzzy matcher serves.
func (d *Dispatcher) semanticMatcher() router.SemanticMatcher {
	if os.Getenv(EnvUseLLM) == "" {
		return nil
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		return router.NewLLMMatcher(key, "", router.DefaultLLMTimeout)
	}
	return &router.FuzzyMatcher{}
}

// frame writes a delimited advisory block to stdout. The host recognises
// the tag and injects the body into its context.
func (d *Dispatcher) frame(tag, body string) {
	fmt.Fprintf(d.stdout, "<%s>\n%s\n</%s>\n", tag, body, tag)
}
