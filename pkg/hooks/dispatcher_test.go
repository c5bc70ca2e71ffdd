// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/switchboard/pkg/eventlog"
	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/router"
	"github.com/teradata-labs/switchboard/pkg/workqueue"
)

// isolate pins HOME and the data root to temp directories so tests never
// touch the invoking user's real state.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(project.EnvDataDir, t.TempDir())
	t.Setenv(project.EnvProjectRoot, "")
	t.Setenv(EnvUseLLM, "")
}

// makeProject creates a directory with a `.claude` marker.
func makeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, project.MarkerDir), 0o755))
	return root
}

type streams struct {
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newDispatcher(t *testing.T, stdin string) (*Dispatcher, *streams) {
	t.Helper()
	s := &streams{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	d := NewDispatcher(strings.NewReader(stdin), s.stdout, s.stderr, zaptest.NewLogger(t))
	return d, s
}

func hookInput(t *testing.T, in Input) string {
	t.Helper()
	data, err := json.Marshal(in)
	require.NoError(t, err)
	return string(data)
}

// frameBody extracts the body of a delimited stdout frame.
func frameBody(t *testing.T, output, tag string) string {
	t.Helper()
	openTag, closeTag := "<"+tag+">\n", "\n</"+tag+">"
	start := strings.Index(output, openTag)
	require.GreaterOrEqual(t, start, 0, "missing frame %s in output:\n%s", tag, output)
	rest := output[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	require.GreaterOrEqual(t, end, 0)
	return rest[:end]
}

func TestRun_AlwaysExitsZero(t *testing.T) {
	isolate(t)

	cases := []struct {
		name  string
		hook  string
		stdin string
	}{
		{"unknown hook", "no-such-hook", "{}"},
		{"garbage stdin", HookPromptSubmit, "not json"},
		{"empty stdin", HookSessionEnd, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := newDispatcher(t, tc.stdin)
			assert.Equal(t, 0, d.Run(context.Background(), tc.hook))
		})
	}
}

func TestPromptSubmit_EmitsFramesAndEvent(t *testing.T) {
	isolate(t)
	root := makeProject(t)

	d, s := newDispatcher(t, "")
	err := d.PromptSubmit(context.Background(), &Input{
		CWD:    root,
		Prompt: "Fix typo in README.md: change 'teh' to 'the'",
	})
	require.NoError(t, err)

	var decision router.Decision
	require.NoError(t, json.Unmarshal([]byte(frameBody(t, s.stdout.String(), FrameRoutingRecommendation)), &decision))
	assert.Equal(t, router.DecisionDirect, decision.Decision)
	assert.Equal(t, "haiku-general", decision.Agent)

	stamp := frameBody(t, s.stdout.String(), FrameCurrentDatetime)
	_, err = time.Parse(time.RFC3339, stamp)
	assert.NoError(t, err)

	assert.Contains(t, s.stderr.String(), "haiku-general")

	log, err := eventlog.Open(project.Detect(root, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	require.NoError(t, err)
	records, err := log.ReadDay(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec, ok := records[0].RoutingRecommendation()
	require.True(t, ok)
	assert.Equal(t, "haiku-general", rec.Recommendation.Agent)
}

func TestPromptSubmit_DisabledPassesThrough(t *testing.T) {
	isolate(t)
	root := makeProject(t)
	settings := filepath.Join(root, project.MarkerDir, project.SettingsFileName)
	require.NoError(t, os.WriteFile(settings,
		[]byte(`{"plugins": {"router": {"enabled": false}}}`), 0o600))

	d, s := newDispatcher(t, "")
	require.NoError(t, d.PromptSubmit(context.Background(), &Input{CWD: root, Prompt: "anything"}))

	assert.Empty(t, s.stdout.String())
	assert.Empty(t, s.stderr.String())
}

func TestPromptSubmit_InvalidPromptEscalates(t *testing.T) {
	isolate(t)
	root := makeProject(t)

	d, s := newDispatcher(t, "")
	require.NoError(t, d.PromptSubmit(context.Background(), &Input{CWD: root, Prompt: "   "}))

	var decision router.Decision
	require.NoError(t, json.Unmarshal([]byte(frameBody(t, s.stdout.String(), FrameRoutingRecommendation)), &decision))
	assert.Equal(t, router.DecisionEscalate, decision.Decision)
	assert.Contains(t, decision.Reason, "invalid")
}

func TestPromptSubmit_ProjectIsolation(t *testing.T) {
	isolate(t)
	rootA := makeProject(t)
	rootB := makeProject(t)

	for _, root := range []string{rootA, rootB} {
		d, _ := newDispatcher(t, "")
		require.NoError(t, d.PromptSubmit(context.Background(), &Input{
			CWD:    root,
			Prompt: "Fix typo in README.md",
		}))
	}

	logger := zaptest.NewLogger(t)
	projA := project.Detect(rootA, logger)
	projB := project.Detect(rootB, logger)
	require.NotEqual(t, projA.ID, projB.ID)

	for _, proj := range []*project.Context{projA, projB} {
		log, err := eventlog.Open(proj, logger)
		require.NoError(t, err)
		records, err := log.ReadDay(context.Background(), time.Now())
		require.NoError(t, err)
		assert.Len(t, records, 1, "each project sees exactly its own event")
	}
}

func TestAgentStart_RecordsEventAndCompliance(t *testing.T) {
	isolate(t)
	root := makeProject(t)

	// A prior recommendation for haiku-general, then sonnet-general starts.
	d, _ := newDispatcher(t, "")
	require.NoError(t, d.PromptSubmit(context.Background(), &Input{
		CWD:    root,
		Prompt: "Fix typo in README.md",
	}))

	d2, s2 := newDispatcher(t, "")
	require.NoError(t, d2.AgentStart(context.Background(), &Input{
		CWD:       root,
		AgentType: "sonnet-general",
		AgentID:   "run-1",
	}))

	assert.Contains(t, s2.stderr.String(), "routing recommendation ignored")

	log, err := eventlog.Open(project.Detect(root, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	require.NoError(t, err)
	records, err := log.ReadDay(context.Background(), time.Now())
	require.NoError(t, err)

	var sawStart, sawTracking bool
	for _, record := range records {
		if event, ok := record.AgentEvent(); ok && event.Event == eventlog.AgentStart {
			sawStart = true
			assert.Equal(t, "sonnet-general", event.AgentType)
			assert.Equal(t, "sonnet", event.ModelTier)
		}
		if tracking, ok := record.RequestTracking(); ok {
			sawTracking = true
			assert.Equal(t, eventlog.ComplianceIgnored, tracking.ComplianceStatus)
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawTracking)
}

func TestAgentStop_SanitizesFreeText(t *testing.T) {
	isolate(t)
	root := makeProject(t)

	d, s := newDispatcher(t, "")
	require.NoError(t, d.AgentStop(context.Background(), &Input{
		CWD:         root,
		AgentType:   "haiku|general\nx",
		Status:      "ok\r\n|done",
		DurationSec: 12.5,
	}))

	assert.Contains(t, s.stderr.String(), "haikugeneralx")
	assert.NotContains(t, s.stderr.String(), "|")
}

func TestSessionStart_ClearsFlagsAndBriefs(t *testing.T) {
	isolate(t)
	root := makeProject(t)

	// Seed a queued item so the briefing has something to say.
	proj := project.Detect(root, zaptest.NewLogger(t))
	queue, err := workqueue.Open(proj, 3, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = queue.Enqueue(context.Background(), workqueue.Item{Description: "triage-flaky-test"})
	require.NoError(t, err)

	d, s := newDispatcher(t, "")
	require.NoError(t, d.SessionStart(context.Background(), &Input{CWD: root}))

	briefing := frameBody(t, s.stdout.String(), FrameMorningBriefing)
	assert.Contains(t, briefing, "triage-flaky-test")
}

func TestSessionEnd_AdjustsWIP(t *testing.T) {
	isolate(t)
	root := makeProject(t)

	d, _ := newDispatcher(t, "")
	require.NoError(t, d.SessionEnd(context.Background(), &Input{CWD: root}))

	proj := project.Detect(root, zaptest.NewLogger(t))
	queue, err := workqueue.Open(proj, 3, zaptest.NewLogger(t))
	require.NoError(t, err)
	state, err := queue.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, state.WIPLimit)
}

func TestPreToolUse_Policy(t *testing.T) {
	isolate(t)
	root := makeProject(t)
	policy := filepath.Join(root, project.MarkerDir, PolicyFileName)
	require.NoError(t, os.WriteFile(policy,
		[]byte(`{"default": "allow", "deny": ["Bash(rm"]}`), 0o600))

	cases := []struct {
		tool string
		want string
	}{
		{"Bash(rm -rf /tmp/x)", "deny"},
		{"Read", "allow"},
	}
	for _, tc := range cases {
		t.Run(tc.tool, func(t *testing.T) {
			d, s := newDispatcher(t, "")
			require.NoError(t, d.PreToolUse(context.Background(), &Input{CWD: root, ToolName: tc.tool}))

			var verdict map[string]string
			require.NoError(t, json.Unmarshal(s.stdout.Bytes(), &verdict))
			assert.Equal(t, tc.want, verdict["decision"])
		})
	}
}

func TestPreToolUse_InvalidPolicyDefaultsToAllow(t *testing.T) {
	isolate(t)
	root := makeProject(t)
	policy := filepath.Join(root, project.MarkerDir, PolicyFileName)
	require.NoError(t, os.WriteFile(policy, []byte(`{"default": 42}`), 0o600))

	d, s := newDispatcher(t, "")
	require.NoError(t, d.PreToolUse(context.Background(), &Input{CWD: root, ToolName: "Bash(anything)"}))

	var verdict map[string]string
	require.NoError(t, json.Unmarshal(s.stdout.Bytes(), &verdict))
	assert.Equal(t, "allow", verdict["decision"])
}

func TestContextThreshold_WarnsOncePerSession(t *testing.T) {
	isolate(t)
	root := makeProject(t)

	// 150 turns at 1000 tokens each crosses 70% of a 200k window.
	transcript := filepath.Join(t.TempDir(), "transcript.jsonl")
	var lines strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&lines, "{\"turn\": %d}\n", i)
	}
	require.NoError(t, os.WriteFile(transcript, []byte(lines.String()), 0o600))

	in := &Input{CWD: root, Prompt: "Fix typo in README.md", TranscriptPath: transcript}

	d, s := newDispatcher(t, "")
	require.NoError(t, d.PromptSubmit(context.Background(), in))
	assert.Contains(t, s.stderr.String(), "context is")
	assert.Contains(t, s.stdout.String(), "<"+FrameContextAdvisory+">")

	// Same session: the flag suppresses a second warning.
	d2, s2 := newDispatcher(t, "")
	require.NoError(t, d2.PromptSubmit(context.Background(), in))
	assert.NotContains(t, s2.stderr.String(), "context is")

	// A new session clears the flag and the warning can fire again.
	d3, _ := newDispatcher(t, "")
	require.NoError(t, d3.SessionStart(context.Background(), &Input{CWD: root}))
	d4, s4 := newDispatcher(t, "")
	require.NoError(t, d4.PromptSubmit(context.Background(), in))
	assert.Contains(t, s4.stderr.String(), "context is")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "plain", sanitize("plain"))
	assert.Equal(t, "ab", sanitize("a|b"))
	assert.Equal(t, "line one", sanitize("line\x00 one\n"))
}
