// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package compliance

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/switchboard/pkg/eventlog"
	"github.com/teradata-labs/switchboard/pkg/project"
	"github.com/teradata-labs/switchboard/pkg/router"
)

var testNow = time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)

func setupTracker(t *testing.T) (*Tracker, *eventlog.Log, *bytes.Buffer) {
	t.Helper()
	log := eventlog.New(t.TempDir(), zaptest.NewLogger(t))
	log.Now = func() time.Time { return testNow }

	proj := &project.Context{ID: "abc123", Root: "/tmp/proj", Name: "proj"}
	stderr := &bytes.Buffer{}
	tracker := New(log, proj, stderr, zaptest.NewLogger(t))
	tracker.Now = func() time.Time { return testNow }
	return tracker, log, stderr
}

func appendRecommendation(t *testing.T, log *eventlog.Log, decision, agent string, at time.Time) {
	t.Helper()
	err := log.Append(context.Background(), &eventlog.RoutingRecommendation{
		RecordType:  eventlog.TypeRoutingRecommendation,
		Timestamp:   at,
		RequestHash: "00112233aabbccdd",
		Recommendation: eventlog.Recommendation{
			Agent:      agent,
			Reason:     "test",
			Confidence: 0.9,
		},
		FullAnalysis: eventlog.Analysis{Decision: decision, Agent: agent, Confidence: 0.9},
	})
	require.NoError(t, err)
}

func TestTrackInvocation_DirectFollowed(t *testing.T) {
	tracker, log, stderr := setupTracker(t)
	appendRecommendation(t, log, router.DecisionDirect, "haiku-general", testNow.Add(-5*time.Second))

	tracking, err := tracker.TrackInvocation(context.Background(), "haiku-general", "run-1")
	require.NoError(t, err)

	assert.Equal(t, eventlog.ComplianceFollowed, tracking.ComplianceStatus)
	assert.Equal(t, "haiku-general", tracking.RoutingAgent)
	assert.Equal(t, "00112233aabbccdd", tracking.RequestHash)
	assert.Empty(t, stderr.String())
}

func TestTrackInvocation_DirectIgnoredWarnsOnStderr(t *testing.T) {
	tracker, log, stderr := setupTracker(t)
	appendRecommendation(t, log, router.DecisionDirect, "haiku-general", testNow.Add(-5*time.Second))

	tracking, err := tracker.TrackInvocation(context.Background(), "sonnet-general", "run-2")
	require.NoError(t, err)

	assert.Equal(t, eventlog.ComplianceIgnored, tracking.ComplianceStatus)
	assert.Contains(t, stderr.String(), "haiku-general")
	assert.Contains(t, stderr.String(), "sonnet-general")
}

func TestTrackInvocation_EscalationAnyAgentFollowed(t *testing.T) {
	tracker, log, _ := setupTracker(t)
	appendRecommendation(t, log, router.DecisionEscalate, "", testNow.Add(-30*time.Second))

	tracking, err := tracker.TrackInvocation(context.Background(), "opus-architect", "run-3")
	require.NoError(t, err)
	assert.Equal(t, eventlog.ComplianceFollowed, tracking.ComplianceStatus)
}

func TestTrackInvocation_EscalationNamedAgentMismatchIgnored(t *testing.T) {
	tracker, log, stderr := setupTracker(t)
	appendRecommendation(t, log, router.DecisionEscalate, "opus-architect", testNow.Add(-10*time.Second))

	tracking, err := tracker.TrackInvocation(context.Background(), "haiku-general", "run-4")
	require.NoError(t, err)
	assert.Equal(t, eventlog.ComplianceIgnored, tracking.ComplianceStatus)
	assert.Contains(t, stderr.String(), "opus-architect")
}

func TestTrackInvocation_OutsideWindowUnknown(t *testing.T) {
	tracker, log, _ := setupTracker(t)
	appendRecommendation(t, log, router.DecisionDirect, "haiku-general", testNow.Add(-Window-time.Second))

	tracking, err := tracker.TrackInvocation(context.Background(), "haiku-general", "run-5")
	require.NoError(t, err)
	assert.Equal(t, eventlog.ComplianceUnknown, tracking.ComplianceStatus)
	assert.Empty(t, tracking.RoutingAgent)
}

func TestTrackInvocation_NoRecommendationUnknown(t *testing.T) {
	tracker, _, _ := setupTracker(t)

	tracking, err := tracker.TrackInvocation(context.Background(), "sonnet-general", "run-6")
	require.NoError(t, err)
	assert.Equal(t, eventlog.ComplianceUnknown, tracking.ComplianceStatus)
}

func TestTrackInvocation_PicksLatestWithinWindow(t *testing.T) {
	tracker, log, _ := setupTracker(t)
	appendRecommendation(t, log, router.DecisionDirect, "haiku-general", testNow.Add(-50*time.Second))
	appendRecommendation(t, log, router.DecisionDirect, "sonnet-general", testNow.Add(-5*time.Second))

	tracking, err := tracker.TrackInvocation(context.Background(), "sonnet-general", "run-7")
	require.NoError(t, err)
	assert.Equal(t, eventlog.ComplianceFollowed, tracking.ComplianceStatus)
	assert.Equal(t, "sonnet-general", tracking.RoutingAgent)
}

func TestTrackInvocation_AppendsTrackingEvent(t *testing.T) {
	tracker, log, _ := setupTracker(t)

	_, err := tracker.TrackInvocation(context.Background(), "sonnet-general", "run-8")
	require.NoError(t, err)

	records, err := log.ReadDay(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, records, 1)
	tracking, ok := records[0].RequestTracking()
	require.True(t, ok)
	assert.Equal(t, "agent", tracking.ActualHandler)
	assert.Equal(t, "sonnet-general", tracking.AgentInvoked)
}

func TestTrackDirectHandling(t *testing.T) {
	t.Run("no directive", func(t *testing.T) {
		tracker, _, _ := setupTracker(t)
		tracking, err := tracker.TrackDirectHandling(context.Background())
		require.NoError(t, err)
		assert.Equal(t, eventlog.ComplianceNoDirective, tracking.ComplianceStatus)
		assert.Equal(t, "main", tracking.ActualHandler)
	})

	t.Run("outstanding direct recommendation counts as ignored", func(t *testing.T) {
		tracker, log, _ := setupTracker(t)
		appendRecommendation(t, log, router.DecisionDirect, "haiku-general", testNow.Add(-5*time.Second))

		tracking, err := tracker.TrackDirectHandling(context.Background())
		require.NoError(t, err)
		assert.Equal(t, eventlog.ComplianceIgnored, tracking.ComplianceStatus)
	})

	t.Run("bare escalation followed by main handling is followed", func(t *testing.T) {
		tracker, log, _ := setupTracker(t)
		appendRecommendation(t, log, router.DecisionEscalate, "", testNow.Add(-5*time.Second))

		tracking, err := tracker.TrackDirectHandling(context.Background())
		require.NoError(t, err)
		assert.Equal(t, eventlog.ComplianceFollowed, tracking.ComplianceStatus)
	})
}
