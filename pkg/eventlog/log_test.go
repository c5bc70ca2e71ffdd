// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/switchboard/pkg/project"
)

func testProject() *project.Context {
	return &project.Context{ID: "abcdef0123456789", Root: "/tmp/demo", Name: "demo"}
}

func setupLog(t *testing.T) *Log {
	t.Helper()
	return New(t.TempDir(), zaptest.NewLogger(t))
}

func TestAppendAndReadDay(t *testing.T) {
	ctx := context.Background()
	log := setupLog(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		err := log.Append(ctx, &Metric{
			RecordType: TypeMetric,
			Solution:   "router",
			Name:       "requests",
			Value:      float64(i),
			Timestamp:  now,
			Project:    testProject(),
		})
		require.NoError(t, err)
	}

	records, err := log.ReadDay(ctx, now)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Insertion order is preserved.
	for i, rec := range records {
		m, ok := rec.Metric()
		require.True(t, ok)
		assert.Equal(t, float64(i), m.Value)
		assert.Equal(t, "abcdef0123456789", m.Project.ID)
	}
}

func TestReadDay_SkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	log := setupLog(t)
	now := time.Now()

	require.NoError(t, log.Append(ctx, &Metric{
		RecordType: TypeMetric, Solution: "s", Name: "n", Value: 1,
		Timestamp: now, Project: testProject(),
	}))

	// Corrupt the file with garbage and a JSON object missing record_type.
	path := log.FileFor(now)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n{\"timestamp\":\"2026-01-01T00:00:00Z\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, log.Append(ctx, &Metric{
		RecordType: TypeMetric, Solution: "s", Name: "n", Value: 2,
		Timestamp: now, Project: testProject(),
	}))

	records, err := log.ReadDay(ctx, now)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadDay_MissingFileYieldsNothing(t *testing.T) {
	log := setupLog(t)
	records, err := log.ReadDay(context.Background(), time.Now().AddDate(0, 0, -5))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadRange_SpansDays(t *testing.T) {
	ctx := context.Background()
	log := setupLog(t)

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for offset := 0; offset < 3; offset++ {
		day := base.AddDate(0, 0, offset)
		log.Now = func() time.Time { return day }
		require.NoError(t, log.Append(ctx, &Metric{
			RecordType: TypeMetric, Solution: "s", Name: "n", Value: float64(offset),
			Timestamp: day, Project: testProject(),
		}))
	}

	records, err := log.ReadRange(ctx, base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = log.ReadRange(ctx, base, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestConcurrentWriters_BothLinesParseable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Now()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			log := New(dir, zaptest.NewLogger(t))
			for i := 0; i < perWriter; i++ {
				err := log.Append(ctx, &Metric{
					RecordType: TypeMetric,
					Solution:   "concurrency",
					Name:       fmt.Sprintf("w%d", w),
					Value:      float64(i),
					Timestamp:  now,
					Project:    testProject(),
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	log := New(dir, zaptest.NewLogger(t))
	records, err := log.ReadDay(ctx, now)
	require.NoError(t, err)
	assert.Len(t, records, writers*perWriter)
	for _, rec := range records {
		assert.True(t, json.Valid(rec.Raw))
		assert.Equal(t, TypeMetric, rec.Type)
	}
}

func TestTail(t *testing.T) {
	ctx := context.Background()
	log := setupLog(t)
	now := time.Now()

	for i := 0; i < 10; i++ {
		require.NoError(t, log.Append(ctx, &Metric{
			RecordType: TypeMetric, Solution: "s", Name: "n", Value: float64(i),
			Timestamp: now, Project: testProject(),
		}))
	}

	records, err := log.Tail(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	m, ok := records[2].Metric()
	require.True(t, ok)
	assert.Equal(t, 9.0, m.Value)
}

func TestDailyFiles_SortedOldestFirst(t *testing.T) {
	ctx := context.Background()
	log := setupLog(t)

	days := []time.Time{
		time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC),
	}
	for _, day := range days {
		d := day
		log.Now = func() time.Time { return d }
		require.NoError(t, log.Append(ctx, &Metric{
			RecordType: TypeMetric, Solution: "s", Name: "n", Value: 1,
			Timestamp: d, Project: testProject(),
		}))
	}

	files, err := log.DailyFiles()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "2026-08-20.jsonl", filepath.Base(files[0]))
	assert.Equal(t, "2026-08-22.jsonl", filepath.Base(files[2]))
}

func TestEventRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	events := []any{
		&RoutingRecommendation{
			RecordType:  TypeRoutingRecommendation,
			Timestamp:   now,
			RequestHash: "deadbeefcafe0123",
			Recommendation: Recommendation{
				Agent: "haiku-general", Reason: "High-confidence agent match", Confidence: 0.92,
			},
			FullAnalysis: Analysis{
				Decision: "DIRECT", Agent: "haiku-general",
				Reason: "High-confidence agent match", Confidence: 0.92,
			},
			Project: testProject(),
		},
		&RequestTracking{
			RecordType:       TypeRequestTracking,
			Timestamp:        now,
			RequestHash:      "deadbeefcafe0123",
			RoutingDecision:  "DIRECT",
			RoutingAgent:     "haiku-general",
			ActualHandler:    "agent",
			AgentInvoked:     "haiku-general",
			ComplianceStatus: ComplianceFollowed,
			Project:          testProject(),
		},
		&AgentEvent{
			RecordType: TypeAgentEvent,
			Event:      AgentStop,
			Timestamp:  now,
			AgentType:  "haiku-general",
			ModelTier:  "haiku",
			// stop events carry the run duration
			DurationSec: 12.5,
			Project:     testProject(),
		},
	}

	for _, event := range events {
		data, err := json.Marshal(event)
		require.NoError(t, err)

		switch e := event.(type) {
		case *RoutingRecommendation:
			var out RoutingRecommendation
			require.NoError(t, json.Unmarshal(data, &out))
			assert.True(t, e.Timestamp.Equal(out.Timestamp))
			out.Timestamp = e.Timestamp
			assert.Equal(t, *e, out)
		case *RequestTracking:
			var out RequestTracking
			require.NoError(t, json.Unmarshal(data, &out))
			out.Timestamp = e.Timestamp
			assert.Equal(t, *e, out)
		case *AgentEvent:
			var out AgentEvent
			require.NoError(t, json.Unmarshal(data, &out))
			out.Timestamp = e.Timestamp
			assert.Equal(t, *e, out)
		}
	}
}
