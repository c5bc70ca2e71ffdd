// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package workqueue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupQueue(t *testing.T, wipLimit int) *Queue {
	t.Helper()
	return New(filepath.Join(t.TempDir(), FileName), wipLimit, zaptest.NewLogger(t))
}

func TestEnqueue_AssignsIDAndQueues(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 3)

	item, err := q.Enqueue(ctx, Item{Description: "write release notes"})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, StatusQueued, item.Status)

	state, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Queued, 1)
	assert.Empty(t, state.Active)
}

func TestEnqueue_RejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 3)

	_, err := q.Enqueue(ctx, Item{ID: "dup", Description: "first"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Item{ID: "dup", Description: "second"})
	assert.Error(t, err)
}

func TestStartNext_RespectsWIPLimit(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 2)

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, Item{ID: fmt.Sprintf("w%d", i)})
		require.NoError(t, err)
	}

	for i := 0; i < 2; i++ {
		item, err := q.StartNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, StatusInProgress, item.Status)
		assert.NotNil(t, item.StartedAt)
	}

	// At the limit the third request starts nothing.
	item, err := q.StartNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, item)

	state, err := q.Status(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(state.Active), state.WIPLimit)
}

func TestStartNext_BlocksOnUnmetDependencies(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 3)

	_, err := q.Enqueue(ctx, Item{ID: "child", Dependencies: []string{"parent"}})
	require.NoError(t, err)

	item, err := q.StartNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, item)

	_, err = q.Enqueue(ctx, Item{ID: "parent"})
	require.NoError(t, err)

	item, err = q.StartNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "parent", item.ID)

	// The child stays blocked until the parent actually completes.
	item, err = q.StartNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, item)

	require.NoError(t, q.Complete(ctx, "parent"))

	item, err = q.StartNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "child", item.ID)
}

func TestStartNext_SelectionOrder(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 10)

	// b unblocks a dependent; c does not. Same priority, so b wins; the
	// higher-priority item beats both.
	for _, item := range []Item{
		{ID: "c", Priority: 1},
		{ID: "b", Priority: 1},
		{ID: "dependent", Priority: 0, Dependencies: []string{"b"}},
		{ID: "urgent", Priority: 5},
	} {
		_, err := q.Enqueue(ctx, item)
		require.NoError(t, err)
	}

	var order []string
	for i := 0; i < 3; i++ {
		item, err := q.StartNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, item)
		order = append(order, item.ID)
	}
	assert.Equal(t, []string{"urgent", "b", "c"}, order)
}

func TestStartNext_TieBreaksOnID(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 10)

	for _, id := range []string{"zeta", "alpha"} {
		_, err := q.Enqueue(ctx, Item{ID: id, Priority: 2})
		require.NoError(t, err)
	}

	item, err := q.StartNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "alpha", item.ID)
}

func TestCompleteAndFail_Transitions(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 3)

	for _, id := range []string{"ok", "bad"} {
		_, err := q.Enqueue(ctx, Item{ID: id})
		require.NoError(t, err)
		_, err = q.StartNext(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, q.Complete(ctx, "ok"))
	require.NoError(t, q.Fail(ctx, "bad", "flaky upstream"))

	state, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Active)
	assert.Contains(t, state.CompletedIDs, "ok")
	assert.NotContains(t, state.CompletedIDs, "bad")

	byID := map[string]Item{}
	for _, item := range state.Completed {
		byID[item.ID] = item
	}
	assert.Equal(t, StatusCompleted, byID["ok"].Status)
	assert.Equal(t, StatusFailed, byID["bad"].Status)
	assert.Equal(t, "flaky upstream", byID["bad"].FailureReason)
}

func TestComplete_InvalidTransition(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 3)

	_, err := q.Enqueue(ctx, Item{ID: "still-queued"})
	require.NoError(t, err)

	err = q.Complete(ctx, "still-queued")
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, StatusQueued, transition.From)
	assert.Equal(t, StatusCompleted, transition.To)

	err = q.Complete(ctx, "no-such-item")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	// The failed transition left the state untouched.
	state, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Queued, 1)
	assert.Equal(t, StatusQueued, state.Queued[0].Status)
}

func TestCorruptState_NeverOverwritten(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 3)

	require.NoError(t, os.WriteFile(q.path, []byte("not json"), 0o600))

	_, err := q.Enqueue(ctx, Item{Description: "anything"})
	var corrupt *CorruptStateError
	require.ErrorAs(t, err, &corrupt)

	data, err := os.ReadFile(q.path)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))
}

func TestStoreLocked_SweepsStaleTemps(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t, 3)

	stale := q.path + ".99999.tmp"
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o600))
	old := time.Now().Add(-2 * tmpGracePeriod)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := q.path + ".88888.tmp"
	require.NoError(t, os.WriteFile(fresh, []byte("{}"), 0o600))

	_, err := q.Enqueue(ctx, Item{Description: "trigger a write"})
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestAdjustWIP_Rules(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		seed func(q *Queue)
		want int
	}{
		{
			name: "high stall rate shrinks to one",
			seed: func(q *Queue) {
				q.Now = func() time.Time { return now.Add(-2 * time.Hour) }
				for _, id := range []string{"a", "b"} {
					_, err := q.Enqueue(ctx, Item{ID: id})
					require.NoError(t, err)
					_, err = q.StartNext(ctx)
					require.NoError(t, err)
				}
			},
			want: 1,
		},
		{
			name: "high throughput with low stall grows to four",
			seed: func(q *Queue) {
				// 49 completions in 24h is just over two per hour.
				for i := 0; i < 49; i++ {
					id := fmt.Sprintf("done%d", i)
					_, err := q.Enqueue(ctx, Item{ID: id})
					require.NoError(t, err)
					_, err = q.StartNext(ctx)
					require.NoError(t, err)
					require.NoError(t, q.Complete(ctx, id))
				}
			},
			want: 4,
		},
		{
			name: "steady state settles on three",
			seed: func(q *Queue) {
				_, err := q.Enqueue(ctx, Item{ID: "one"})
				require.NoError(t, err)
				_, err = q.StartNext(ctx)
				require.NoError(t, err)
			},
			want: 3,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := setupQueue(t, 3)
			q.Now = func() time.Time { return now }
			tc.seed(q)
			q.Now = func() time.Time { return now }

			limit, err := q.AdjustWIP(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, limit)

			state, err := q.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, state.WIPLimit)
		})
	}
}
