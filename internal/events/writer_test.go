package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelkit/internal/events"
	"panelkit/internal/testkit"
)

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	w := events.Writer{
		DB:  testkit.OpenDB(t),
		Now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}

	require.NoError(t, w.Append(ctx, nil, events.RecordCreated, "posts", "p1", "alice", events.Payload{"title": "Hello"}))
	require.NoError(t, w.Append(ctx, nil, events.ActionEvent("delete", "success"), "posts", "p1", "alice", nil))
	require.NoError(t, w.Append(ctx, nil, events.RecordCreated, "authors", "a1", "bob", nil))

	all, err := w.List(ctx, events.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "authors", all[0].Resource)
	assert.Equal(t, "2024-05-01T12:00:00Z", all[0].TS)
	assert.Equal(t, "{}", all[0].Payload)

	posts, err := w.List(ctx, events.Filter{Resource: "posts", RecordID: "p1"})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "action.delete.success", posts[0].Type)
	assert.JSONEq(t, `{"title":"Hello"}`, posts[1].Payload)

	older, err := w.List(ctx, events.Filter{Before: all[0].ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, all[1].ID, older[0].ID)

	created, err := w.List(ctx, events.Filter{Type: events.RecordCreated})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestAfterAndLatestID(t *testing.T) {
	ctx := context.Background()
	w := events.Writer{DB: testkit.OpenDB(t)}

	latest, err := w.LatestID(ctx)
	require.NoError(t, err)
	assert.Zero(t, latest)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, w.Append(ctx, nil, events.RecordCreated, "posts", id, "alice", nil))
	}
	latest, err = w.LatestID(ctx)
	require.NoError(t, err)

	tail, err := w.After(ctx, latest-2, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "b", tail[0].RecordID)
	assert.Equal(t, "c", tail[1].RecordID)

	none, err := w.After(ctx, latest, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
