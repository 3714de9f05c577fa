package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/store"
	"github.com/nhle/mail-agent/tests/testutil"
)

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestRecordAndListActions(t *testing.T) {
	s := testutil.NewTestStore(t)
	s.SetClock(steppingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	require.NoError(t, s.RecordAction(ctx, agent.Action{
		SessionID: "s1", Kind: agent.KindListMail, OK: true,
		Outcome: "3 result(s)", Duration: 120 * time.Millisecond,
	}))
	require.NoError(t, s.RecordAction(ctx, agent.Action{
		SessionID: "s1", Kind: agent.KindReadMail, Target: "m-1", OK: false,
		Outcome: "message not found",
	}))
	require.NoError(t, s.RecordAction(ctx, agent.Action{
		SessionID: "s2", Kind: agent.KindDeleteMail, Target: "m-9", OK: true,
	}))

	got, err := s.ListActions(ctx, store.ActionFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ReadMail", got[0].Kind)
	assert.Equal(t, "m-1", got[0].Target)
	assert.False(t, got[0].OK)
	assert.Equal(t, "message not found", got[0].Outcome)

	assert.Equal(t, "ListMail", got[1].Kind)
	assert.True(t, got[1].OK)
	assert.Equal(t, int64(120), got[1].DurationMS)
	assert.NotEmpty(t, got[1].ID)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
}

func TestListActionsFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	s.SetClock(steppingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordAction(ctx, agent.Action{SessionID: "s1", Kind: agent.KindListMail, OK: true}))
	}
	require.NoError(t, s.RecordAction(ctx, agent.Action{SessionID: "s1", Kind: agent.KindSendMail, OK: true}))

	t.Run("by kind", func(t *testing.T) {
		got, err := s.ListActions(ctx, store.ActionFilter{Kind: "SendMail"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "SendMail", got[0].Kind)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := s.ListActions(ctx, store.ActionFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("unknown session", func(t *testing.T) {
		got, err := s.ListActions(ctx, store.ActionFilter{SessionID: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestRecordActionRejectsInvalidKind(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.RecordAction(context.Background(), agent.Action{SessionID: "s1", Kind: agent.ToolKind(99)})
	assert.Error(t, err)
}

func TestPruneActions(t *testing.T) {
	s := testutil.NewTestStore(t)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.SetClock(steppingClock(start))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.RecordAction(ctx, agent.Action{SessionID: "s1", Kind: agent.KindReadMail, OK: true}))
	}

	// Entries are stamped start+1s .. start+4s.
	n, err := s.PruneActions(ctx, start.Add(2*time.Second+time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.ListActions(ctx, store.ActionFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := t.TempDir() + "/journal.db"

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordAction(context.Background(), agent.Action{SessionID: "s1", Kind: agent.KindListMail, OK: true}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.ListActions(context.Background(), store.ActionFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
