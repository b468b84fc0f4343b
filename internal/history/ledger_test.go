package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAppendAndByRun(t *testing.T) {
	l, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	ctx := t.Context()

	started, err := NewEvent("run-1", TypeRunStarted, "", RunPayload{CheckoutRoot: "/deps"})
	require.NoError(t, err)
	synced, err := NewEvent("run-1", TypeRepoSynced, "web", SyncPayload{URL: "u", Ref: "8.0", Changed: true, Cloned: true})
	require.NoError(t, err)
	synced.Metadata = map[string]string{"worker": "1"}
	other, err := NewEvent("run-2", TypeRunStarted, "", RunPayload{})
	require.NoError(t, err)

	for _, e := range []Event{started, synced, other} {
		require.NoError(t, l.Append(ctx, e))
	}

	events, err := l.ByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeRunStarted, events[0].Type)
	assert.Equal(t, "web", events[1].Project)
	assert.Equal(t, "1", events[1].Metadata["worker"])

	var p SyncPayload
	require.NoError(t, events[1].Decode(&p))
	assert.True(t, p.Cloned)
	assert.Equal(t, "8.0", p.Ref)
}

func TestLedgerRecentIsChronological(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	ctx := t.Context()

	for _, typ := range []string{TypeRunStarted, TypeRepoSynced, TypeRequirementsSkipped, TypeRunFinished} {
		e, err := NewEvent("run", typ, "", struct{}{})
		require.NoError(t, err)
		require.NoError(t, l.Append(ctx, e))
	}

	events, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeRequirementsSkipped, events[0].Type)
	assert.Equal(t, TypeRunFinished, events[1].Type)
}

func TestNopLedger(t *testing.T) {
	var l Ledger = NopLedger{}
	require.NoError(t, l.Append(t.Context(), Event{}))
	events, err := l.Recent(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
