package infra

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

func TestBoltStateStore_Journal(t *testing.T) {
	store, err := OpenStateStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	// Empty store
	j, err := store.LoadJournal()
	require.NoError(t, err)
	assert.Nil(t, j)

	want := domain.Journal{
		PID: 4242,
		Snapshot: domain.Snapshot{
			Session: domain.Session{
				Phase:     domain.PhaseFocus,
				Kind:      domain.KindFocus,
				Name:      "Focus",
				Total:     1500,
				Remaining: 1200,
			},
			Cursor:    2,
			Completed: 1,
			Blocked:   []string{"example.com", "reddit.com"},
		},
		UpdatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveJournal(want))

	got, err := store.LoadJournal()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.PID, got.PID)
	assert.Equal(t, want.Snapshot.Blocked, got.Snapshot.Blocked)
	assert.Equal(t, want.Snapshot.Session.Remaining, got.Snapshot.Session.Remaining)
	assert.Equal(t, 2, got.Snapshot.Cursor)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))

	require.NoError(t, store.ClearJournal())
	j, err = store.LoadJournal()
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestBoltStateStore_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenStateStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveJournal(domain.Journal{PID: 7, Snapshot: domain.Snapshot{Blocked: []string{"x.com"}}}))
	require.NoError(t, store.Close())

	store, err = OpenStateStore(dir)
	require.NoError(t, err)
	defer store.Close()

	j, err := store.LoadJournal()
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, []string{"x.com"}, j.Snapshot.Blocked)
}

func TestBoltStateStore_SingleInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), stateDBName)

	first, err := OpenStateStoreWithTimeout(path, 100*time.Millisecond)
	require.NoError(t, err)

	_, err = OpenStateStoreWithTimeout(path, 100*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrInstanceRunning)

	require.NoError(t, first.Close())

	second, err := OpenStateStoreWithTimeout(path, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, path, second.Path())
	require.NoError(t, second.Close())
}
