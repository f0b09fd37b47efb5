package container

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/paths"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	layout := paths.New(tmp)
	require.NoError(t, layout.EnsureDirectories())
	return New(layout, hclog.NewNullLogger())
}

func TestCreateFindRemove(t *testing.T) {
	store := newTestStore(t)

	cfg := DefaultConfig()
	cfg.ID = "abc123def456"
	cfg.Name = "x"
	require.NoError(t, store.Create(cfg))

	id, err := store.Find("x")
	require.NoError(t, err)
	require.Equal(t, cfg.ID, id)

	id, err = store.Find(cfg.ID[:12])
	require.NoError(t, err)
	require.Equal(t, cfg.ID, id)

	require.NoError(t, store.Remove(cfg.ID))
	_, err = store.Find("x")
	require.ErrorIs(t, err, derrors.ErrContainerNotFound)
}

func TestCreateNameCollision(t *testing.T) {
	store := newTestStore(t)

	cfg1 := DefaultConfig()
	cfg1.ID = "id1"
	cfg1.Name = "dup"
	require.NoError(t, store.Create(cfg1))

	cfg2 := DefaultConfig()
	cfg2.ID = "id2"
	cfg2.Name = "dup"
	err := store.Create(cfg2)
	require.ErrorIs(t, err, derrors.ErrContainerExists)

	// prior container untouched
	id, err := store.Find("dup")
	require.NoError(t, err)
	require.Equal(t, "id1", id)
}

func TestSaveStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	cfg := DefaultConfig()
	cfg.ID = "id1"
	cfg.Name = "x"
	require.NoError(t, store.Create(cfg))

	pid := 42
	state := &State{Running: true, PID: &pid}
	require.NoError(t, store.SaveState(cfg.ID, state))

	loaded, err := store.LoadState(cfg.ID)
	require.NoError(t, err)
	require.True(t, loaded.Running)
	require.Equal(t, 42, *loaded.PID)
}

func TestNewIDIsHex32(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)
	require.Len(t, id, 32)
}
