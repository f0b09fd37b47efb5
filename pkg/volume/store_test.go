package volume

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/paths"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	layout := paths.New(t.TempDir())
	require.NoError(t, layout.EnsureDirectories())
	return New(layout, hclog.NewNullLogger())
}

func TestCreateFindRemove(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Create("data", map[string]string{"team": "infra"})
	require.NoError(t, err)
	assert.Equal(t, "local", meta.Driver)
	assert.Equal(t, "infra", meta.Labels["team"])

	found, err := store.Find("data")
	require.NoError(t, err)
	assert.Equal(t, meta.Mountpoint, found.Mountpoint)

	require.NoError(t, store.Remove("data"))
	_, err = store.Find("data")
	assert.ErrorIs(t, err, derrors.ErrVolumeNotFound)
}

func TestListSortsByName(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("zeta", nil)
	require.NoError(t, err)
	_, err = store.Create("alpha", nil)
	require.NoError(t, err)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}

func TestRemoveUnknownVolumeErrors(t *testing.T) {
	store := newTestStore(t)
	err := store.Remove("missing")
	assert.ErrorIs(t, err, derrors.ErrVolumeNotFound)
}
