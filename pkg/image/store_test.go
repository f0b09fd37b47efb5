package image

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/combust-labs/darker/pkg/layer"
	"github.com/combust-labs/darker/pkg/paths"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	layout := paths.New(tmp)
	require.NoError(t, layout.EnsureDirectories())
	layers := layer.New(layout, hclog.NewNullLogger())
	return New(layout, layers, hclog.NewNullLogger())
}

func TestStoreAndFindImage(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Store("deadbeef", "library/alpine", "3.18", "", []string{"abc"}, 42, RunConfig{}))

	id, err := store.Find("library/alpine:3.18")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", id)

	id, err = store.Find("deadbeef")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", id)
}

func TestFindDefaultsToLatest(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Store("id1", "library/alpine", "latest", "", nil, 0, RunConfig{}))

	id, err := store.Find("library/alpine")
	require.NoError(t, err)
	require.Equal(t, "id1", id)
}

func TestRemoveAndPruneLayers(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Store("imgA", "a/a", "latest", "", []string{"layer1", "layer2"}, 0, RunConfig{}))
	require.NoError(t, store.Store("imgB", "b/b", "latest", "", []string{"layer2"}, 0, RunConfig{}))

	require.NoError(t, store.Remove("imgA", true))

	_, err := store.Find("a/a:latest")
	require.Error(t, err)

	meta, err := store.LoadMetadata("imgB")
	require.NoError(t, err)
	require.Equal(t, []string{"layer2"}, meta.Layers)
}

func TestListSkipsUnparseable(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Store("imgA", "a/a", "latest", "", nil, 0, RunConfig{}))

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
}
