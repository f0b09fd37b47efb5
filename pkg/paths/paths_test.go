package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutStructure(t *testing.T) {
	tmp := t.TempDir()
	layout := New(tmp)

	assert.Equal(t, tmp, layout.Root())
	assert.Equal(t, filepath.Join(tmp, "containers"), layout.ContainersDir())
	assert.Equal(t, filepath.Join(tmp, "images"), layout.ImagesDir())
	assert.Equal(t, filepath.Join(tmp, "volumes"), layout.VolumesDir())
}

func TestContainerPaths(t *testing.T) {
	tmp := t.TempDir()
	layout := New(tmp)

	id := "abc123"
	assert.Equal(t, filepath.Join(tmp, "containers", id, "config.json"), layout.ContainerConfig(id))
	assert.Equal(t, filepath.Join(tmp, "containers", id, "rootfs"), layout.ContainerRootfs(id))
}

func TestEnsureDirectories(t *testing.T) {
	tmp := t.TempDir()
	layout := New(tmp)

	require.NoError(t, layout.EnsureDirectories())

	assert.DirExists(t, layout.ContainersDir())
	assert.DirExists(t, layout.ImagesDir())
	assert.DirExists(t, layout.VolumesDir())
	assert.DirExists(t, layout.TmpDir())
}
