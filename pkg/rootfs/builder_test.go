package rootfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/layer"
	"github.com/combust-labs/darker/pkg/paths"
)

func TestParseVolumeSpec(t *testing.T) {
	spec := ParseVolumeSpec("/host/a:/container/a:ro")
	require.Equal(t, "/host/a", spec.HostPath)
	require.Equal(t, "/container/a", spec.ContainerPath)
	require.True(t, spec.ReadOnly)

	spec2 := ParseVolumeSpec("/host/b:/container/b")
	require.False(t, spec2.ReadOnly)
}

func TestSetupScratchThenCleanup(t *testing.T) {
	tmp := t.TempDir()
	layout := paths.New(tmp)
	require.NoError(t, layout.EnsureDirectories())
	layers := layer.New(layout, hclog.NewNullLogger())
	images := image.New(layout, layers, hclog.NewNullLogger())
	builder := New(images, layers, hclog.NewNullLogger())

	containerDir := filepath.Join(tmp, "containers", "c1")
	rootfsDir := filepath.Join(containerDir, "rootfs")

	require.NoError(t, builder.Setup(rootfsDir, "scratch", nil))

	for _, dir := range []string{"etc", "tmp", "var/log"} {
		require.DirExists(t, filepath.Join(rootfsDir, dir))
	}

	require.NoError(t, Cleanup(containerDir))
	_, err := os.Stat(containerDir)
	require.True(t, os.IsNotExist(err))
}

func TestApplyLayersCopyMerge(t *testing.T) {
	tmp := t.TempDir()
	layout := paths.New(tmp)
	require.NoError(t, layout.EnsureDirectories())
	layers := layer.New(layout, hclog.NewNullLogger())
	images := image.New(layout, layers, hclog.NewNullLogger())
	builder := New(images, layers, hclog.NewNullLogger())

	srcDir := filepath.Join(tmp, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "usr/local/bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "usr/local/bin", "tool"), []byte("x"), 0644))

	digest, err := layers.CreateFromDir(srcDir)
	require.NoError(t, err)

	require.NoError(t, images.Store("img1", "", "", "", []string{digest}, 0, image.RunConfig{}))

	rootfsDir := filepath.Join(tmp, "containers", "c1", "rootfs")
	require.NoError(t, builder.Setup(rootfsDir, "img1", nil))

	require.FileExists(t, filepath.Join(rootfsDir, "usr/local/bin", "tool"))
}
