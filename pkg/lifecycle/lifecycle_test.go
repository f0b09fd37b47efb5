package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/combust-labs/darker/pkg/container"
	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/layer"
	"github.com/combust-labs/darker/pkg/paths"
	"github.com/combust-labs/darker/pkg/rootfs"
)

func newTestManager(t *testing.T) (*Manager, *container.Store) {
	t.Helper()
	tmp := t.TempDir()
	layout := paths.New(tmp)
	require.NoError(t, layout.EnsureDirectories())
	layers := layer.New(layout, hclog.NewNullLogger())
	images := image.New(layout, layers, hclog.NewNullLogger())
	containers := container.New(layout, hclog.NewNullLogger())
	builder := rootfs.New(images, layers, hclog.NewNullLogger())
	return New(layout, containers, images, builder, hclog.NewNullLogger()), containers
}

func TestRunAutoRemoveScratchEcho(t *testing.T) {
	manager, containers := newTestManager(t)

	id, err := container.NewID()
	require.NoError(t, err)
	cfg := container.DefaultConfig()
	cfg.ID = id
	cfg.Name = "x"
	cfg.Image = "scratch"
	cfg.ImageID = "scratch"
	cfg.Command = []string{"/bin/echo", "hi"}
	cfg.AutoRemove = true

	require.NoError(t, manager.Create(cfg, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := manager.Run(ctx, id, false, false)
	require.NoError(t, err)
	require.Equal(t, 0, code)

	_, findErr := containers.Find("x")
	require.Error(t, findErr)
}

func TestRunRejectsInvalidState(t *testing.T) {
	manager, containers := newTestManager(t)

	id, err := container.NewID()
	require.NoError(t, err)
	cfg := container.DefaultConfig()
	cfg.ID = id
	cfg.Name = "y"
	cfg.Image = "scratch"
	cfg.ImageID = "scratch"
	cfg.Command = []string{"/bin/true"}
	require.NoError(t, manager.Create(cfg, nil))

	state, err := containers.LoadState(id)
	require.NoError(t, err)
	state.Running = true
	require.NoError(t, containers.SaveState(id, state))

	ctx := context.Background()
	_, err = manager.Run(ctx, id, false, false)
	require.Error(t, err)
}

func TestRemoveRejectsRunningContainer(t *testing.T) {
	manager, containers := newTestManager(t)

	id, err := container.NewID()
	require.NoError(t, err)
	cfg := container.DefaultConfig()
	cfg.ID = id
	cfg.Name = "z"
	cfg.Image = "scratch"
	cfg.ImageID = "scratch"
	cfg.Command = []string{"/bin/true"}
	require.NoError(t, manager.Create(cfg, nil))

	state, err := containers.LoadState(id)
	require.NoError(t, err)
	state.Running = true
	require.NoError(t, containers.SaveState(id, state))

	require.ErrorIs(t, manager.Remove(id), derrors.ErrInvalidState)

	_, findErr := containers.Find("z")
	require.NoError(t, findErr, "a rejected remove must not delete the container")
}
