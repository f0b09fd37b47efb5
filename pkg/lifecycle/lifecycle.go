package lifecycle

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/container"
	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/paths"
	"github.com/combust-labs/darker/pkg/rootfs"
	"github.com/combust-labs/darker/pkg/supervisor"
)

const defaultStopTimeout = 10 * time.Second

// Manager coordinates the container store, rootfs builder, and process
// supervisor to implement the lifecycle operations.
type Manager struct {
	layout     *paths.Layout
	containers *container.Store
	images     *image.Store
	rootfs     *rootfs.Builder
	logger     hclog.Logger
}

// New returns a lifecycle Manager.
func New(layout *paths.Layout, containers *container.Store, images *image.Store, builder *rootfs.Builder, logger hclog.Logger) *Manager {
	return &Manager{layout: layout, containers: containers, images: images, rootfs: builder, logger: logger.Named("lifecycle")}
}

// Create materializes a new container's rootfs and persists its config
// and initial state. It does not start the payload.
func (m *Manager) Create(cfg container.Config, volumes []rootfs.VolumeSpec) error {
	if err := m.containers.Create(cfg); err != nil {
		return err
	}
	rootfsDir := m.layout.ContainerRootfs(cfg.ID)
	if err := m.rootfs.Setup(rootfsDir, cfg.ImageID, volumes); err != nil {
		return errors.Wrap(err, "failed setting up container rootfs")
	}
	return nil
}

// Run executes the container's command in the foreground, updating
// state before and after, and honours auto_remove on completion.
func (m *Manager) Run(ctx context.Context, id string, tty, interactive bool) (int, error) {
	cfg, err := m.containers.LoadConfig(id)
	if err != nil {
		return 1, err
	}
	state, err := m.containers.LoadState(id)
	if err != nil {
		return 1, err
	}
	status := StatusFromState(state)
	if !IsValidTransition(status, EventStart) {
		return 1, derrors.ErrInvalidState
	}

	now := time.Now().UTC()
	state.Running = true
	state.StartedAt = &now
	state.ExitCode = nil
	state.FinishedAt = nil
	if err := m.containers.SaveState(id, state); err != nil {
		return 1, err
	}

	imageEnv, workdir := m.imageDefaults(cfg)

	exitCode, spawnErr := supervisor.SpawnForeground(ctx, m.logger, supervisor.ForegroundOptions{
		Command:     fullCommand(cfg),
		Rootfs:      m.layout.ContainerRootfs(id),
		WorkingDir:  workdir,
		Env:         supervisor.BuildEnvironment(cfg.Hostname, "", append(imageEnv, cfg.Env...), nil),
		TTY:         tty,
		Interactive: interactive,
		LogPath:     m.layout.ContainerLog(id),
	})

	finished := time.Now().UTC()
	state.Running = false
	state.PID = nil
	state.FinishedAt = &finished
	code := exitCode
	state.ExitCode = &code
	if err := m.containers.SaveState(id, state); err != nil {
		return exitCode, err
	}

	if cfg.AutoRemove {
		if err := m.Remove(id); err != nil {
			m.logger.Warn("auto-remove failed", "id", id, "reason", err)
		}
	}

	return exitCode, spawnErr
}

// StartDetached launches the container's command in the background and
// returns immediately, recording the PID.
func (m *Manager) StartDetached(id string) error {
	cfg, err := m.containers.LoadConfig(id)
	if err != nil {
		return err
	}
	state, err := m.containers.LoadState(id)
	if err != nil {
		return err
	}
	status := StatusFromState(state)
	if !IsValidTransition(status, EventStart) {
		return derrors.ErrInvalidState
	}

	imageEnv, workdir := m.imageDefaults(cfg)
	env := supervisor.BuildEnvironment(cfg.Hostname, "", append(imageEnv, cfg.Env...), nil)

	pid, err := supervisor.SpawnDetached(supervisor.DetachedOptions{
		Command:    fullCommand(cfg),
		Rootfs:     m.layout.ContainerRootfs(id),
		WorkingDir: workdir,
		Env:        env,
		LogPath:    m.layout.ContainerLog(id),
		PIDPath:    m.layout.ContainerPID(id),
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	state.Running = true
	state.PID = &pid
	state.StartedAt = &now
	state.ExitCode = nil
	state.FinishedAt = nil
	return m.containers.SaveState(id, state)
}

// Stop sends SIGTERM, waits up to timeout (default 10s), then SIGKILLs.
// A stop on an already-stopped container succeeds as a no-op. Never
// returns an error for an unresponsive child.
func (m *Manager) Stop(id string, timeout *time.Duration) error {
	state, err := m.containers.LoadState(id)
	if err != nil {
		return err
	}
	if !state.Running || state.PID == nil {
		return nil
	}

	grace := defaultStopTimeout
	if timeout != nil {
		grace = *timeout
	}
	supervisor.Stop(*state.PID, grace)

	finished := time.Now().UTC()
	state.Running = false
	state.PID = nil
	state.FinishedAt = &finished
	return m.containers.SaveState(id, state)
}

// Exec runs a second foreground invocation against a running
// container's rootfs with a merged environment.
func (m *Manager) Exec(ctx context.Context, id string, cmd, env []string, workdir, user string, tty, interactive bool) (int, error) {
	cfg, err := m.containers.LoadConfig(id)
	if err != nil {
		return 1, err
	}
	state, err := m.containers.LoadState(id)
	if err != nil {
		return 1, err
	}
	if !state.Running {
		return 1, derrors.ErrContainerNotRunning
	}

	imageEnv, defaultWorkdir := m.imageDefaults(cfg)
	if workdir == "" {
		workdir = defaultWorkdir
	}

	merged := supervisor.BuildEnvironment(cfg.Hostname, "", append(imageEnv, cfg.Env...), env)

	return supervisor.SpawnForeground(ctx, m.logger, supervisor.ForegroundOptions{
		Command:     cmd,
		Rootfs:      m.layout.ContainerRootfs(id),
		WorkingDir:  workdir,
		Env:         merged,
		TTY:         tty,
		Interactive: interactive,
	})
}

// Remove tears down a container's rootfs and store record. Only
// permitted from created or stopped; a running or paused container
// must be stopped first.
func (m *Manager) Remove(id string) error {
	state, err := m.containers.LoadState(id)
	if err != nil {
		return err
	}
	status := StatusFromState(state)
	if !IsValidTransition(status, EventRemove) {
		return derrors.ErrInvalidState
	}

	if err := rootfs.Cleanup(m.layout.ContainerRootfs(id)); err != nil {
		return errors.Wrap(err, "failed cleaning up container rootfs")
	}
	return m.containers.Remove(id)
}

func (m *Manager) imageDefaults(cfg *container.Config) ([]string, string) {
	workdir := cfg.WorkingDir
	if image.IsScratch(cfg.ImageID) {
		return nil, workdir
	}
	meta, err := m.images.LoadMetadata(cfg.ImageID)
	if err != nil {
		return nil, workdir
	}
	if workdir == "" || workdir == "/" {
		if meta.Config.WorkingDir != "" {
			workdir = meta.Config.WorkingDir
		}
	}
	return meta.Config.Env, workdir
}

func fullCommand(cfg *container.Config) []string {
	full := append([]string{}, cfg.Entrypoint...)
	command := cfg.Command
	if len(command) == 0 {
		command = []string{"/bin/sh"}
	}
	full = append(full, command...)
	return full
}
