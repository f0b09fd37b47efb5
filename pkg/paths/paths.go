// Package paths maps logical object identities onto the on-disk layout
// rooted at $ROOT (default $HOME/.darker), the sole place in the module
// that knows the directory/file naming scheme.
package paths

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const defaultRootDirName = ".darker"

// Layout is the deterministic mapping from object IDs to on-disk paths.
type Layout struct {
	root string
}

// DefaultRoot returns $HOME/.darker.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed resolving user home directory")
	}
	return filepath.Join(home, defaultRootDirName), nil
}

// New builds a Layout rooted at root.
func New(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the layout's root directory.
func (l *Layout) Root() string { return l.root }

// EnsureDirectories idempotently creates the top-level directories.
func (l *Layout) EnsureDirectories() error {
	for _, dir := range []string{
		l.ContainersDir(),
		l.ImagesDir(),
		l.LayersDir(),
		l.VolumesDir(),
		l.TmpDir(),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed creating directory %s", dir)
		}
	}
	return nil
}

// Containers.

func (l *Layout) ContainersDir() string { return filepath.Join(l.root, "containers") }
func (l *Layout) ContainerDir(id string) string {
	return filepath.Join(l.ContainersDir(), id)
}
func (l *Layout) ContainerConfig(id string) string {
	return filepath.Join(l.ContainerDir(id), "config.json")
}
func (l *Layout) ContainerState(id string) string {
	return filepath.Join(l.ContainerDir(id), "state.json")
}
func (l *Layout) ContainerRootfs(id string) string {
	return filepath.Join(l.ContainerDir(id), "rootfs")
}
func (l *Layout) ContainerDiff(id string) string {
	return filepath.Join(l.ContainerDir(id), "diff")
}
func (l *Layout) ContainerLog(id string) string {
	return filepath.Join(l.ContainerDir(id), "container.log")
}
func (l *Layout) ContainerPID(id string) string {
	return filepath.Join(l.ContainerDir(id), "container.pid")
}
func (l *Layout) ContainerSandboxProfile(id string) string {
	return filepath.Join(l.ContainerDir(id), "sandbox.sb")
}
func (l *Layout) ContainerIndex() string { return filepath.Join(l.root, "containers.json") }

// Images.

func (l *Layout) ImagesDir() string { return filepath.Join(l.root, "images") }
func (l *Layout) ImageDir(id string) string {
	return filepath.Join(l.ImagesDir(), id)
}
func (l *Layout) ImageManifest(id string) string {
	return filepath.Join(l.ImageDir(id), "manifest.json")
}
func (l *Layout) ImageConfig(id string) string {
	return filepath.Join(l.ImageDir(id), "config.json")
}
func (l *Layout) ImageMetadata(id string) string {
	return filepath.Join(l.ImageDir(id), "metadata.json")
}
func (l *Layout) ImageIndex() string { return filepath.Join(l.root, "images.json") }

// Layers.

func (l *Layout) LayersDir() string { return filepath.Join(l.root, "layers") }
func (l *Layout) LayerDir(digest string) string {
	return filepath.Join(l.LayersDir(), digest)
}
func (l *Layout) LayerTar(digest string) string {
	return filepath.Join(l.LayerDir(digest), "layer.tar")
}
func (l *Layout) LayerExtracted(digest string) string {
	return filepath.Join(l.LayerDir(digest), "extracted")
}

// Volumes.

func (l *Layout) VolumesDir() string { return filepath.Join(l.root, "volumes") }
func (l *Layout) Volume(name string) string {
	return filepath.Join(l.VolumesDir(), name)
}
func (l *Layout) VolumeMetadata(name string) string {
	return filepath.Join(l.Volume(name), "_metadata.json")
}

// Tmp.

func (l *Layout) TmpDir() string { return filepath.Join(l.root, "tmp") }
