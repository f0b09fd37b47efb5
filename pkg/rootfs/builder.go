// Package rootfs materialises a per-container root filesystem by
// merging extracted layer directories and host-bridge symlinks into a
// single tree, since the host provides no union mount.
package rootfs

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/layer"
)

var standardDirs = []string{
	"etc", "tmp", "var", "var/log", "var/run", "var/tmp",
	"home", "root", "proc", "dev", "opt", "usr/local/bin",
}

var devFiles = []string{"null", "zero", "random", "urandom"}

// hostBridge pairs a container-relative path with the host path it
// should be bridged to.
type hostBridge struct {
	containerPath string
	hostPath      string
}

var hostBridges = []hostBridge{
	{"bin", "/bin"},
	{"sbin", "/sbin"},
	{"usr/bin", "/usr/bin"},
	{"usr/sbin", "/usr/sbin"},
	{"usr/lib", "/usr/lib"},
	{"usr/libexec", "/usr/libexec"},
	{"usr/share", "/usr/share"},
	{"System", "/System"},
	{"Library/Frameworks", "/Library/Frameworks"},
}

// VolumeSpec is a parsed "host_path:container_path[:ro]" volume
// argument.
type VolumeSpec struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// ParseVolumeSpec parses a "host:container[:ro]" string.
func ParseVolumeSpec(s string) VolumeSpec {
	parts := strings.Split(s, ":")
	spec := VolumeSpec{}
	if len(parts) > 0 {
		spec.HostPath = parts[0]
	}
	if len(parts) > 1 {
		spec.ContainerPath = parts[1]
	}
	if len(parts) > 2 && parts[2] == "ro" {
		spec.ReadOnly = true
	}
	return spec
}

// Builder constructs per-container rootfs trees.
type Builder struct {
	images *image.Store
	layers *layer.Store
	logger hclog.Logger
}

// New returns a rootfs Builder.
func New(images *image.Store, layers *layer.Store, logger hclog.Logger) *Builder {
	return &Builder{images: images, layers: layers, logger: logger.Named("rootfs")}
}

// Setup builds rootfsDir for imageID, applying volumes afterwards. The
// "scratch" sentinel image id produces an empty rootfs (standard dirs
// and host bridges only, no layers).
func (b *Builder) Setup(rootfsDir, imageID string, volumes []VolumeSpec) error {
	if err := os.MkdirAll(rootfsDir, 0755); err != nil {
		return errors.Wrap(err, "failed creating rootfs directory")
	}

	if err := b.createStandardDirs(rootfsDir); err != nil {
		return err
	}
	b.setupSystemSymlinks(rootfsDir)

	if image.IsScratch(imageID) {
		return b.setupVolumes(rootfsDir, volumes)
	}

	meta, err := b.images.LoadMetadata(imageID)
	if err != nil {
		return errors.Wrap(err, "failed loading image metadata for rootfs setup")
	}
	if err := b.applyLayers(rootfsDir, meta.Layers); err != nil {
		return err
	}
	return b.setupVolumes(rootfsDir, volumes)
}

func (b *Builder) createStandardDirs(rootfsDir string) error {
	for _, dir := range standardDirs {
		if err := os.MkdirAll(filepath.Join(rootfsDir, dir), 0755); err != nil {
			return errors.Wrapf(err, "failed creating standard directory %s", dir)
		}
	}
	for _, name := range devFiles {
		path := filepath.Join(rootfsDir, "dev", name)
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "failed creating device placeholder %s", name)
		}
		f.Close()
	}
	return nil
}

// setupSystemSymlinks creates host-bridge symlinks. Failures are
// demoted to debug logs and never fail the overall setup — required to
// run on a host with SIP or similar protections that may block some
// target paths.
func (b *Builder) setupSystemSymlinks(rootfsDir string) {
	for _, bridge := range hostBridges {
		target := filepath.Join(rootfsDir, bridge.containerPath)
		if _, err := os.Stat(bridge.hostPath); err != nil {
			continue
		}
		if _, err := os.Lstat(target); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			b.logger.Debug("failed creating parent for host bridge symlink", "path", target, "reason", err)
			continue
		}
		if err := os.Symlink(bridge.hostPath, target); err != nil {
			b.logger.Debug("failed creating host bridge symlink", "path", target, "target", bridge.hostPath, "reason", err)
		}
	}
}

// applyLayers extracts (or reuses the extraction of) each layer and
// copy-merges it into rootfsDir, bottom to top.
func (b *Builder) applyLayers(rootfsDir string, digests []string) error {
	for _, digest := range digests {
		extractedDir, err := b.layers.Extract(digest)
		if err != nil {
			return errors.Wrapf(err, "failed extracting layer %s", digest)
		}
		b.copyMerge(extractedDir, rootfsDir)
	}
	return nil
}

// copyMerge recursively merges src into dst. Files overwrite non-symlink
// destinations; existing destination symlinks are left alone (the host
// bridge wins); directories are union-merged; any failure for an
// individual entry is logged at debug and the walk continues.
func (b *Builder) copyMerge(src, dst string) {
	entries, err := os.ReadDir(src)
	if err != nil {
		b.logger.Debug("copy-merge: failed reading source directory", "src", src, "reason", err)
		return
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		info, lstatErr := os.Lstat(srcPath)
		if lstatErr != nil {
			b.logger.Debug("copy-merge: failed stat", "path", srcPath, "reason", lstatErr)
			continue
		}

		if destInfo, destErr := os.Lstat(dstPath); destErr == nil && destInfo.Mode()&os.ModeSymlink != 0 {
			// Host bridge or prior symlink wins; never overwritten.
			continue
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, readErr := os.Readlink(srcPath)
			if readErr != nil {
				b.logger.Debug("copy-merge: failed reading symlink", "path", srcPath, "reason", readErr)
				continue
			}
			os.Remove(dstPath)
			if err := os.Symlink(linkTarget, dstPath); err != nil {
				b.logger.Debug("copy-merge: failed creating symlink", "path", dstPath, "reason", err)
			}
		case info.IsDir():
			if err := os.MkdirAll(dstPath, info.Mode().Perm()|0700); err != nil {
				b.logger.Debug("copy-merge: failed creating directory", "path", dstPath, "reason", err)
				continue
			}
			b.copyMerge(srcPath, dstPath)
		default:
			if err := copyFileContents(srcPath, dstPath); err != nil {
				b.logger.Debug("copy-merge: failed copying file", "path", dstPath, "reason", err)
			}
		}
	}
}

func copyFileContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// setupVolumes wires host_path:container_path[:ro] specs by symlinking
// rootfs/<container_path> to host_path. The ro flag is recorded on the
// container config elsewhere; it is not enforced here (see design notes).
func (b *Builder) setupVolumes(rootfsDir string, volumes []VolumeSpec) error {
	for _, v := range volumes {
		target := filepath.Join(rootfsDir, v.ContainerPath)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.Wrapf(err, "failed creating parent directory for volume %s", v.ContainerPath)
		}
		os.Remove(target)
		if err := os.Symlink(v.HostPath, target); err != nil {
			return errors.Wrapf(err, "failed symlinking volume %s", v.ContainerPath)
		}
	}
	return nil
}

// Cleanup removes the entire container rootfs directory. It never
// follows symlinks within the tree into the host filesystem: RemoveAll
// removes the link entries themselves.
func Cleanup(rootfsDir string) error {
	return os.RemoveAll(rootfsDir)
}
