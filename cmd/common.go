// Package cmd holds helpers shared by every verb subpackage: the one
// place that wires the path layout and every store into a ready-to-use
// bundle, mirroring the teacher's cmd/common.go storage-provider helper.
package cmd

import (
	"github.com/hashicorp/go-hclog"

	"github.com/combust-labs/darker/pkg/build"
	"github.com/combust-labs/darker/pkg/container"
	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/layer"
	"github.com/combust-labs/darker/pkg/lifecycle"
	"github.com/combust-labs/darker/pkg/paths"
	"github.com/combust-labs/darker/pkg/registry"
	"github.com/combust-labs/darker/pkg/rootfs"
	"github.com/combust-labs/darker/pkg/volume"
)

// Services bundles every store and manager a verb command needs, all
// rooted at the same data-root directory.
type Services struct {
	Layout     *paths.Layout
	Layers     *layer.Store
	Images     *image.Store
	Containers *container.Store
	Volumes    *volume.Store
	Rootfs     *rootfs.Builder
	Lifecycle  *lifecycle.Manager
	Registry   *registry.Client
	Build      *build.Pipeline
}

// NewServices resolves root into a Layout, ensures its directories exist,
// and wires up every store on top of it.
func NewServices(root string, logger hclog.Logger) (*Services, error) {
	layout := paths.New(root)
	if err := layout.EnsureDirectories(); err != nil {
		return nil, err
	}

	layers := layer.New(layout, logger)
	images := image.New(layout, layers, logger)
	containers := container.New(layout, logger)
	volumes := volume.New(layout, logger)
	rootfsBuilder := rootfs.New(images, layers, logger)
	lifecycleManager := lifecycle.New(layout, containers, images, rootfsBuilder, logger)
	registryClient := registry.New(logger)
	buildPipeline := build.New(layout, images, layers, registryClient, logger)

	return &Services{
		Layout:     layout,
		Layers:     layers,
		Images:     images,
		Containers: containers,
		Volumes:    volumes,
		Rootfs:     rootfsBuilder,
		Lifecycle:  lifecycleManager,
		Registry:   registryClient,
		Build:      buildPipeline,
	}, nil
}
