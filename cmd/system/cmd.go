// Package system implements the "system" verb group: df, info and
// prune, the latter adapted from the teacher's purge command (a sweep over every cached
// object, removing what is safe to remove).
package system

import (
	"fmt"
	"os"

	"github.com/opentracing/opentracing-go"
	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/lifecycle"
	"github.com/combust-labs/darker/pkg/tracing"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the system command group declaration.
var Command = &cobra.Command{
	Use:   "system",
	Short: "Manage darker",
	Long:  ``,
}

var dfCommand = &cobra.Command{
	Use:   "df",
	Short: "Show data-root disk usage",
	Run:   runDf,
}

var pruneCommand = &cobra.Command{
	Use:   "prune",
	Short: "Remove stopped containers and dangling images",
	Run:   runPrune,
}

var infoCommand = &cobra.Command{
	Use:   "info",
	Short: "Display system-wide information",
	Run:   runInfo,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
	tracingConfig  = configs.NewTracingConfig("darker-system-prune")
)

func init() {
	for _, sub := range []*cobra.Command{dfCommand, pruneCommand, infoCommand} {
		sub.Flags().AddFlagSet(dataRootConfig.FlagSet())
		sub.Flags().AddFlagSet(logConfig.FlagSet())
	}
	pruneCommand.Flags().AddFlagSet(tracingConfig.FlagSet())
	Command.AddCommand(dfCommand, pruneCommand, infoCommand)
}

func runDf(cobraCommand *cobra.Command, _ []string) {
	os.Exit(processDf())
}

func processDf() int {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("system-df")
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	images, imagesErr := services.Images.List()
	if imagesErr != nil {
		rootLogger.Error("failed listing images", "reason", imagesErr)
		return 1
	}
	containers, containersErr := services.Containers.List()
	if containersErr != nil {
		rootLogger.Error("failed listing containers", "reason", containersErr)
		return 1
	}
	layerTotal, layerErr := services.Layers.TotalSize()
	if layerErr != nil {
		rootLogger.Error("failed computing layer size", "reason", layerErr)
		return 1
	}

	fmt.Fprintf(os.Stdout, "TYPE\tTOTAL\n")
	fmt.Fprintf(os.Stdout, "Images\t%d\n", len(images))
	fmt.Fprintf(os.Stdout, "Containers\t%d\n", len(containers))
	fmt.Fprintf(os.Stdout, "Layers size\t%d bytes\n", layerTotal)
	return 0
}

func runInfo(cobraCommand *cobra.Command, _ []string) {
	os.Exit(processInfo())
}

// processInfo reports the data-root directory and object counts,
// reusing the same tallies "df" assembles.
func processInfo() int {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("system-info")
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	images, imagesErr := services.Images.List()
	if imagesErr != nil {
		rootLogger.Error("failed listing images", "reason", imagesErr)
		return 1
	}
	containers, containersErr := services.Containers.List()
	if containersErr != nil {
		rootLogger.Error("failed listing containers", "reason", containersErr)
		return 1
	}
	volumes, volumesErr := services.Volumes.List()
	if volumesErr != nil {
		rootLogger.Error("failed listing volumes", "reason", volumesErr)
		return 1
	}

	running := 0
	for _, containerCfg := range containers {
		state, stateErr := services.Containers.LoadState(containerCfg.ID)
		if stateErr != nil {
			continue
		}
		if lifecycle.StatusFromState(state) == lifecycle.StatusRunning {
			running++
		}
	}

	fmt.Fprintf(os.Stdout, "Data Root: %s\n", dataRootConfig.DataRoot)
	fmt.Fprintf(os.Stdout, "Containers: %d\n", len(containers))
	fmt.Fprintf(os.Stdout, "Running: %d\n", running)
	fmt.Fprintf(os.Stdout, "Images: %d\n", len(images))
	fmt.Fprintf(os.Stdout, "Volumes: %d\n", len(volumes))
	return 0
}

func runPrune(cobraCommand *cobra.Command, _ []string) {
	os.Exit(processPrune())
}

func processPrune() int {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("system-prune")
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	tracer, tracerCleanup, tracerErr := tracing.GetTracer(rootLogger.Named("tracer"), tracingConfig)
	if tracerErr != nil {
		rootLogger.Error("failed constructing tracer", "reason", tracerErr)
		return 1
	}
	cleanup.Add(tracerCleanup)

	rootLogger, span := tracing.ApplyTraceLogDiscovery(rootLogger, tracer.StartSpan("system-prune"))
	cleanup.Add(span.Finish)

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	containers, containersErr := services.Containers.List()
	if containersErr != nil {
		rootLogger.Error("failed listing containers", "reason", containersErr)
		return 1
	}

	removed := 0
	for _, containerCfg := range containers {
		entrySpan := tracer.StartSpan("prune-container", opentracing.ChildOf(span.Context()))
		entrySpan.SetTag("container-id", containerCfg.ID)

		state, stateErr := services.Containers.LoadState(containerCfg.ID)
		if stateErr != nil {
			rootLogger.Error("failed loading container state, skipping", "id", containerCfg.ID, "reason", stateErr)
			entrySpan.Finish()
			continue
		}
		if lifecycle.StatusFromState(state) == lifecycle.StatusRunning {
			entrySpan.Finish()
			continue
		}
		if removeErr := services.Lifecycle.Remove(containerCfg.ID); removeErr != nil {
			rootLogger.Error("failed removing stopped container", "id", containerCfg.ID, "reason", removeErr)
			entrySpan.Finish()
			continue
		}
		rootLogger.Info("removed container", "id", containerCfg.ID, "name", containerCfg.Name)
		removed++
		entrySpan.Finish()
	}

	images, imagesErr := services.Images.List()
	if imagesErr != nil {
		rootLogger.Error("failed listing images", "reason", imagesErr)
		return 1
	}
	for _, meta := range images {
		if meta.Repository != "" {
			continue
		}
		if removeErr := services.Images.Remove(meta.ID, true); removeErr != nil {
			rootLogger.Error("failed removing dangling image", "id", meta.ID, "reason", removeErr)
			continue
		}
		rootLogger.Info("removed image", "id", meta.ID)
		removed++
	}

	rootLogger.Info("prune complete", "removed", removed)
	return 0
}
