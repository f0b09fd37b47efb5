package pull

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the pull command declaration.
var Command = &cobra.Command{
	Use:   "pull IMAGE",
	Short: "Pull an image from a registry",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	registryConfig = configs.NewRegistryConfig()
	logConfig      = configs.NewLogginConfig()
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(registryConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
}

func init() {
	initFlags()
}

func run(cobraCommand *cobra.Command, args []string) {
	os.Exit(processCommand(args))
}

func processCommand(args []string) int {

	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("pull")

	if len(args) == 0 {
		rootLogger.Error("image argument is required")
		return 1
	}
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}
	if _, err := registryConfig.LoadAuth(); err != nil {
		rootLogger.Error("failed loading registry auth", "reason", err)
		return 1
	}

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	ref, refErr := image.ParseReference(args[0])
	if refErr != nil {
		rootLogger.Error("invalid image reference", "image", args[0], "reason", refErr)
		return 1
	}

	progress := func(index, total int, digest string) {
		rootLogger.Info("pulling layer", "index", index+1, "total", total, "digest", digest)
	}

	result, pullErr := services.Registry.Pull(ref, services.Layers, progress)
	if pullErr != nil {
		rootLogger.Error("pull failed", "image", args[0], "reason", pullErr)
		return 1
	}

	if err := services.Images.SaveConfig(result.ImageID, result.Config); err != nil {
		rootLogger.Error("failed persisting image config", "reason", err)
		return 1
	}
	if err := services.Images.SaveManifest(result.ImageID, result.ManifestRaw); err != nil {
		rootLogger.Error("failed persisting image manifest", "reason", err)
		return 1
	}

	runConfig := image.RunConfig{}
	if spec := result.Config.Config; spec != nil {
		runConfig.Cmd = spec.Cmd
		runConfig.Entrypoint = spec.Entrypoint
		runConfig.Env = spec.Env
		runConfig.WorkingDir = spec.WorkingDir
		runConfig.User = spec.User
		runConfig.Labels = spec.Labels
		for port := range spec.ExposedPorts {
			runConfig.ExposedPorts = append(runConfig.ExposedPorts, port)
		}
	}

	var size int64
	for _, digest := range result.Config.RootFS.DiffIDs {
		layerSize, sizeErr := services.Layers.Size(digest)
		if sizeErr != nil {
			rootLogger.Debug("failed computing layer size", "digest", digest, "reason", sizeErr)
			continue
		}
		size += layerSize
	}

	if err := services.Images.Store(result.ImageID, ref.Repository, ref.Tag, result.ManifestDigest, result.Config.RootFS.DiffIDs, size, runConfig); err != nil {
		rootLogger.Error("failed storing image record", "reason", err)
		return 1
	}

	rootLogger.Info("pull complete", "image", result.ImageID)
	return 0
}
