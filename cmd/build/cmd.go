package build

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	buildpipeline "github.com/combust-labs/darker/pkg/build"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the build command declaration.
var Command = &cobra.Command{
	Use:   "build PATH",
	Short: "Build an image from a container-file",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	commandConfig  = configs.NewBuildCommandConfig()
	logConfig      = configs.NewLogginConfig()
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(commandConfig.FlagSet())
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

	rootLogger := logConfig.NewLogger("build")

	contextDir := "."
	if len(args) > 0 {
		contextDir = args[0]
	}

	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	containerFilePath := commandConfig.File
	if !filepath.IsAbs(containerFilePath) && !strings.Contains(containerFilePath, "://") {
		containerFilePath = filepath.Join(contextDir, containerFilePath)
	}

	tempDir, tempErr := os.MkdirTemp(services.Layout.TmpDir(), "build-source-")
	if tempErr != nil {
		rootLogger.Error("failed creating temp directory", "reason", tempErr)
		return 1
	}
	cleanup.Add(func() { os.RemoveAll(tempDir) })

	readResult, readErr := buildpipeline.Read(containerFilePath, tempDir)
	if readErr != nil {
		rootLogger.Error("failed reading container-file", "reason", readErr)
		return 1
	}

	repository, tag := splitTag(commandConfig.Tag)

	progress := func(index, total int, digest string) {
		rootLogger.Info("pulling layer", "index", index+1, "total", total, "digest", digest)
	}

	result, buildErr := services.Build.Evaluate(buildpipeline.Options{
		Instructions: readResult.Instructions,
		ContextDir:   contextDir,
		Repository:   repository,
		Tag:          tag,
		Progress:     progress,
	})
	if buildErr != nil {
		rootLogger.Error("build failed", "reason", buildErr)
		return 1
	}

	rootLogger.Info("build complete", "image", result.ImageID, "tag", commandConfig.Tag)
	return 0
}

func splitTag(ref string) (string, string) {
	if ref == "" {
		return "", ""
	}
	idx := strings.LastIndex(ref, ":")
	if idx == -1 {
		return ref, "latest"
	}
	return ref[:idx], ref[idx+1:]
}
