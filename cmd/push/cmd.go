package push

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the push command declaration.
var Command = &cobra.Command{
	Use:   "push IMAGE",
	Short: "Push an image to a registry",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
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

	rootLogger := logConfig.NewLogger("push")

	if len(args) == 0 {
		rootLogger.Error("image argument is required")
		return 1
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

	ref, refErr := image.ParseReference(args[0])
	if refErr != nil {
		rootLogger.Error("invalid image reference", "image", args[0], "reason", refErr)
		return 1
	}

	if _, findErr := services.Images.Find(args[0]); findErr != nil {
		rootLogger.Error("failed resolving image", "image", args[0], "reason", findErr)
		return 1
	}

	if pushErr := services.Registry.Push(ref); pushErr != nil {
		rootLogger.Error("push failed", "image", args[0], "reason", pushErr)
		return 1
	}

	return 0
}
