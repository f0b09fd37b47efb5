package tag

import (
	"strings"

	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the tag command declaration.
var Command = &cobra.Command{
	Use:   "tag SOURCE TARGET",
	Short: "Create a tag TARGET that refers to SOURCE",
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

	rootLogger := logConfig.NewLogger("tag")

	if len(args) != 2 {
		rootLogger.Error("source and target arguments are required")
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

	id, findErr := services.Images.Find(args[0])
	if findErr != nil {
		rootLogger.Error("failed resolving image", "image", args[0], "reason", findErr)
		return 1
	}

	repository, tag := args[1], "latest"
	if idx := strings.LastIndex(args[1], ":"); idx != -1 {
		repository, tag = args[1][:idx], args[1][idx+1:]
	}

	if tagErr := services.Images.Tag(id, repository, tag); tagErr != nil {
		rootLogger.Error("failed tagging image", "reason", tagErr)
		return 1
	}

	return 0
}
