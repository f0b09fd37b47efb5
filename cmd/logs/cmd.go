package logs

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the logs command declaration.
var Command = &cobra.Command{
	Use:   "logs CONTAINER",
	Short: "Fetch the logs of a container",
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

	rootLogger := logConfig.NewLogger("logs")

	if len(args) == 0 {
		rootLogger.Error("container argument is required")
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

	id, findErr := services.Containers.Find(args[0])
	if findErr != nil {
		rootLogger.Error("failed resolving container", "container", args[0], "reason", findErr)
		return 1
	}

	f, openErr := os.Open(services.Layout.ContainerLog(id))
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return 0
		}
		rootLogger.Error("failed opening container log", "reason", openErr)
		return 1
	}
	defer f.Close()

	if _, copyErr := io.Copy(os.Stdout, f); copyErr != nil {
		rootLogger.Error("failed reading container log", "reason", copyErr)
		return 1
	}

	return 0
}
