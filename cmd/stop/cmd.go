package stop

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the stop command declaration.
var Command = &cobra.Command{
	Use:   "stop CONTAINER [CONTAINER...]",
	Short: "Stop one or more running containers",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
	timeoutSeconds int
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
	Command.Flags().IntVarP(&timeoutSeconds, "time", "t", 10, "Seconds to wait before killing the container")
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

	rootLogger := logConfig.NewLogger("stop")

	if len(args) == 0 {
		rootLogger.Error("at least one container argument is required")
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

	grace := time.Duration(timeoutSeconds) * time.Second

	for _, nameOrID := range args {
		id, findErr := services.Containers.Find(nameOrID)
		if findErr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed resolving container %s: %v\n", nameOrID, findErr)
			continue
		}
		if stopErr := services.Lifecycle.Stop(id, &grace); stopErr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed stopping container %s: %v\n", nameOrID, stopErr)
			continue
		}
		fmt.Fprintln(os.Stdout, nameOrID)
	}

	return 0
}
