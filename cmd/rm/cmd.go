package rm

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the rm command declaration.
var Command = &cobra.Command{
	Use:   "rm CONTAINER [CONTAINER...]",
	Short: "Remove one or more containers",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
	force          bool
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
	Command.Flags().BoolVarP(&force, "force", "f", false, "Force removal of a running container")
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

	rootLogger := logConfig.NewLogger("rm")

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

	for _, nameOrID := range args {
		id, findErr := services.Containers.Find(nameOrID)
		if findErr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed resolving container %s: %v\n", nameOrID, findErr)
			continue
		}
		if force {
			if stopErr := services.Lifecycle.Stop(id, nil); stopErr != nil {
				fmt.Fprintf(os.Stderr, "Error: failed stopping container %s: %v\n", nameOrID, stopErr)
				continue
			}
		}
		if removeErr := services.Lifecycle.Remove(id); removeErr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed removing container %s: %v\n", nameOrID, removeErr)
			continue
		}
		fmt.Fprintln(os.Stdout, nameOrID)
	}

	return 0
}
