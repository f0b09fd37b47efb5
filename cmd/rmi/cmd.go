package rmi

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the rmi command declaration.
var Command = &cobra.Command{
	Use:   "rmi IMAGE [IMAGE...]",
	Short: "Remove one or more images",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
	noPrune        bool
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
	Command.Flags().BoolVar(&noPrune, "no-prune", false, "Do not delete untagged layers left unreferenced by the removal")
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

	rootLogger := logConfig.NewLogger("rmi")

	if len(args) == 0 {
		rootLogger.Error("at least one image argument is required")
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
		id, findErr := services.Images.Find(nameOrID)
		if findErr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed resolving image %s: %v\n", nameOrID, findErr)
			continue
		}
		if removeErr := services.Images.Remove(id, !noPrune); removeErr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed removing image %s: %v\n", nameOrID, removeErr)
			continue
		}
		fmt.Fprintln(os.Stdout, nameOrID)
	}

	return 0
}
