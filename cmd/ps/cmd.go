package ps

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/lifecycle"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the ps command declaration.
var Command = &cobra.Command{
	Use:   "ps",
	Short: "List containers",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
	all            bool
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
	Command.Flags().BoolVarP(&all, "all", "a", false, "Show all containers, not just running ones")
}

func init() {
	initFlags()
}

func run(cobraCommand *cobra.Command, _ []string) {
	os.Exit(processCommand())
}

func processCommand() int {

	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("ps")

	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	configs_, listErr := services.Containers.List()
	if listErr != nil {
		rootLogger.Error("failed listing containers", "reason", listErr)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTAINER ID\tIMAGE\tCOMMAND\tSTATUS\tNAMES")
	for _, containerCfg := range configs_ {
		state, stateErr := services.Containers.LoadState(containerCfg.ID)
		if stateErr != nil {
			rootLogger.Error("failed loading state", "id", containerCfg.ID, "reason", stateErr)
			continue
		}
		status := lifecycle.StatusFromState(state)
		if !all && status != lifecycle.StatusRunning {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%q\t%s\t%s\n",
			shortID(containerCfg.ID), containerCfg.Image, strings.Join(containerCfg.Command, " "),
			status.DisplayString(), containerCfg.Name)
	}
	w.Flush()

	return 0
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
