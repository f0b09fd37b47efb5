package attach

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the attach command declaration.
var Command = &cobra.Command{
	Use:   "attach CONTAINER",
	Short: "Attach local standard input/output/error streams to a running container",
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

// processCommand validates the target container, then reports the
// documented gap: a detached container's stdio was never kept open for
// a later attach (supervisor.SpawnDetached redirects it to the log
// file), so there is no stream left to reattach to. Use `logs` to read
// what has already been written, or `run` without --rm to keep a
// foreground session open.
func processCommand(args []string) int {

	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("attach")

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

	if _, findErr := services.Containers.Find(args[0]); findErr != nil {
		rootLogger.Error("failed resolving container", "container", args[0], "reason", findErr)
		return 1
	}

	rootLogger.Error("attach is not supported", "reason", derrors.ErrUnsupported, "hint", "use `darker logs` to read output already written")
	return 1
}
