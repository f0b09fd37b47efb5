package exec

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the exec command declaration.
var Command = &cobra.Command{
	Use:   "exec CONTAINER COMMAND [ARG...]",
	Short: "Run a command in a running container",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	commandConfig  = configs.NewExecCommandConfig()
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

	rootLogger := logConfig.NewLogger("exec")

	if len(args) < 2 {
		rootLogger.Error("container and command arguments are required")
		return 1
	}
	nameOrID := args[0]
	command := args[1:]

	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	id, err := services.Containers.Find(nameOrID)
	if err != nil {
		rootLogger.Error("failed resolving container", "container", nameOrID, "reason", err)
		return 1
	}

	envList := make([]string, 0, len(commandConfig.EnvVars))
	for k, v := range commandConfig.EnvVars {
		envList = append(envList, k+"="+v)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	cleanup.Add(cancel)

	exitCode, execErr := services.Lifecycle.Exec(ctx, id, command, envList, commandConfig.WorkingDir, commandConfig.User, commandConfig.TTY, commandConfig.Interactive)
	if execErr != nil {
		rootLogger.Error("exec failed", "container", id, "reason", execErr)
	}
	return exitCode
}
