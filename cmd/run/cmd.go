package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/container"
	"github.com/combust-labs/darker/pkg/namegen"
	"github.com/combust-labs/darker/pkg/rootfs"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the run command declaration.
var Command = &cobra.Command{
	Use:   "run IMAGE [COMMAND] [ARG...]",
	Short: "Create and start a new container",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	commandConfig  = configs.NewRunCommandConfig()
	logConfig      = configs.NewLogginConfig()
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(commandConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
	Command.Flags().StringArrayVar(&volumeFlags, "volume", []string{}, "Bind mount a volume, host:container[:ro], multiple OK")
}

var volumeFlags []string

func init() {
	initFlags()
}

func run(cobraCommand *cobra.Command, args []string) {
	os.Exit(processCommand(args))
}

func processCommand(args []string) int {

	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("run")

	if len(args) == 0 {
		rootLogger.Error("image argument is required")
		return 1
	}
	commandConfig.Image = args[0]
	command := args[1:]

	validatingConfigs := []configs.ValidatingConfig{dataRootConfig}
	for _, validatingConfig := range validatingConfigs {
		if err := validatingConfig.Validate(); err != nil {
			rootLogger.Error("configuration is invalid", "reason", err)
			return 1
		}
	}

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	imageID, err := services.Images.FindImage(commandConfig.Image)
	if err != nil {
		rootLogger.Error("failed resolving image", "image", commandConfig.Image, "reason", err)
		return 1
	}

	env, err := commandConfig.MergedEnvironment()
	if err != nil {
		rootLogger.Error("failed merging environment", "reason", err)
		return 1
	}
	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	id, err := container.NewID()
	if err != nil {
		rootLogger.Error("failed generating container id", "reason", err)
		return 1
	}

	name := commandConfig.Name
	if name == "" {
		name = namegen.RandomContainerName()
	}

	cfg := container.DefaultConfig()
	cfg.ID = id
	cfg.Name = name
	cfg.Image = commandConfig.Image
	cfg.ImageID = imageID
	cfg.Command = command
	cfg.Env = envList
	cfg.WorkingDir = commandConfig.WorkingDir
	cfg.Hostname = commandConfig.Hostname
	cfg.TTY = commandConfig.TTY
	cfg.StdinOpen = commandConfig.Interactive
	cfg.AutoRemove = commandConfig.AutoRemove
	cfg.Volumes = volumeFlags

	volumes := make([]rootfs.VolumeSpec, 0, len(volumeFlags))
	for _, v := range volumeFlags {
		volumes = append(volumes, rootfs.ParseVolumeSpec(v))
	}

	if createErr := services.Lifecycle.Create(cfg, volumes); createErr != nil {
		rootLogger.Error("failed creating container", "reason", createErr)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	cleanup.Add(cancel)

	exitCode, runErr := services.Lifecycle.Run(ctx, cfg.ID, commandConfig.TTY, commandConfig.Interactive)
	if runErr != nil {
		rootLogger.Error("container exited with error", "id", cfg.ID, "reason", runErr)
	}

	return exitCode
}
