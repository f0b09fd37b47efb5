// Package volume implements the "volume" verb group: create, ls, rm,
// inspect, and prune over the named-volume store.
package volume

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/namegen"
	"github.com/combust-labs/darker/pkg/rootfs"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the volume command group declaration.
var Command = &cobra.Command{
	Use:   "volume",
	Short: "Manage volumes",
	Long:  ``,
}

var createCommand = &cobra.Command{
	Use:   "create [NAME]",
	Short: "Create a volume",
	Run:   runCreate,
}

var lsCommand = &cobra.Command{
	Use:   "ls",
	Short: "List volumes",
	Run:   runLs,
}

var rmCommand = &cobra.Command{
	Use:   "rm NAME [NAME...]",
	Short: "Remove one or more volumes",
	Run:   runRm,
}

var inspectCommand = &cobra.Command{
	Use:   "inspect NAME [NAME...]",
	Short: "Display detailed information on one or more volumes",
	Run:   runInspect,
}

var pruneCommand = &cobra.Command{
	Use:   "prune",
	Short: "Remove volumes not referenced by any container",
	Run:   runPrune,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
	createLabels   map[string]string
)

func initFlags() {
	for _, sub := range []*cobra.Command{createCommand, lsCommand, rmCommand, inspectCommand, pruneCommand} {
		sub.Flags().AddFlagSet(dataRootConfig.FlagSet())
		sub.Flags().AddFlagSet(logConfig.FlagSet())
	}
	createCommand.Flags().StringToStringVar(&createLabels, "label", map[string]string{}, "Set metadata on the volume, multiple OK")
}

func init() {
	initFlags()
	Command.AddCommand(createCommand, lsCommand, rmCommand, inspectCommand, pruneCommand)
}

func runCreate(cobraCommand *cobra.Command, args []string) {
	os.Exit(processCreate(args))
}

func processCreate(args []string) int {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("volume-create")
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	svc, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	name := namegen.RandomContainerName()
	if len(args) > 0 && args[0] != "" {
		name = args[0]
	}

	meta, createErr := svc.Volumes.Create(name, createLabels)
	if createErr != nil {
		rootLogger.Error("failed creating volume", "reason", createErr)
		return 1
	}

	fmt.Fprintln(os.Stdout, meta.Name)
	return 0
}

func runLs(cobraCommand *cobra.Command, _ []string) {
	os.Exit(processLs())
}

func processLs() int {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("volume-ls")
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	svc, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	metas, listErr := svc.Volumes.List()
	if listErr != nil {
		rootLogger.Error("failed listing volumes", "reason", listErr)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DRIVER\tVOLUME NAME")
	for _, meta := range metas {
		fmt.Fprintf(w, "%s\t%s\n", meta.Driver, meta.Name)
	}
	w.Flush()
	return 0
}

func runRm(cobraCommand *cobra.Command, args []string) {
	os.Exit(processRm(args))
}

func processRm(args []string) int {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("volume-rm")
	if len(args) == 0 {
		rootLogger.Error("at least one volume name is required")
		return 1
	}
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	svc, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	for _, name := range args {
		if removeErr := svc.Volumes.Remove(name); removeErr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed removing volume %s: %v\n", name, removeErr)
			continue
		}
		fmt.Fprintln(os.Stdout, name)
	}
	return 0
}

func runInspect(cobraCommand *cobra.Command, args []string) {
	os.Exit(processInspect(args))
}

func processInspect(args []string) int {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("volume-inspect")
	if len(args) == 0 {
		rootLogger.Error("at least one volume name is required")
		return 1
	}
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	svc, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	results := make([]interface{}, 0, len(args))
	for _, name := range args {
		meta, findErr := svc.Volumes.Find(name)
		if findErr != nil {
			rootLogger.Error("no such volume", "name", name, "reason", findErr)
			continue
		}
		results = append(results, meta)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if encErr := encoder.Encode(results); encErr != nil {
		fmt.Fprintln(os.Stderr, encErr)
		return 1
	}
	return 0
}

func runPrune(cobraCommand *cobra.Command, _ []string) {
	os.Exit(processPrune())
}

// processPrune removes every volume no container config references,
// mirroring the mark-and-sweep pattern the image store uses to prune
// unreferenced layers.
func processPrune() int {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("volume-prune")
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	svc, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	containers, containersErr := svc.Containers.List()
	if containersErr != nil {
		rootLogger.Error("failed listing containers", "reason", containersErr)
		return 1
	}
	referenced := map[string]bool{}
	for _, cfg := range containers {
		for _, raw := range cfg.Volumes {
			referenced[rootfs.ParseVolumeSpec(raw).HostPath] = true
		}
	}

	volumes, volumesErr := svc.Volumes.List()
	if volumesErr != nil {
		rootLogger.Error("failed listing volumes", "reason", volumesErr)
		return 1
	}

	removed := 0
	for _, meta := range volumes {
		if referenced[meta.Name] {
			continue
		}
		if removeErr := svc.Volumes.Remove(meta.Name); removeErr != nil {
			rootLogger.Error("failed pruning volume", "name", meta.Name, "reason", removeErr)
			continue
		}
		fmt.Fprintln(os.Stdout, meta.Name)
		removed++
	}

	rootLogger.Info("volume prune complete", "removed", removed)
	return 0
}
