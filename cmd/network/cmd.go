// Package network implements the "network" verb group. A rootless,
// non-namespaced container shares the host network stack directly, so
// there is no bridge/overlay to create or inspect; every subcommand
// exists to give scripts targeting a Docker-shaped CLI a predictable
// answer instead of an unrecognized-command error.
package network

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/derrors"
)

// hostNetwork is the one network record that exists: every container
// is implicitly attached to it.
type hostNetwork struct {
	Name   string `json:"Name"`
	ID     string `json:"Id"`
	Driver string `json:"Driver"`
	Scope  string `json:"Scope"`
}

// Command is the network command group declaration.
var Command = &cobra.Command{
	Use:   "network",
	Short: "Manage networks",
	Long:  ``,
}

var lsCommand = &cobra.Command{
	Use:   "ls",
	Short: "List networks",
	Run:   runLs,
}

var createCommand = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a network",
	Run:   runUnsupported,
}

var rmCommand = &cobra.Command{
	Use:   "rm NAME [NAME...]",
	Short: "Remove one or more networks",
	Run:   runUnsupported,
}

var inspectCommand = &cobra.Command{
	Use:   "inspect NETWORK [NETWORK...]",
	Short: "Display detailed information on one or more networks",
	Run:   runInspect,
}

var logConfig = configs.NewLogginConfig()

func init() {
	for _, sub := range []*cobra.Command{lsCommand, createCommand, rmCommand, inspectCommand} {
		sub.Flags().AddFlagSet(logConfig.FlagSet())
	}
	Command.AddCommand(lsCommand, createCommand, rmCommand, inspectCommand)
}

// runLs prints the one network every container is implicitly attached
// to: the host's own network stack, which the payload uses directly as
// a plain host process, with no virtual interface in between.
func runLs(cobraCommand *cobra.Command, _ []string) {
	fmt.Fprintln(os.Stdout, "NETWORK ID\tNAME\tDRIVER\tSCOPE")
	fmt.Fprintln(os.Stdout, "host\t\thost\thost\tlocal")
}

func runInspect(cobraCommand *cobra.Command, args []string) {
	os.Exit(processInspect(args))
}

// processInspect resolves each argument against the single implicit
// "host" network, the only one this design has.
func processInspect(args []string) int {
	rootLogger := logConfig.NewLogger("network-inspect")
	if len(args) == 0 {
		rootLogger.Error("at least one network argument is required")
		return 1
	}

	results := make([]interface{}, 0, len(args))
	for _, name := range args {
		if name != "host" {
			rootLogger.Error("no such network", "name", name)
			continue
		}
		results = append(results, hostNetwork{Name: "host", ID: "host", Driver: "host", Scope: "local"})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if encErr := encoder.Encode(results); encErr != nil {
		fmt.Fprintln(os.Stderr, encErr)
		return 1
	}
	return 0
}

func runUnsupported(cobraCommand *cobra.Command, _ []string) {
	rootLogger := logConfig.NewLogger("network")
	rootLogger.Error("custom networks are not supported", "reason", derrors.ErrUnsupported,
		"hint", "containers always share the host network stack")
	os.Exit(1)
}
