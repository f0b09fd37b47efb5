package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd/attach"
	"github.com/combust-labs/darker/cmd/build"
	"github.com/combust-labs/darker/cmd/exec"
	"github.com/combust-labs/darker/cmd/images"
	"github.com/combust-labs/darker/cmd/inspect"
	"github.com/combust-labs/darker/cmd/logs"
	"github.com/combust-labs/darker/cmd/network"
	"github.com/combust-labs/darker/cmd/ps"
	"github.com/combust-labs/darker/cmd/pull"
	"github.com/combust-labs/darker/cmd/push"
	"github.com/combust-labs/darker/cmd/restart"
	"github.com/combust-labs/darker/cmd/rm"
	"github.com/combust-labs/darker/cmd/rmi"
	"github.com/combust-labs/darker/cmd/run"
	"github.com/combust-labs/darker/cmd/start"
	"github.com/combust-labs/darker/cmd/stop"
	"github.com/combust-labs/darker/cmd/system"
	"github.com/combust-labs/darker/cmd/tag"
	"github.com/combust-labs/darker/cmd/volume"
)

var rootCmd = &cobra.Command{
	Use:   "darker",
	Short: "darker",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(attach.Command)
	rootCmd.AddCommand(build.Command)
	rootCmd.AddCommand(exec.Command)
	rootCmd.AddCommand(images.Command)
	rootCmd.AddCommand(inspect.Command)
	rootCmd.AddCommand(logs.Command)
	rootCmd.AddCommand(network.Command)
	rootCmd.AddCommand(ps.Command)
	rootCmd.AddCommand(pull.Command)
	rootCmd.AddCommand(push.Command)
	rootCmd.AddCommand(restart.Command)
	rootCmd.AddCommand(rm.Command)
	rootCmd.AddCommand(rmi.Command)
	rootCmd.AddCommand(run.Command)
	rootCmd.AddCommand(start.Command)
	rootCmd.AddCommand(stop.Command)
	rootCmd.AddCommand(system.Command)
	rootCmd.AddCommand(tag.Command)
	rootCmd.AddCommand(volume.Command)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
