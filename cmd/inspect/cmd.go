package inspect

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opentracing/opentracing-go"
	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/tracing"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the inspect command declaration.
var Command = &cobra.Command{
	Use:   "inspect OBJECT [OBJECT...]",
	Short: "Display detailed information on containers or images",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
	tracingConfig  = configs.NewTracingConfig("darker-inspect")
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
	Command.Flags().AddFlagSet(tracingConfig.FlagSet())
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

	rootLogger := logConfig.NewLogger("inspect")

	if len(args) == 0 {
		rootLogger.Error("at least one object argument is required")
		return 1
	}
	if err := dataRootConfig.Validate(); err != nil {
		rootLogger.Error("configuration is invalid", "reason", err)
		return 1
	}

	tracer, tracerCleanup, tracerErr := tracing.GetTracer(rootLogger.Named("tracer"), tracingConfig)
	if tracerErr != nil {
		rootLogger.Error("failed constructing tracer", "reason", tracerErr)
		return 1
	}
	cleanup.Add(tracerCleanup)

	rootLogger, span := tracing.ApplyTraceLogDiscovery(rootLogger, tracer.StartSpan("inspect"))
	cleanup.Add(span.Finish)

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	results := make([]interface{}, 0, len(args))

	for _, nameOrID := range args {
		objSpan := tracer.StartSpan("inspect-object", opentracing.ChildOf(span.Context()))
		objSpan.SetTag("object", nameOrID)

		if containerID, findErr := services.Containers.Find(nameOrID); findErr == nil {
			cfg, cfgErr := services.Containers.LoadConfig(containerID)
			state, stateErr := services.Containers.LoadState(containerID)
			if cfgErr == nil && stateErr == nil {
				results = append(results, map[string]interface{}{"config": cfg, "state": state})
				objSpan.Finish()
				continue
			}
		}

		if imageID, findErr := services.Images.Find(nameOrID); findErr == nil {
			meta, metaErr := services.Images.LoadMetadata(imageID)
			if metaErr == nil {
				results = append(results, meta)
				objSpan.Finish()
				continue
			}
		}

		objSpan.SetBaggageItem("error", "not found")
		objSpan.Finish()
		rootLogger.Error("no such object", "object", nameOrID)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if encErr := encoder.Encode(results); encErr != nil {
		fmt.Fprintln(os.Stderr, encErr)
		return 1
	}

	return 0
}
