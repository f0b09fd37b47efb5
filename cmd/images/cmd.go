package images

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/opentracing/opentracing-go"
	"github.com/spf13/cobra"

	"github.com/combust-labs/darker/cmd"
	"github.com/combust-labs/darker/configs"
	"github.com/combust-labs/darker/pkg/tracing"
	"github.com/combust-labs/darker/pkg/utils"
)

// Command is the images command declaration.
var Command = &cobra.Command{
	Use:   "images",
	Short: "List images",
	Run:   run,
	Long:  ``,
}

var (
	dataRootConfig = configs.NewDataRootConfig()
	logConfig      = configs.NewLogginConfig()
	tracingConfig  = configs.NewTracingConfig("darker-images")
)

func initFlags() {
	Command.Flags().AddFlagSet(dataRootConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
	Command.Flags().AddFlagSet(tracingConfig.FlagSet())
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

	rootLogger := logConfig.NewLogger("images")

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

	rootLogger, span := tracing.ApplyTraceLogDiscovery(rootLogger, tracer.StartSpan("images"))
	cleanup.Add(span.Finish)

	services, err := cmd.NewServices(dataRootConfig.DataRoot, rootLogger)
	if err != nil {
		rootLogger.Error("failed initializing services", "reason", err)
		return 1
	}

	listSpan := tracer.StartSpan("list-metadata", opentracing.ChildOf(span.Context()))
	metas, listErr := services.Images.List()
	listSpan.Finish()
	if listErr != nil {
		rootLogger.Error("failed listing images", "reason", listErr)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tTAG\tIMAGE ID\tCREATED\tSIZE")
	for _, meta := range metas {
		repo, tag := meta.Repository, meta.Tag
		if repo == "" {
			repo, tag = "<none>", "<none>"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", repo, tag, shortID(meta.ID), meta.Created.Format("2006-01-02T15:04:05Z"), meta.Size)
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
