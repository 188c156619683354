package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newhook/plclog/internal/service"
)

var (
	flagClassifyJSON   bool
	flagClassifyStream bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify a build log and suggest fixes",
	Long: `Parse a build log, classify it and suggest fixes using the configured
service (local rules or the remote service). Reads stdin when no file is given.

With --stream, results are written as Server-Sent Events frames in the
order classification, suggestions, parsed_errors, complete.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&flagClassifyJSON, "json", false, "print the response as JSON")
	classifyCmd.Flags().BoolVar(&flagClassifyStream, "stream", false, "write results as Server-Sent Events")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	cfg := getConfig()

	raw, err := readLog(argOrEmpty(args))
	if err != nil {
		return err
	}

	classifier, suggester, err := newServices(cfg)
	if err != nil {
		return err
	}
	analyzer := service.NewAnalyzer(newParser(cfg), classifier, suggester)

	if flagClassifyStream {
		var streamErr error
		for ev := range analyzer.Stream(ctx, raw) {
			if err := service.WriteSSE(os.Stdout, ev); err != nil {
				return err
			}
			if p, ok := ev.Payload.(service.ErrorPayload); ok && ev.Type == service.EventError {
				streamErr = errors.New(p.Detail)
			}
		}
		return streamErr
	}

	resp, err := analyzer.Analyze(ctx, raw)
	if errors.Is(err, service.ErrNoErrors) {
		fmt.Println("No errors found")
		return nil
	}
	if err != nil {
		return err
	}

	if flagClassifyJSON {
		return printJSON(os.Stdout, resp)
	}
	printResponse(os.Stdout, resp)
	return nil
}
