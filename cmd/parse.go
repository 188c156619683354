package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var flagParseJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Extract structured errors from a build log",
	Long: `Parse a PLC build log into structured errors with stage, severity,
location, context and cascade links. Reads stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&flagParseJSON, "json", false, "print the parse result as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	raw, err := readLog(argOrEmpty(args))
	if err != nil {
		return err
	}

	result := newParser(getConfig()).Parse(raw)
	if flagParseJSON {
		return printJSON(os.Stdout, result)
	}
	printParseResult(os.Stdout, result)
	return nil
}
