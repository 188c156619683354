package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newhook/plclog/internal/watch"
)

var (
	flagWatchClassify bool
	flagWatchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Parse build logs as they are written",
	Long: `Watch a build output directory and print a one-line summary for every
*.log file that is created or written. With --classify each log with errors
is also classified by the configured service.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&flagWatchClassify, "classify", false, "classify logs that contain errors")
	watchCmd.Flags().DurationVar(&flagWatchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a changed file is parsed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	cfg := getConfig()

	wcfg := watch.Config{
		Dir:         args[0],
		DebounceDur: flagWatchDebounce,
		Parser:      newParser(cfg),
	}
	if flagWatchClassify {
		classifier, _, err := newServices(cfg)
		if err != nil {
			return err
		}
		wcfg.Classifier = classifier
	}

	w, err := watch.New(wcfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("Watching %s for build logs (Ctrl-C to stop)\n", args[0])

	for s := range w.Summaries() {
		fmt.Println(s)
	}
	return nil
}
