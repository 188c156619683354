package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newhook/plclog/internal/synthetic"
)

// Version is set at build time with -ldflags "-X github.com/newhook/plclog/cmd.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the plclog version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("plclog %s (generator v%d)\n", Version, synthetic.GeneratorVersion)
	},
}
