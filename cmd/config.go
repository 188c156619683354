package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newhook/plclog/internal/config"
)

var (
	flagConfigPath  string
	flagConfigForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the plclog configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a documented config file",
	Long: `Write a config file listing every option with its default value.
The current effective settings (except the API key) are carried over.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print(getConfig().GenerateDocumentedConfig())
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&flagConfigPath, "path", config.FileName, "where to write the config")
	configInitCmd.Flags().BoolVarP(&flagConfigForce, "force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(flagConfigPath); err == nil && !flagConfigForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", flagConfigPath)
	}
	if err := getConfig().SaveDocumentedConfig(flagConfigPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Wrote %s\n", flagConfigPath)
	return nil
}
