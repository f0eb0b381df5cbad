package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// configPath is the --config flag value
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "cms-tags",
	Short: "Tagging service for CMS content",
	Long: `cms-tags stores tags and their taggings on host application content, ranks tags by
popularity, weights tag clouds and answers co-occurrence queries.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a config file (yaml, json or toml); environment variables use the TAGS_ prefix")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
