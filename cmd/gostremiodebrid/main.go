package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amaumene/gostremiodebrid/internal/constants"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "gostremiodebrid",
		Short: "Stremio addon streaming indexer torrents through debrid services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.Version = constants.AddonVersion
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (default ./config.yaml or ./data/config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, configPath)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(constants.AddonVersion)
		},
	})
	return rootCmd
}
