package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/clayloft/kilncat/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "kilncat",
	Short:   "Pottery catalog server with signed photo URLs",
	Long: `Kilncat is a pottery catalog backend that tracks pieces through
their firing stages, stores their photos on the local filesystem, and
serves photo content through short-lived signed URLs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path(s), later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: KILNCAT_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: kilncat.db, env: KILNCAT_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-path", "", "blob storage directory (default: ./data, env: KILNCAT_STORAGE_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
