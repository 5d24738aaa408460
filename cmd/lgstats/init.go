package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caevv/lgstats/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with every option set to its default.

Example:
  lgstats init --server http://coordinator:9999`,
	RunE: initConfig,
}

func init() {
	addConfigFlag(initCmd)
	initCmd.Flags().StringP("server", "s", "", "Base URL of the job coordinator API")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
}

func initConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	server, _ := cmd.Flags().GetString("server")
	force, _ := cmd.Flags().GetBool("force")

	cfg, err := config.InitConfig(path, server, force)
	if err != nil {
		return err
	}

	logger.Info("configuration written", "path", path, "server", cfg.Server.BaseURL)
	fmt.Fprintf(os.Stdout, "✓ Configuration written: %s\n", path)
	return nil
}
