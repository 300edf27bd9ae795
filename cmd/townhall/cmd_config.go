package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"townhall/internal/config"
)

var configForce bool

// configCmd groups config file management
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	// Skips the root hook so a broken file can still be replaced.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Long: `Writes the default configuration to the path given by --config.
An existing file is left alone unless --force is set.

Example:
  townhall config init --config /etc/townhall.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check config: %w", err)
		}

		if err := config.DefaultConfig().Save(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", styles.Success.Render("OK"), configPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}
