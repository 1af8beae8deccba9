// Package cmd assembles the pcmflow command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pcmflow/pcmflow/cmd/devices"
	"github.com/pcmflow/pcmflow/cmd/run"
	"github.com/pcmflow/pcmflow/cmd/support"
	"github.com/pcmflow/pcmflow/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pcmflow",
		Short: "pcmflow low-latency audio engine CLI",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		// Flag binding only fails on programmer error.
		panic(err)
	}

	rootCmd.AddCommand(
		run.Command(settings),
		devices.Command(),
		support.Command(),
	)

	return rootCmd
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}
