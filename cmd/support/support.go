// Package support implements the support bundle subcommand.
package support

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pcmflow/pcmflow/internal/diagnostics"
)

// Command creates the support dump command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "support",
		Short: "Collect debug information for a support report",
		Long:  "Capture host, CPU and audio device information into a debug file next to the configuration file, and print it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(diagnostics.CaptureSystemInfo("user requested support bundle"))
			return nil
		},
	}
}
