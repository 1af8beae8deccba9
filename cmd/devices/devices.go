// Package devices implements the device enumeration subcommand.
package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pcmflow/pcmflow/internal/platform/malgodev"
)

// Command creates the devices listing command.
func Command() *cobra.Command {
	var hardwareOnly bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Long:  "List playback and capture devices with the identifiers accepted by the audio.output.device and audio.input.device settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := printDevices(malgodev.DirectionPlayback, hardwareOnly); err != nil {
				return err
			}
			return printDevices(malgodev.DirectionCapture, hardwareOnly)
		},
	}

	cmd.Flags().BoolVar(&hardwareOnly, "hardware", false, "Only list physical devices")
	return cmd
}

func printDevices(dir malgodev.Direction, hardwareOnly bool) error {
	var (
		list []malgodev.DeviceInfo
		err  error
	)
	if hardwareOnly {
		list, err = malgodev.HardwareDevices(dir)
	} else {
		list, err = malgodev.EnumerateDevices(dir)
	}
	if err != nil {
		return fmt.Errorf("error listing %s devices: %w", dir, err)
	}

	fmt.Printf("Available %s devices:\n", dir)
	if len(list) == 0 {
		fmt.Println("  (none)")
		return nil
	}
	for _, device := range list {
		marker := " "
		if device.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s %d: %s (%s)\n", marker, device.Index, device.Name, device.ID)
	}
	return nil
}
