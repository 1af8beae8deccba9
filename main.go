package main

import (
	"fmt"
	"os"

	"github.com/pcmflow/pcmflow/cmd"
	"github.com/pcmflow/pcmflow/internal/conf"
	"github.com/pcmflow/pcmflow/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := logging.ParseLevel(settings.Main.Log.Level)
	if settings.Debug {
		level = logging.ParseLevel("debug")
	}
	logging.Init(level)

	if settings.Main.Log.Enabled {
		fileLogger, closeLogger, err := logging.NewFileLogger(settings.Main.Log.Path, settings.Main.Name, level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		} else {
			fileLogger.Info("pcmflow starting")
			defer func() { _ = closeLogger() }()
		}
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
