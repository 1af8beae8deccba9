// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "pcmflow")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "pcmflow.log")
	viper.SetDefault("main.log.level", "info")

	viper.SetDefault("audio.samplerate", 48000)
	viper.SetDefault("audio.channels", 2)
	viper.SetDefault("audio.bufferframes", 512)
	viper.SetDefault("audio.devicesamplerate", 0)
	viper.SetDefault("audio.ringperiods", 8)
	viper.SetDefault("audio.gain", 1.0)

	viper.SetDefault("audio.output.enabled", true)
	viper.SetDefault("audio.output.device", "")
	viper.SetDefault("audio.input.enabled", false)
	viper.SetDefault("audio.input.device", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")
}
