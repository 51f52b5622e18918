package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/armadaproject/ingestq/internal/common"
	commonconfig "github.com/armadaproject/ingestq/internal/common/config"
	"github.com/armadaproject/ingestq/internal/ingestq/configuration"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/ingestq"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ingestq",
		SilenceUsage: true,
		Short:        "Accepts batches of ids and processes them in rate-limited, prioritised sub-batches",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	cobra.CheckErr(viper.BindPFlag(CustomConfigLocation, cmd.PersistentFlags().Lookup(CustomConfigLocation)))

	cmd.AddCommand(
		runCmd(),
	)

	return cmd
}

func loadConfig() (configuration.Configuration, error) {
	var config configuration.Configuration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs)

	err := config.Validate()
	if err != nil {
		commonconfig.LogValidationErrors(err)
	}
	return config, err
}
