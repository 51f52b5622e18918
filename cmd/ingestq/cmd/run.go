package cmd

import (
	"github.com/spf13/cobra"

	"github.com/armadaproject/ingestq/internal/ingestq"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the ingestion service",
		RunE:  runIngestq,
	}
	return cmd
}

func runIngestq(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	return ingestq.Run(config)
}
