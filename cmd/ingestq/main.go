package main

import (
	"os"

	"github.com/armadaproject/ingestq/cmd/ingestq/cmd"
	"github.com/armadaproject/ingestq/internal/common"
)

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
