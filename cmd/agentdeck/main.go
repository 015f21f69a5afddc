package main

import (
	"os"

	"agentdeck/cmd/agentdeck/deploy"
	"agentdeck/cmd/agentdeck/example"
	"agentdeck/cmd/agentdeck/multimodel"
	"agentdeck/cmd/agentdeck/run"
	"agentdeck/cmd/agentdeck/setup"
	"agentdeck/cmd/agentdeck/ui"
	"agentdeck/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	logger.Init()
	rootCmd := &cobra.Command{
		Use:          "agentdeck",
		Short:        "Run, deploy and chat with ADK demo agents on Vertex AI Agent Engine",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(setup.Cmd)
	rootCmd.AddCommand(run.Cmd)
	rootCmd.AddCommand(multimodel.Cmd)
	rootCmd.AddCommand(deploy.Cmd)
	rootCmd.AddCommand(example.Cmd)
	rootCmd.AddCommand(ui.Cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
