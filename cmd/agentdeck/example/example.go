package example

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"agentdeck/cmd/agentdeck/common"
	dp "agentdeck/internal/deploy"
	"agentdeck/internal/engine"

	"github.com/spf13/cobra"
)

var resourceID string

var Cmd = &cobra.Command{
	Use:   "example",
	Short: "Deploy the weather agent, talk to it, and optionally delete it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, shutdown, err := common.Bootstrap(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		out := cmd.OutOrStdout()
		env := cfg.Env()
		env[dp.EnvGoogleAPIKey] = cfg.Cloud.GoogleAPIKey
		if err := dp.CheckEnvironment(env, dp.EnvProject, dp.EnvLocation, dp.EnvBucket, dp.EnvGoogleAPIKey); err != nil {
			return err
		}

		s := dp.SettingsFromConfig(cfg)
		client, err := engine.New(ctx, s.Project, s.Location)
		if err != nil {
			return err
		}
		stager, err := engine.NewStager(ctx, client, s.Bucket)
		if err != nil {
			return err
		}

		d := &dp.Deployer{Client: client, Stager: stager, Out: out}
		if err := d.Example(ctx, cmd.InOrStdin(), s, resourceID); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			fmt.Fprintln(out, "Deployment failed. Please check your environment variables and permissions.")
			return err
		}
		return nil
	},
}

func init() {
	Cmd.Flags().StringVar(&resourceID, "resource_id", "", "talk to an existing deployment instead of creating one")
}
