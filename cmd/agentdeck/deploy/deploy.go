package deploy

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"agentdeck/cmd/agentdeck/common"
	"agentdeck/internal/agents"
	dp "agentdeck/internal/deploy"
	"agentdeck/internal/engine"

	"github.com/spf13/cobra"
)

var (
	appName           string
	projectID         string
	location          string
	bucket            string
	resourceID        string
	weatherAPIKey     string
	initialStatesPath string
	mapKey            string
	packageRoot       string
	agentObject       string

	create    bool
	del       bool
	quicktest bool
)

var Cmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create, delete or quick-test an Agent Engine deployment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, shutdown, err := common.Bootstrap(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		app, err := dp.LookupApp(appName)
		if err != nil {
			return err
		}

		s := dp.SettingsFromConfig(cfg)
		s.Override(dp.EnvProject, projectID)
		s.Override(dp.EnvLocation, location)
		s.Override(dp.EnvBucket, bucket)
		s.Override(dp.EnvWeatherKey, weatherAPIKey)
		s.Override(dp.EnvScenario, initialStatesPath)
		s.Override(dp.EnvPlacesKey, mapKey)
		s.ResourceID = resourceID
		s.PackageRoot = packageRoot
		s.AgentObject = agentObject

		out := cmd.OutOrStdout()
		s.PrintSummary(out, app)
		if err := s.Validate(app); err != nil {
			return err
		}

		op := selectedOp()
		if op == dp.OpNone {
			return dp.ErrUnknownCommand
		}

		client, err := engine.New(ctx, s.Project, s.Location)
		if err != nil {
			return err
		}
		d := &dp.Deployer{Client: client, Out: out}
		if op == dp.OpCreate {
			stager, err := engine.NewStager(ctx, client, s.Bucket)
			if err != nil {
				return err
			}
			d.Stager = stager
		}
		return d.Run(ctx, op, app, s)
	},
}

func selectedOp() dp.Op {
	switch {
	case create:
		return dp.OpCreate
	case del:
		return dp.OpDelete
	case quicktest:
		return dp.OpQuickTest
	}
	return dp.OpNone
}

func init() {
	f := Cmd.Flags()
	f.StringVar(&appName, "app", agents.AppWeather, fmt.Sprintf("app to deploy %v", agents.AppNames()))
	f.StringVar(&projectID, "project_id", "", "GCP project ID.")
	f.StringVar(&location, "location", "", "GCP location.")
	f.StringVar(&bucket, "bucket", "", "GCP bucket.")
	f.StringVar(&resourceID, "resource_id", "", "ReasoningEngine resource ID.")
	f.StringVar(&weatherAPIKey, "weather_api_key", "", "API Key for a weather service.")
	f.StringVar(&initialStatesPath, "initial_states_path", "", "Relative path to the initial state file, e.g. eval/itinerary_empty_default.json")
	f.StringVar(&mapKey, "map_key", "", "API Key for Google Places API")
	f.StringVar(&packageRoot, "package_root", ".", "directory the app's extra packages are resolved against")
	f.StringVar(&agentObject, "agent_object", "", "serialized agent object to stage with the deployment")
	f.BoolVar(&create, "create", false, "Creates a new deployment.")
	f.BoolVar(&del, "delete", false, "Deletes an existing deployment.")
	f.BoolVar(&quicktest, "quicktest", false, "Try a new deployment with one turn.")
	Cmd.MarkFlagsMutuallyExclusive("create", "delete", "quicktest")
}
