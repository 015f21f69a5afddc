package run

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"agentdeck/cmd/agentdeck/common"
	"agentdeck/internal/agents"
	"agentdeck/internal/chat"
	dp "agentdeck/internal/deploy"

	"github.com/spf13/cobra"
)

const (
	appName   = "weather_agent_app"
	userID    = "user_1"
	sessionID = "session_001"
)

var (
	app      string
	model    string
	messages []string
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Run an agent locally with in-memory sessions",
	Long: "Runs the agent in-process. Without --message the weather agent plays its scripted\n" +
		"conversation, including a preference switch to Fahrenheit and a guardrail check.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, shutdown, err := common.Bootstrap(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		root, err := common.BuildApp(ctx, cfg, app, common.ModelSpec(cfg, model))
		if err != nil {
			return err
		}

		l, err := chat.NewLocal(appName, userID, root)
		if err != nil {
			return err
		}

		var state map[string]any
		if app == agents.AppWeather {
			state = map[string]any{dp.StateTemperatureUnit: "Celsius"}
		}
		id, err := l.Open(ctx, sessionID, state)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session created: App='%s', User='%s', Session='%s'\n", appName, userID, id)
		fmt.Fprintf(out, "Runner created for agent '%s'.\n", l.AgentName())

		steps := chat.WeatherScript()
		if len(messages) > 0 || app != agents.AppWeather {
			steps = nil
			for _, m := range messages {
				steps = append(steps, chat.Step{Query: m})
			}
		}
		if len(steps) == 0 {
			return fmt.Errorf("no messages to send: pass --message")
		}

		_, err = l.Play(ctx, out, id, steps)
		return err
	},
}

func init() {
	f := Cmd.Flags()
	f.StringVar(&app, "app", agents.AppWeather, fmt.Sprintf("app to run %v", agents.AppNames()))
	f.StringVarP(&model, "model", "m", "", "model spec, e.g. gemini-2.0-flash, openai/gpt-4o, anthropic/claude-sonnet-4-20250514")
	f.StringArrayVar(&messages, "message", nil, "message to send (repeatable); replaces the scripted conversation")
}
