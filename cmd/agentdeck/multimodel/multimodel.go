package multimodel

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"agentdeck/cmd/agentdeck/common"
	"agentdeck/internal/agents"
	"agentdeck/internal/chat"
	"agentdeck/internal/config"
	dp "agentdeck/internal/deploy"
	"agentdeck/internal/llm"

	"github.com/spf13/cobra"
)

const (
	appName = "weather_agent_multi_model_app"
	userID  = "user_1"
)

var models []string

var Cmd = &cobra.Command{
	Use:   "multimodel",
	Short: "Run the weather agent over Gemini, OpenAI and Anthropic models",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, shutdown, err := common.Bootstrap(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		out := cmd.OutOrStdout()
		warnMissingKeys(out, cfg)

		reg, _, err := common.Registry(cfg)
		if err != nil {
			return fmt.Errorf("setting up agents: %w", err)
		}
		b := common.Builder(ctx, cfg, reg)

		specs := models
		if len(specs) == 0 {
			specs = cfg.Models.MultiModel
		}
		for _, spec := range specs {
			name := displayName(spec)
			fmt.Fprintf(out, "\n%s\nTesting %s Agent\n%s\n", strings.Repeat("=", 50), name, strings.Repeat("=", 50))
			if err := runOne(ctx, out, b, spec); err != nil {
				fmt.Fprintf(out, "Error testing %s agent: %v\n", name, err)
				fmt.Fprintln(out, "This might be due to missing API keys or configuration issues.")
			}
		}
		return nil
	},
}

func runOne(ctx context.Context, out io.Writer, b *agents.Builder, spec string) error {
	p := agents.ComparisonProfile(spec, displayName(spec))
	root, err := b.Build(p)
	if err != nil {
		return err
	}
	l, err := chat.NewLocal(appName, userID, root)
	if err != nil {
		return err
	}
	id, err := l.Open(ctx, "session_"+strings.ToLower(displayName(spec)), map[string]any{dp.StateTemperatureUnit: "Celsius"})
	if err != nil {
		return err
	}
	_, err = l.Play(ctx, out, id, []chat.Step{
		{Query: "Hello there!"},
		{Query: "What's the weather in London?"},
	})
	return err
}

func displayName(spec string) string {
	switch provider, _ := llm.ParseSpec(spec); provider {
	case llm.ProviderOpenAI:
		return "GPT"
	case llm.ProviderAnthropic:
		return "Claude"
	default:
		return "Gemini"
	}
}

func warnMissingKeys(out io.Writer, cfg *config.Config) {
	var missing []string
	if cfg.Cloud.GoogleAPIKey == "" && !cfg.Cloud.UseVertexAI {
		missing = append(missing, "GOOGLE_API_KEY")
	}
	if c := cfg.LLMs[llm.ProviderOpenAI]; c == nil || c.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c := cfg.LLMs[llm.ProviderAnthropic]; c == nil || c.APIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if len(missing) == 0 {
		return
	}
	fmt.Fprintf(out, "Warning: The following API keys are not set: %s\n", strings.Join(missing, ", "))
	fmt.Fprintln(out, "Some examples may not work without these keys.")
	fmt.Fprintln(out, "Please set them before running this example:")
	for _, k := range missing {
		fmt.Fprintf(out, "export %s=your_%s\n", k, strings.ToLower(k))
	}
}

func init() {
	Cmd.Flags().StringArrayVar(&models, "model", nil, "model spec to test (repeatable); defaults to [models].multi_model")
}
