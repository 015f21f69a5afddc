package ui

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"agentdeck/cmd/agentdeck/common"
	"agentdeck/internal/channels"
	"agentdeck/internal/chat"
	"agentdeck/internal/db"
	dp "agentdeck/internal/deploy"
	"agentdeck/internal/engine"
	"agentdeck/internal/gateway"
	"agentdeck/internal/history"

	"github.com/spf13/cobra"
)

var (
	addr  string
	agent string
)

var Cmd = &cobra.Command{
	Use:   "ui",
	Short: "Serve the chat UI for deployed agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, shutdown, err := common.Bootstrap(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		if addr != "" {
			cfg.UI.Addr = addr
		}
		if err := dp.CheckEnvironment(cfg.Env(), dp.EnvProject, dp.EnvLocation, dp.EnvBucket); err != nil {
			return err
		}

		database, err := db.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		store := history.NewStore(database)

		client, err := engine.New(ctx, cfg.Cloud.Project, cfg.Cloud.Location)
		if err != nil {
			return err
		}

		backend := chat.WithTrace("remote", chat.NewRemote(client, cfg.UI.UserID, chat.WithHistory(store)))
		state := map[string]any{dp.StateTemperatureUnit: "Celsius"}

		chs, err := channels.FromConfig(cfg.Channels, chat.WithTrace("telegram", chat.NewRemote(client, cfg.UI.UserID,
			chat.WithHistory(store), chat.WithChannel("telegram"))), agent, state)
		if err != nil {
			return err
		}
		for _, ch := range chs {
			slog.Info("channel registered", "name", ch.Name())
		}

		srv := gateway.NewServer(backend, gateway.Env{
			Project:  cfg.Cloud.Project,
			Location: cfg.Cloud.Location,
			Bucket:   cfg.Cloud.Bucket,
		},
			gateway.WithHistory(store),
			gateway.WithInitialState(state),
			gateway.WithChannels(chs...),
		)
		slog.Info("starting ui", "addr", cfg.UI.Addr, "channels", len(chs))
		fmt.Fprintf(cmd.OutOrStdout(), "Chat UI on http://localhost%s\n", cfg.UI.Addr)
		return srv.ListenAndServe(ctx, cfg.UI.Addr)
	},
}

func init() {
	Cmd.Flags().StringVarP(&addr, "addr", "a", "", "override UI listen address")
	Cmd.Flags().StringVar(&agent, "agent", "", "agent resource name for channel sessions")
}
