package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/tempvc/internal/adapters/discord"
	"github.com/bnema/tempvc/internal/adapters/metrics"
	"github.com/bnema/tempvc/internal/application"
	"github.com/bnema/tempvc/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const guildCacheTimeout = 30 * time.Second

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and manage temporary voice channels until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := app.config.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			token, err := app.tokens.ResolveToken(ctx, app.config.Discord.Token)
			if err != nil {
				return fmt.Errorf("%w (set TEMPVC_DISCORD_TOKEN or run `tempvc token set`)", err)
			}

			return serve(ctx, app, token, cmd.ErrOrStderr())
		},
	}
}

func serve(ctx context.Context, app *app, token string, progress io.Writer) error {
	logger := app.logger

	session, err := discord.NewSession(token)
	if err != nil {
		return err
	}
	channels, err := discord.NewSessionChannelService(session)
	if err != nil {
		return fmt.Errorf("wire channel service: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	manager, err := application.NewVoiceManager(application.VoiceConfig{
		CategoryID:     domain.ChannelID(app.config.Voice.CategoryID),
		GracePeriod:    app.config.Voice.GracePeriod,
		RequestTimeout: app.config.Voice.RequestTimeout,
		Templates:      app.config.TriggerTemplates(),
	}, application.VoiceDeps{
		Channels: channels,
		State:    app.stateRepo,
		Recorder: recorder,
		Logger:   logger.With(slog.String("component", "voice")),
	})
	if err != nil {
		return fmt.Errorf("wire voice manager: %w", err)
	}

	gateway, err := discord.NewGateway(session, discord.GatewayConfig{
		GuildID: domain.GuildID(app.config.Discord.GuildID),
	}, logger.With(slog.String("component", "gateway")))
	if err != nil {
		return fmt.Errorf("wire gateway: %w", err)
	}

	if err := manager.Restore(ctx); err != nil {
		return err
	}

	opened := false
	defer func() {
		if !opened {
			return
		}
		if err := gateway.Close(); err != nil {
			logger.Warn("close gateway", slog.Any("error", err))
		}
	}()

	err = withProgress(ctx, progress, "Connecting to Discord...", func(ctx context.Context) error {
		if err := gateway.Open(ctx, manager); err != nil {
			return err
		}
		opened = true

		waitCtx, cancel := context.WithTimeout(ctx, guildCacheTimeout)
		defer cancel()
		if err := gateway.WaitGuilds(waitCtx); err != nil && ctx.Err() == nil {
			logger.Warn("guild cache incomplete, member counts may be stale", slog.Any("error", err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Shutdown()

	serveErr := make(chan error, 1)
	if listen := app.config.Metrics.Listen; listen != "" {
		server := metrics.NewServer(listen, registry, logger.With(slog.String("component", "metrics")))
		go func() {
			serveErr <- server.Serve(ctx)
		}()
	}

	logger.Info("managing temporary voice channels",
		slog.Int("templates", len(app.config.Voice.Templates)),
		slog.Duration("grace_period", app.config.Voice.GracePeriod),
	)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("metrics server stopped: %w", err)
		}
		<-ctx.Done()
	}

	logger.Info("shutting down")
	return nil
}
