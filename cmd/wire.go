package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	statusadapter "github.com/bnema/tempvc/internal/adapters/render/status"
	tomlrepo "github.com/bnema/tempvc/internal/adapters/repo/toml"
	chainstore "github.com/bnema/tempvc/internal/adapters/secrets/chain"
	filestore "github.com/bnema/tempvc/internal/adapters/secrets/file"
	passstore "github.com/bnema/tempvc/internal/adapters/secrets/pass"
	"github.com/bnema/tempvc/internal/application"
	"github.com/bnema/tempvc/internal/config"
	"github.com/bnema/tempvc/internal/logging"
	"github.com/bnema/tempvc/internal/ports"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	viper          *viper.Viper
	config         config.Config
	logger         *slog.Logger
	stateRepo      ports.StateRepository
	secretStore    ports.SecretStore
	tokens         *application.TokenService
	statusRenderer func(application.Snapshot, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	v, cfg, err := config.Load(config.LoadOptions{
		ConfigFile: opts.configFile,
		EnvFile:    opts.envFile,
	})
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	repo, err := tomlrepo.NewStateRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire state repository: %w", err)
	}

	secretStore, err := newSecretStore(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	return &app{
		viper:          v,
		config:         cfg,
		logger:         logger,
		stateRepo:      repo,
		secretStore:    secretStore,
		tokens:         application.NewTokenService(secretStore),
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}, nil
}

func newSecretStore(cfg config.Secrets) (ports.SecretStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "auto":
		return chainstore.NewPassFirstWithFileFallback(cfg.Dir)
	case "pass":
		return passstore.NewStore(), nil
	case "file":
		return filestore.NewStore(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
}

func writeLine(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format+"\n", args...)
	return err
}
