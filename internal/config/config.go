package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/bnema/tempvc/internal/application"
	"github.com/bnema/tempvc/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "TEMPVC"
	AppName   = "tempvc"

	KeyDiscordToken   = "discord.token"
	KeyDiscordGuildID = "discord.guild_id"
	KeyCategoryID     = "voice.category_id"
	KeyGracePeriod    = "voice.grace_period"
	KeyRequestTimeout = "voice.request_timeout"
	KeyStatePath      = "voice.state_path"
	KeyTemplates      = "voice.templates"
	KeySecretsDir     = "secrets.dir"
	KeySecretsBackend = "secrets.backend"
	KeyMetricsListen  = "metrics.listen"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
)

type Template struct {
	TriggerChannelID string `mapstructure:"trigger_channel_id"`
	DisplayName      string `mapstructure:"display_name"`
	Capacity         int    `mapstructure:"capacity"`
	StartAt          int    `mapstructure:"start_at"`
}

type Discord struct {
	Token   string `mapstructure:"token"`
	GuildID string `mapstructure:"guild_id"`
}

type Voice struct {
	CategoryID     string        `mapstructure:"category_id"`
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	StatePath      string        `mapstructure:"state_path"`
	Templates      []Template    `mapstructure:"templates"`
}

type Secrets struct {
	// Backend is "auto" (pass, then files), "pass" or "file".
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type Metrics struct {
	Listen string `mapstructure:"listen"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Discord Discord `mapstructure:"discord"`
	Voice   Voice   `mapstructure:"voice"`
	Secrets Secrets `mapstructure:"secrets"`
	Metrics Metrics `mapstructure:"metrics"`
	Log     Log     `mapstructure:"log"`
}

type LoadOptions struct {
	// ConfigFile overrides the XDG lookup when set.
	ConfigFile string
	// EnvFile is a dotenv file merged into the process environment. Missing
	// files are ignored.
	EnvFile string
}

// DefaultConfigDir is $XDG_CONFIG_HOME/tempvc.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Load reads configuration from the config file, TEMPVC_* environment
// variables and an optional .env file. The returned viper instance is what
// adapters receive.
func Load(opts LoadOptions) (*viper.Viper, Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, Config{}, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, Config{}, fmt.Errorf("decode config: %w: %w", domain.ErrInvalidConfig, err)
	}

	return v, cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDiscordToken, "")
	v.SetDefault(KeyDiscordGuildID, "")
	v.SetDefault(KeyCategoryID, "")
	v.SetDefault(KeyGracePeriod, application.DefaultGracePeriod)
	v.SetDefault(KeyRequestTimeout, application.DefaultRequestTimeout)
	v.SetDefault(KeyStatePath, filepath.Join(xdg.StateHome, AppName, "state.toml"))
	v.SetDefault(KeySecretsDir, filepath.Join(xdg.DataHome, AppName, "secrets"))
	v.SetDefault(KeySecretsBackend, "auto")
	v.SetDefault(KeyMetricsListen, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}

	return nil
}

// TriggerTemplates converts the configured templates into domain values.
// A zero start_at means the first channel is numbered 1.
func (c Config) TriggerTemplates() []domain.TriggerTemplate {
	templates := make([]domain.TriggerTemplate, 0, len(c.Voice.Templates))
	for _, t := range c.Voice.Templates {
		start := t.StartAt
		if start == 0 {
			start = 1
		}
		templates = append(templates, domain.TriggerTemplate{
			TriggerChannelID: domain.ChannelID(strings.TrimSpace(t.TriggerChannelID)),
			DisplayName:      strings.TrimSpace(t.DisplayName),
			MemberCapacity:   t.Capacity,
			Sequence:         start,
		})
	}

	return templates
}

// Validate checks what the run command needs before connecting.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Voice.CategoryID) == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyCategoryID))
	}
	if c.Voice.GracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyGracePeriod, c.Voice.GracePeriod))
	}
	if c.Voice.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyRequestTimeout, c.Voice.RequestTimeout))
	}
	if len(c.Voice.Templates) == 0 {
		errs = append(errs, fmt.Errorf("%s needs at least one entry", KeyTemplates))
	}

	seen := map[domain.ChannelID]bool{}
	for i, template := range c.TriggerTemplates() {
		if err := template.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", KeyTemplates, i, err))
			continue
		}
		if seen[template.TriggerChannelID] {
			errs = append(errs, fmt.Errorf("%s[%d]: duplicate trigger channel %s", KeyTemplates, i, template.TriggerChannelID))
		}
		seen[template.TriggerChannelID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}
