package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Counters []counterSchema `toml:"counters,omitempty"`
	Channels []channelSchema `toml:"channels,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type counterSchema struct {
	TriggerChannelID string `toml:"trigger_channel_id"`
	Next             int    `toml:"next"`
}

type channelSchema struct {
	ChannelID        string `toml:"channel_id"`
	GuildID          string `toml:"guild_id"`
	TriggerChannelID string `toml:"trigger_channel_id,omitempty"`
	Name             string `toml:"name,omitempty"`
	CreatedAt        string `toml:"created_at,omitempty"`
}
