package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/bwmarrin/discordgo"
)

// restClient is the subset of *discordgo.Session the channel service calls.
type restClient interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMemberMove(guildID string, userID string, channelID *string, options ...discordgo.RequestOption) error
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// ChannelService implements ports.ChannelService on top of the Discord REST
// API. Member counts come from the gateway state cache, which discordgo keeps
// current from voice state events.
type ChannelService struct {
	rest  restClient
	state *discordgo.State
}

func NewChannelService(rest restClient, state *discordgo.State) (*ChannelService, error) {
	if rest == nil {
		return nil, errors.New("discord rest client is nil")
	}
	if state == nil {
		return nil, errors.New("discord state cache is nil")
	}

	return &ChannelService{rest: rest, state: state}, nil
}

// NewSessionChannelService builds a channel service backed by a live session.
func NewSessionChannelService(session *discordgo.Session) (*ChannelService, error) {
	if session == nil {
		return nil, errors.New("discord session is nil")
	}

	return NewChannelService(session, session.State)
}

func (s *ChannelService) CreateVoiceChannel(ctx context.Context, guildID domain.GuildID, spec domain.VoiceChannelSpec) (domain.ChannelID, error) {
	data := discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildVoice,
		UserLimit:            spec.Capacity,
		ParentID:             string(spec.ParentID),
		PermissionOverwrites: overwrites(spec.Grants),
	}

	channel, err := s.rest.GuildChannelCreateComplex(string(guildID), data, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify("create voice channel", err)
	}
	if channel == nil || channel.ID == "" {
		return "", fmt.Errorf("create voice channel: %w: empty channel in response", domain.ErrPlatform)
	}

	return domain.ChannelID(channel.ID), nil
}

func (s *ChannelService) MoveMember(ctx context.Context, guildID domain.GuildID, memberID domain.MemberID, channelID domain.ChannelID) error {
	target := string(channelID)
	if err := s.rest.GuildMemberMove(string(guildID), string(memberID), &target, discordgo.WithContext(ctx)); err != nil {
		return classify("move member", err)
	}

	return nil
}

func (s *ChannelService) ChannelMemberCount(ctx context.Context, guildID domain.GuildID, channelID domain.ChannelID) (int, error) {
	channel, err := s.state.Channel(string(channelID))
	if errors.Is(err, discordgo.ErrStateNotFound) {
		channel, err = s.rest.Channel(string(channelID), discordgo.WithContext(ctx))
	}
	if err != nil {
		return 0, classify("count channel members", err)
	}

	if channel.GuildID != "" {
		guildID = domain.GuildID(channel.GuildID)
	}

	s.state.RLock()
	defer s.state.RUnlock()

	guild, err := s.guildLocked(string(guildID))
	if err != nil {
		return 0, fmt.Errorf("count channel members: %w: guild %s not cached: %w", domain.ErrPlatform, guildID, err)
	}

	count := 0
	for _, voiceState := range guild.VoiceStates {
		if voiceState != nil && voiceState.ChannelID == channel.ID {
			count++
		}
	}

	return count, nil
}

func (s *ChannelService) DeleteChannel(ctx context.Context, channelID domain.ChannelID) error {
	if _, err := s.rest.ChannelDelete(string(channelID), discordgo.WithContext(ctx)); err != nil {
		return classify("delete channel", err)
	}

	return nil
}

// guildLocked looks a guild up without taking the state lock again; the
// caller holds the read lock.
func (s *ChannelService) guildLocked(guildID string) (*discordgo.Guild, error) {
	for _, guild := range s.state.Guilds {
		if guild != nil && guild.ID == guildID {
			return guild, nil
		}
	}

	return nil, discordgo.ErrStateNotFound
}

func overwrites(grants []domain.PermissionGrant) []*discordgo.PermissionOverwrite {
	if len(grants) == 0 {
		return nil
	}

	out := make([]*discordgo.PermissionOverwrite, 0, len(grants))
	for _, grant := range grants {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    grant.TargetID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: permissionBits(grant.Allow),
		})
	}

	return out
}

func permissionBits(p domain.Permission) int64 {
	var bits int64
	if p.Has(domain.PermissionView) {
		bits |= discordgo.PermissionViewChannel
	}
	if p.Has(domain.PermissionConnect) {
		bits |= discordgo.PermissionVoiceConnect
	}
	if p.Has(domain.PermissionSpeak) {
		bits |= discordgo.PermissionVoiceSpeak
	}

	return bits
}
