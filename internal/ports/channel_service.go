package ports

import (
	"context"

	"github.com/bnema/tempvc/internal/domain"
)

// ChannelService is the channel-management side of the chat platform.
// Implementations wrap failures with domain.ErrNotFound, domain.ErrPermissionDenied
// or domain.ErrPlatform.
type ChannelService interface {
	CreateVoiceChannel(ctx context.Context, guildID domain.GuildID, spec domain.VoiceChannelSpec) (domain.ChannelID, error)
	MoveMember(ctx context.Context, guildID domain.GuildID, memberID domain.MemberID, channelID domain.ChannelID) error
	ChannelMemberCount(ctx context.Context, guildID domain.GuildID, channelID domain.ChannelID) (int, error)
	DeleteChannel(ctx context.Context, channelID domain.ChannelID) error
}
