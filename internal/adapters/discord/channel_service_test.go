package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moveCall struct {
	guildID   string
	userID    string
	channelID string
}

type fakeRest struct {
	created   []discordgo.GuildChannelCreateData
	createdIn []string
	moves     []moveCall
	deleted   []string
	lookups   []string

	createErr error
	moveErr   error
	deleteErr error
	channels  map[string]*discordgo.Channel
}

func (f *fakeRest) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, data)
	f.createdIn = append(f.createdIn, guildID)
	return &discordgo.Channel{ID: "new-vc", GuildID: guildID, Name: data.Name}, nil
}

func (f *fakeRest) GuildMemberMove(guildID string, userID string, channelID *string, _ ...discordgo.RequestOption) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, moveCall{guildID: guildID, userID: userID, channelID: *channelID})
	return nil
}

func (f *fakeRest) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, channelID)
	return &discordgo.Channel{ID: channelID}, nil
}

func (f *fakeRest) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.lookups = append(f.lookups, channelID)
	if channel, ok := f.channels[channelID]; ok {
		return channel, nil
	}
	return nil, restError(http.StatusNotFound, discordgo.ErrCodeUnknownChannel)
}

func restError(status, code int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "failure"},
	}
}

func newTestState(t *testing.T, voiceStates ...*discordgo.VoiceState) *discordgo.State {
	t.Helper()

	state := discordgo.NewState()
	err := state.GuildAdd(&discordgo.Guild{
		ID: "guild-1",
		Channels: []*discordgo.Channel{
			{ID: "vc-1", GuildID: "guild-1", Type: discordgo.ChannelTypeGuildVoice},
			{ID: "vc-2", GuildID: "guild-1", Type: discordgo.ChannelTypeGuildVoice},
		},
		VoiceStates: voiceStates,
	})
	require.NoError(t, err)

	return state
}

func TestCreateVoiceChannelSendsCapacityParentAndGrant(t *testing.T) {
	t.Parallel()

	rest := &fakeRest{}
	service, err := NewChannelService(rest, newTestState(t))
	require.NoError(t, err)

	id, err := service.CreateVoiceChannel(context.Background(), "guild-1", domain.VoiceChannelSpec{
		Name:     "Trio VC 2",
		Capacity: 3,
		ParentID: "category-1",
		Grants:   []domain.PermissionGrant{{TargetID: "guild-1", Allow: domain.PermissionJoin}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelID("new-vc"), id)

	require.Len(t, rest.created, 1)
	data := rest.created[0]
	assert.Equal(t, []string{"guild-1"}, rest.createdIn)
	assert.Equal(t, "Trio VC 2", data.Name)
	assert.Equal(t, discordgo.ChannelTypeGuildVoice, data.Type)
	assert.Equal(t, 3, data.UserLimit)
	assert.Equal(t, "category-1", data.ParentID)
	require.Len(t, data.PermissionOverwrites, 1)

	overwrite := data.PermissionOverwrites[0]
	assert.Equal(t, "guild-1", overwrite.ID)
	assert.Equal(t, discordgo.PermissionOverwriteTypeRole, overwrite.Type)
	assert.Equal(t, discordgo.PermissionViewChannel|discordgo.PermissionVoiceConnect|discordgo.PermissionVoiceSpeak, overwrite.Allow)
	assert.Zero(t, overwrite.Deny)
}

func TestCreateVoiceChannelClassifiesPermissionFailure(t *testing.T) {
	t.Parallel()

	rest := &fakeRest{createErr: restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions)}
	service, err := NewChannelService(rest, newTestState(t))
	require.NoError(t, err)

	_, err = service.CreateVoiceChannel(context.Background(), "guild-1", domain.VoiceChannelSpec{Name: "Duo VC 1", Capacity: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.ErrorContains(t, err, "create voice channel")
}

func TestMoveMemberTargetsChannel(t *testing.T) {
	t.Parallel()

	rest := &fakeRest{}
	service, err := NewChannelService(rest, newTestState(t))
	require.NoError(t, err)

	require.NoError(t, service.MoveMember(context.Background(), "guild-1", "member-7", "vc-2"))
	assert.Equal(t, []moveCall{{guildID: "guild-1", userID: "member-7", channelID: "vc-2"}}, rest.moves)
}

func TestMoveMemberClassifiesUnknownMember(t *testing.T) {
	t.Parallel()

	rest := &fakeRest{moveErr: restError(http.StatusBadRequest, discordgo.ErrCodeUnknownMember)}
	service, err := NewChannelService(rest, newTestState(t))
	require.NoError(t, err)

	err = service.MoveMember(context.Background(), "guild-1", "member-7", "vc-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChannelMemberCountReadsVoiceStates(t *testing.T) {
	t.Parallel()

	state := newTestState(t,
		&discordgo.VoiceState{GuildID: "guild-1", UserID: "a", ChannelID: "vc-1"},
		&discordgo.VoiceState{GuildID: "guild-1", UserID: "b", ChannelID: "vc-1"},
		&discordgo.VoiceState{GuildID: "guild-1", UserID: "c", ChannelID: "vc-2"},
	)
	rest := &fakeRest{}
	service, err := NewChannelService(rest, state)
	require.NoError(t, err)

	count, err := service.ChannelMemberCount(context.Background(), "guild-1", "vc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = service.ChannelMemberCount(context.Background(), "guild-1", "vc-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, rest.lookups)
}

func TestChannelMemberCountFallsBackToRest(t *testing.T) {
	t.Parallel()

	rest := &fakeRest{channels: map[string]*discordgo.Channel{
		"vc-9": {ID: "vc-9", GuildID: "guild-1", Type: discordgo.ChannelTypeGuildVoice},
	}}
	service, err := NewChannelService(rest, newTestState(t))
	require.NoError(t, err)

	count, err := service.ChannelMemberCount(context.Background(), "guild-1", "vc-9")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, []string{"vc-9"}, rest.lookups)
}

func TestChannelMemberCountReportsMissingChannel(t *testing.T) {
	t.Parallel()

	service, err := NewChannelService(&fakeRest{}, newTestState(t))
	require.NoError(t, err)

	_, err = service.ChannelMemberCount(context.Background(), "guild-1", "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChannelMemberCountNeedsCachedGuild(t *testing.T) {
	t.Parallel()

	rest := &fakeRest{channels: map[string]*discordgo.Channel{
		"vc-9": {ID: "vc-9", GuildID: "guild-2"},
	}}
	service, err := NewChannelService(rest, newTestState(t))
	require.NoError(t, err)

	_, err = service.ChannelMemberCount(context.Background(), "guild-2", "vc-9")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPlatform)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteChannel(t *testing.T) {
	t.Parallel()

	rest := &fakeRest{}
	service, err := NewChannelService(rest, newTestState(t))
	require.NoError(t, err)

	require.NoError(t, service.DeleteChannel(context.Background(), "vc-1"))
	assert.Equal(t, []string{"vc-1"}, rest.deleted)

	rest.deleteErr = restError(http.StatusNotFound, discordgo.ErrCodeUnknownChannel)
	err = service.DeleteChannel(context.Background(), "vc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want error
	}{
		{name: "unknown channel code", err: restError(http.StatusBadRequest, discordgo.ErrCodeUnknownChannel), want: domain.ErrNotFound},
		{name: "plain 404", err: restError(http.StatusNotFound, 0), want: domain.ErrNotFound},
		{name: "missing access code", err: restError(http.StatusBadRequest, discordgo.ErrCodeMissingAccess), want: domain.ErrPermissionDenied},
		{name: "plain 403", err: restError(http.StatusForbidden, 0), want: domain.ErrPermissionDenied},
		{name: "server error", err: restError(http.StatusBadGateway, 0), want: domain.ErrPlatform},
		{name: "transport", err: errors.New("connection reset"), want: domain.ErrPlatform},
		{name: "state miss", err: discordgo.ErrStateNotFound, want: domain.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("op", tc.err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	assert.NoError(t, classify("op", nil))
}

func TestNewChannelServiceRejectsNilDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewChannelService(nil, discordgo.NewState())
	assert.ErrorContains(t, err, "rest client is nil")

	_, err = NewChannelService(&fakeRest{}, nil)
	assert.ErrorContains(t, err, "state cache is nil")

	_, err = NewSessionChannelService(nil)
	assert.ErrorContains(t, err, "session is nil")
}
