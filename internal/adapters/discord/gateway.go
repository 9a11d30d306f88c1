package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/bwmarrin/discordgo"
)

// Intents covers guild channel events and voice state updates, which is all
// the manager needs.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

// VoiceStateHandler consumes normalised voice state transitions.
type VoiceStateHandler interface {
	HandleVoiceStateUpdate(ctx context.Context, transition domain.VoiceStateTransition)
}

// NewSession configures, without connecting, a bot session whose event
// handlers run one at a time on the gateway goroutine.
func NewSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.SyncEvents = true
	session.StateEnabled = true
	session.State.TrackVoice = true
	session.State.TrackChannels = true

	return session, nil
}

type GatewayConfig struct {
	// GuildID restricts handling to one guild. Empty means every guild the bot is in.
	GuildID domain.GuildID
}

// Gateway bridges discordgo gateway events into the application layer.
type Gateway struct {
	session *discordgo.Session
	guildID domain.GuildID
	logger  *slog.Logger

	mu       sync.Mutex
	expected map[string]bool
	ready    chan struct{}
	isReady  bool
	removers []func()
}

func NewGateway(session *discordgo.Session, cfg GatewayConfig, logger *slog.Logger) (*Gateway, error) {
	if session == nil {
		return nil, errors.New("discord session is nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Gateway{
		session: session,
		guildID: cfg.GuildID,
		logger:  logger,
		ready:   make(chan struct{}),
	}, nil
}

// Open registers handlers and connects to the gateway. Voice events are
// delivered to handler with ctx until Close.
func (g *Gateway) Open(ctx context.Context, handler VoiceStateHandler) error {
	if handler == nil {
		return errors.New("voice state handler is nil")
	}

	g.removers = append(g.removers,
		g.session.AddHandler(func(_ *discordgo.Session, event *discordgo.Ready) {
			g.onReady(event)
		}),
		g.session.AddHandler(func(_ *discordgo.Session, event *discordgo.GuildCreate) {
			g.onGuildCreate(event)
		}),
		g.session.AddHandler(func(_ *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			transition, ok := g.Transition(event)
			if !ok {
				return
			}
			handler.HandleVoiceStateUpdate(ctx, transition)
		}),
	)

	if err := g.session.Open(); err != nil {
		g.removeHandlers()
		return fmt.Errorf("open discord gateway: %w", err)
	}

	return nil
}

// WaitGuilds blocks until every guild announced in READY has been cached, so
// member counts read from the state are meaningful.
func (g *Gateway) WaitGuilds(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for guild cache: %w", ctx.Err())
	}
}

func (g *Gateway) Close() error {
	g.removeHandlers()
	if err := g.session.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}

	return nil
}

// Transition turns a raw voice state update into a domain transition. Events
// from other guilds than the configured one are dropped.
func (g *Gateway) Transition(event *discordgo.VoiceStateUpdate) (domain.VoiceStateTransition, bool) {
	if event == nil || event.VoiceState == nil {
		return domain.VoiceStateTransition{}, false
	}
	if g.guildID != "" && domain.GuildID(event.GuildID) != g.guildID {
		return domain.VoiceStateTransition{}, false
	}

	transition := domain.VoiceStateTransition{
		GuildID:   domain.GuildID(event.GuildID),
		MemberID:  domain.MemberID(event.UserID),
		ChannelID: domain.ChannelID(event.ChannelID),
	}
	if event.BeforeUpdate != nil {
		transition.PreviousChannelID = domain.ChannelID(event.BeforeUpdate.ChannelID)
	}

	return transition, true
}

func (g *Gateway) onReady(event *discordgo.Ready) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expected = map[string]bool{}
	for _, guild := range event.Guilds {
		if guild == nil {
			continue
		}
		if g.guildID != "" && domain.GuildID(guild.ID) != g.guildID {
			continue
		}
		g.expected[guild.ID] = true
	}
	attrs := []any{slog.Int("guilds", len(g.expected))}
	if event.User != nil {
		attrs = append(attrs, slog.String("user", event.User.Username))
	}
	g.logger.Info("discord gateway ready", attrs...)
	g.markReadyLocked()
}

func (g *Gateway) onGuildCreate(event *discordgo.GuildCreate) {
	if event == nil || event.Guild == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.expected == nil {
		return
	}
	delete(g.expected, event.ID)
	g.markReadyLocked()
}

func (g *Gateway) markReadyLocked() {
	if g.isReady || len(g.expected) > 0 {
		return
	}
	g.isReady = true
	close(g.ready)
}

func (g *Gateway) removeHandlers() {
	for _, remove := range g.removers {
		remove()
	}
	g.removers = nil
}
