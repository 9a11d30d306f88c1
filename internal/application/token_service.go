package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/bnema/tempvc/internal/ports"
)

const DiscordTokenKey = "tempvc/discord-token"

var ErrEmptyToken = errors.New("bot token is empty")

type TokenService struct {
	store ports.SecretStore
}

func NewTokenService(store ports.SecretStore) *TokenService {
	return &TokenService{store: store}
}

func (s *TokenService) SetToken(ctx context.Context, token string) error {
	token = normalizeToken(token)
	if token == "" {
		return ErrEmptyToken
	}

	if err := s.store.Put(ctx, DiscordTokenKey, token); err != nil {
		return fmt.Errorf("store bot token: %w", err)
	}

	return nil
}

func (s *TokenService) RemoveToken(ctx context.Context) error {
	if err := s.store.Delete(ctx, DiscordTokenKey); err != nil {
		return fmt.Errorf("delete bot token: %w", err)
	}

	return nil
}

// ResolveToken returns the first non-empty override, falling back to the
// secret store.
func (s *TokenService) ResolveToken(ctx context.Context, overrides ...string) (string, error) {
	for _, override := range overrides {
		if token := normalizeToken(override); token != "" {
			return token, nil
		}
	}

	stored, err := s.store.Get(ctx, DiscordTokenKey)
	if err != nil {
		return "", fmt.Errorf("load bot token: %w: %w", domain.ErrSecretNotFound, err)
	}

	token := normalizeToken(stored)
	if token == "" {
		return "", fmt.Errorf("load bot token: %w", domain.ErrSecretNotFound)
	}

	return token, nil
}

func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	token = strings.TrimPrefix(token, "Bot ")
	return strings.TrimSpace(token)
}
