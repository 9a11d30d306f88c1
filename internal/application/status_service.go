package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/bnema/tempvc/internal/ports"
)

// StatusService reads the persisted manager state without connecting to the
// platform, for the status command.
type StatusService struct {
	state     ports.StateRepository
	templates []domain.TriggerTemplate
}

func NewStatusService(state ports.StateRepository, templates []domain.TriggerTemplate) (*StatusService, error) {
	if state == nil {
		return nil, errors.New("state repository is nil")
	}

	return &StatusService{state: state, templates: templates}, nil
}

// Snapshot returns the configured templates with their persisted sequence
// applied, and the tracked channels oldest first.
func (s *StatusService) Snapshot(ctx context.Context) (Snapshot, error) {
	state, err := s.state.Load(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load voice state: %w", err)
	}

	templates := make([]domain.TriggerTemplate, 0, len(s.templates))
	for _, template := range s.templates {
		if template.Sequence < 1 {
			template.Sequence = 1
		}
		template.AdvanceTo(state.Counter(template.TriggerChannelID))
		templates = append(templates, template)
	}

	channels := append([]domain.TrackedChannel(nil), state.Channels...)
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].CreatedAt.Before(channels[j].CreatedAt)
	})

	return Snapshot{Templates: templates, Channels: channels}, nil
}
