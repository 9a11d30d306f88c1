package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/bwmarrin/discordgo"
)

// classify wraps a discordgo failure with the matching domain sentinel so the
// manager can tell a vanished channel from a missing permission.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMember:
				return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
			case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
				return fmt.Errorf("%s: %w: %w", op, domain.ErrPermissionDenied, err)
			}
		}
		if restErr.Response != nil {
			switch restErr.Response.StatusCode {
			case http.StatusNotFound:
				return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
			case http.StatusForbidden:
				return fmt.Errorf("%s: %w: %w", op, domain.ErrPermissionDenied, err)
			}
		}
	}

	if errors.Is(err, discordgo.ErrStateNotFound) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
	}

	return fmt.Errorf("%s: %w: %w", op, domain.ErrPlatform, err)
}
