package ports

import (
	"context"

	"github.com/bnema/tempvc/internal/domain"
)

type StateRepository interface {
	Load(ctx context.Context) (domain.ManagerState, error)
	Save(ctx context.Context, state domain.ManagerState) error
}
