package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/tempvc/internal/adapters/secrets/file"
	passstore "github.com/bnema/tempvc/internal/adapters/secrets/pass"
	"github.com/bnema/tempvc/internal/domain"
	"github.com/bnema/tempvc/internal/ports"
)

type Backend struct {
	Name  string
	Store ports.SecretStore
}

// Store tries its backends in order. Reads and writes stop at the first
// backend that succeeds; deletes reach every backend so no copy lingers.
type Store struct {
	backends []Backend
}

var _ ports.SecretStore = (*Store)(nil)

var errNoBackends = errors.New("secret store chain has no backends")

func NewStore(backends ...Backend) (*Store, error) {
	if len(backends) == 0 {
		return nil, errNoBackends
	}
	for i, backend := range backends {
		if backend.Store == nil {
			return nil, fmt.Errorf("secret backend %d (%s) is nil", i, backend.Name)
		}
	}

	return &Store{backends: backends}, nil
}

// NewPassFirstWithFileFallback prefers pass and falls back to files under
// fileRoot.
func NewPassFirstWithFileFallback(fileRoot string) (*Store, error) {
	return NewStore(
		Backend{Name: "pass", Store: passstore.NewStore()},
		Backend{Name: "file", Store: filestore.NewStore(fileRoot)},
	)
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var errs []error
	for _, backend := range s.backends {
		err := backend.Store.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if shouldStop(err) {
			return err
		}
		errs = append(errs, fmt.Errorf("%s backend put: %w", backend.Name, err))
	}

	return errors.Join(errs...)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, backend := range s.backends {
		value, err := backend.Store.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if shouldStop(err) {
			return "", err
		}
		errs = append(errs, fmt.Errorf("%s backend get: %w", backend.Name, err))
	}

	return "", fmt.Errorf("secret %q: %w", key, errors.Join(errs...))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, backend := range s.backends {
		err := backend.Store.Delete(ctx, key)
		if err == nil || errors.Is(err, domain.ErrSecretNotFound) || errors.Is(err, passstore.ErrUnavailable) {
			continue
		}
		if shouldStop(err) {
			return err
		}
		errs = append(errs, fmt.Errorf("%s backend delete: %w", backend.Name, err))
	}

	return errors.Join(errs...)
}

func shouldStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
