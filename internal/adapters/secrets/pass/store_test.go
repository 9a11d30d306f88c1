package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenKey = "tempvc/discord-token"

func TestStorePutUsesPassInsert(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "--multiline", "--force", tokenKey}, args)
			assert.Equal(t, "top-secret\n", input)
			return "", "", nil
		},
	}

	require.NoError(t, store.Put(context.Background(), tokenKey, "top-secret"))
	assert.True(t, called)
}

func TestStoreGetReturnsFirstLine(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", tokenKey}, args)
			assert.Empty(t, input)
			return "top-secret\r\nnote: discord bot\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), tokenKey)
	require.NoError(t, err)
	assert.Equal(t, "top-secret", value)
}

func TestStoreGetMapsMissingEntry(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: tempvc/discord-token is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), tokenKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "pass show")
}

func TestStoreGetKeepsStderrForOtherFailures(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "gpg: decryption failed: No secret key", errors.New("exit status 2")
		},
	}

	_, err := store.Get(context.Background(), tokenKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, tokenKey)
	assert.ErrorContains(t, err, "decryption failed")
}

func TestStoreDeleteIgnoresMissingEntry(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "--force", tokenKey}, args)
			return "", "Error: tempvc/discord-token is not in the password store.", errors.New("exit status 1")
		},
	}

	require.NoError(t, store.Delete(context.Background(), tokenKey))
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			t.Fatal("pass must not run with a cancelled context")
			return "", "", nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, tokenKey)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Put(ctx, tokenKey, "x"), context.Canceled)
	assert.ErrorIs(t, store.Delete(ctx, tokenKey), context.Canceled)
}

func TestStoreReportsUnavailableBinary(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "", ErrUnavailable
		},
	}

	_, err := store.Get(context.Background(), tokenKey)
	assert.ErrorIs(t, err, ErrUnavailable)
}
