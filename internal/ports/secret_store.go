package ports

import "context"

// SecretStore holds the bot token outside the config file. Get wraps
// domain.ErrSecretNotFound when the key has no value; Delete of a missing key
// succeeds.
type SecretStore interface {
	Get(ctx context.Context, key string) (value string, err error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
