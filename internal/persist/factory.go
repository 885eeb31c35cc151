package persist

import (
	"context"
	"strings"
)

// NewAdapter picks a backend: postgres when a database URL is configured,
// redis when a redis URL is, otherwise in-memory. When an encryption key is
// supplied the chosen backend is wrapped so documents are sealed at rest.
func NewAdapter(ctx context.Context, databaseURL, redisURL, hexKey string) (Adapter, error) {
	var (
		adapter Adapter
		err     error
	)

	switch {
	case strings.TrimSpace(databaseURL) != "":
		adapter, err = NewPostgresAdapter(ctx, databaseURL)
	case strings.TrimSpace(redisURL) != "":
		adapter, err = NewRedisAdapter(ctx, redisURL)
	default:
		adapter = NewInMemoryAdapter()
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(hexKey) != "" {
		sealed, err := NewEncryptedAdapter(adapter, hexKey)
		if err != nil {
			_ = adapter.Close()
			return nil, err
		}
		return sealed, nil
	}
	return adapter, nil
}
