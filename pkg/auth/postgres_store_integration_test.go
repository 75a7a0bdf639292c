//go:build integration

package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
)

func TestPostgresStore_ConcurrentConsume(t *testing.T) {
	db, cleanup := postgres.SetupPostgresContainer(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	code := &LoginCode{
		Email:     "race@example.com",
		CodeHash:  HashCode("123456", "salt", ""),
		Salt:      "salt",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	require.NoError(t, store.CreateCode(ctx, code))

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, lost int
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ConsumeCodeAndUpsertUser(ctx, code.ID, code.Email, "", time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAlreadyConsumed):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, lost)

	_, err := store.LatestUnconsumedCode(ctx, code.Email)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_UpsertKeepsPassword(t *testing.T) {
	db, cleanup := postgres.SetupPostgresContainer(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	issue := func() string {
		now := time.Now().UTC()
		code := &LoginCode{Email: "pw@example.com", CodeHash: "h", Salt: "s", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
		require.NoError(t, store.CreateCode(ctx, code))
		return code.ID
	}

	first, err := store.ConsumeCodeAndUpsertUser(ctx, issue(), "pw@example.com", "scrypt$aa$bb", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "scrypt$aa$bb", first.PasswordHash)

	second, err := store.ConsumeCodeAndUpsertUser(ctx, issue(), "pw@example.com", "", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "scrypt$aa$bb", second.PasswordHash)
}
