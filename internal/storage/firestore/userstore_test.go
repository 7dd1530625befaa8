//go:build integration

package firestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/ncalexan/autopush-rs/internal/storage/firestore"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

func setupSuite(t *testing.T) (context.Context, *fs.UserStore) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	client, err := firestore.NewClient(ctx, "test-user-store")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, fs.NewUserStore(client)
}

func TestUserStore_Integration(t *testing.T) {
	ctx, userStore := setupSuite(t)

	t.Run("Registration Lifecycle", func(t *testing.T) {
		uaid := uuid.New()
		user := &store.User{
			UAID:       uaid,
			RouterType: "fcm",
			RouterData: map[string]any{
				"token":  "device-token-1",
				"app_id": "app-1",
			},
			ConnectedAt: time.Now().UTC().Truncate(time.Millisecond),
		}

		// 1. Register
		require.NoError(t, userStore.RegisterUser(ctx, user))

		// 2. Read back
		got, err := userStore.GetUser(ctx, uaid)
		require.NoError(t, err)
		assert.Equal(t, uaid, got.UAID)
		assert.Equal(t, "fcm", got.RouterType)
		assert.Equal(t, "device-token-1", got.RouterData["token"])

		// 3. Remove
		require.NoError(t, userStore.RemoveUser(ctx, uaid))
		_, err = userStore.GetUser(ctx, uaid)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Unknown user is ErrNotFound", func(t *testing.T) {
		_, err := userStore.GetUser(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Removing an absent record is not an error", func(t *testing.T) {
		assert.NoError(t, userStore.RemoveUser(ctx, uuid.New()))
	})
}
