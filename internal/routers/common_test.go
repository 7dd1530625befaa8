package routers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ncalexan/autopush-rs/internal/metrics"
	"github.com/ncalexan/autopush-rs/internal/routers"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) RegisterUser(ctx context.Context, user *store.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserStore) GetUser(ctx context.Context, uaid uuid.UUID) (*store.User, error) {
	args := m.Called(ctx, uaid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *mockUserStore) RemoveUser(ctx context.Context, uaid uuid.UUID) error {
	return m.Called(ctx, uaid).Error(0)
}

func TestBuildMessageData(t *testing.T) {
	chid := uuid.New()

	t.Run("Bodiless notification carries only the channel", func(t *testing.T) {
		n := &router.Notification{
			Subscription: router.Subscription{ChannelID: chid},
		}
		data := routers.BuildMessageData(n)
		assert.Equal(t, map[string]string{"chid": chid.String()}, data)
	})

	t.Run("Payload brings the crypto headers along", func(t *testing.T) {
		n := &router.Notification{
			Subscription: router.Subscription{ChannelID: chid},
			Headers: router.Headers{
				Encoding:      "aes128gcm",
				Encryption:    "salt=abc",
				EncryptionKey: "ek",
				CryptoKey:     "ck",
			},
			Data: "ZW5jcnlwdGVk",
		}
		data := routers.BuildMessageData(n)
		assert.Equal(t, map[string]string{
			"chid":      chid.String(),
			"body":      "ZW5jcnlwdGVk",
			"con":       "aes128gcm",
			"enc":       "salt=abc",
			"enckey":    "ek",
			"cryptokey": "ck",
		}, data)
	})

	t.Run("Empty headers are omitted", func(t *testing.T) {
		n := &router.Notification{
			Subscription: router.Subscription{ChannelID: chid},
			Data:         "ZW5jcnlwdGVk",
		}
		data := routers.BuildMessageData(n)
		assert.Equal(t, map[string]string{
			"chid": chid.String(),
			"body": "ZW5jcnlwdGVk",
		}, data)
	})
}

func TestClampTTL(t *testing.T) {
	const ceiling = 28 * 24 * 60 * 60

	assert.Equal(t, int64(60), routers.ClampTTL(0, 60, ceiling), "below the floor clamps up")
	assert.Equal(t, int64(3600), routers.ClampTTL(3600, 60, ceiling), "in range passes through")
	assert.Equal(t, int64(ceiling), routers.ClampTTL(ceiling+1, 60, ceiling), "above the ceiling clamps down")
	assert.Equal(t, int64(60), routers.ClampTTL(-5, 60, ceiling), "negative clamps up")
}

func TestHandleError(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	m := metrics.NewNop()
	uaid := uuid.New()

	t.Run("Gone registration prunes the user", func(t *testing.T) {
		db := new(mockUserStore)
		db.On("RemoveUser", ctx, uaid).Return(nil).Once()

		rerr := &router.Error{Reason: router.ReasonNotFound}
		apiErr := routers.HandleError(ctx, rerr, m, db, "fcmv1", "app-1", uaid, nil, logger)

		assert.Equal(t, http.StatusGone, apiErr.Status())
		errno, ok := apiErr.Errno()
		require.True(t, ok)
		assert.Equal(t, 106, errno)
		db.AssertExpectations(t)
	})

	t.Run("Prune failure never masks the classification", func(t *testing.T) {
		db := new(mockUserStore)
		db.On("RemoveUser", ctx, uaid).Return(errors.New("firestore down")).Once()

		rerr := &router.Error{Reason: router.ReasonNotFound}
		apiErr := routers.HandleError(ctx, rerr, m, db, "fcmv1", "app-1", uaid, nil, logger)

		assert.Equal(t, http.StatusGone, apiErr.Status())
		db.AssertExpectations(t)
	})

	t.Run("Already-pruned user is fine", func(t *testing.T) {
		db := new(mockUserStore)
		db.On("RemoveUser", ctx, uaid).Return(store.ErrNotFound).Once()

		rerr := &router.Error{Reason: router.ReasonNotFound}
		apiErr := routers.HandleError(ctx, rerr, m, db, "apns", "app-1", uaid, nil, logger)

		assert.Equal(t, http.StatusGone, apiErr.Status())
		db.AssertExpectations(t)
	})

	t.Run("Transient failures leave the user alone", func(t *testing.T) {
		for _, reason := range []router.Reason{
			router.ReasonConnect,
			router.ReasonRequestTimeout,
			router.ReasonUpstream,
			router.ReasonAuthentication,
			router.ReasonTooMuchData,
		} {
			db := new(mockUserStore)

			rerr := &router.Error{Reason: reason}
			routers.HandleError(ctx, rerr, m, db, "fcmv1", "app-1", uaid, nil, logger)

			db.AssertNotCalled(t, "RemoveUser", mock.Anything, mock.Anything)
		}
	})

	t.Run("Untranslated errors classify as internal", func(t *testing.T) {
		db := new(mockUserStore)

		apiErr := routers.HandleError(ctx, errors.New("surprise"), m, db, "fcmv1", "app-1", uaid, nil, logger)

		assert.Equal(t, http.StatusInternalServerError, apiErr.Status())
		_, ok := apiErr.Errno()
		assert.False(t, ok)
		db.AssertNotCalled(t, "RemoveUser", mock.Anything, mock.Anything)
	})

	t.Run("Wrapped backend errors still classify", func(t *testing.T) {
		db := new(mockUserStore)
		db.On("RemoveUser", ctx, uaid).Return(nil).Once()

		wrapped := &wrappingError{inner: &router.Error{Reason: router.ReasonNotFound}}
		apiErr := routers.HandleError(ctx, wrapped, m, db, "fcmv1", "app-1", uaid, nil, logger)

		assert.Equal(t, http.StatusGone, apiErr.Status())
		db.AssertExpectations(t)
	})
}

type wrappingError struct {
	inner error
}

func (w *wrappingError) Error() string { return "send failed: " + w.inner.Error() }
func (w *wrappingError) Unwrap() error { return w.inner }
