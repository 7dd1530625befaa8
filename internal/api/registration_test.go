package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ncalexan/autopush-rs/internal/api"
	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockRouter struct {
	mock.Mock
	active bool
}

func (m *mockRouter) Register(input *router.DataInput, appID string) (map[string]any, error) {
	args := m.Called(input, appID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *mockRouter) RouteNotification(ctx context.Context, n *router.Notification) (*router.Response, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*router.Response), args.Error(1)
}

func (m *mockRouter) Active() bool { return m.active }

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

func setup(t *testing.T, backend *mockRouter, db *mockUserStore) *chi.Mux {
	t.Helper()
	mux := chi.NewRouter()
	routers := map[string]router.Router{"fcm": backend}
	api.NewRegistrationAPI(routers, db, newTestLogger()).Mount(mux)
	return mux
}

func post(mux *chi.Mux, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 5, "error bodies carry exactly five fields")
	return body
}

func TestRegisterHandler(t *testing.T) {
	t.Run("Success returns the new UAID", func(t *testing.T) {
		backend := &mockRouter{active: true}
		db := new(mockUserStore)
		mux := setup(t, backend, db)

		routerData := map[string]any{"token": "device-token-1", "app_id": "app-1"}
		backend.On("Register", mock.Anything, "app-1").Return(routerData, nil).Once()

		var saved *store.User
		db.On("RegisterUser", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			saved = args.Get(1).(*store.User)
		}).Return(nil).Once()

		rec := post(mux, "/v1/fcm/app-1/registration", `{"token":"device-token-1"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		_, err := uuid.Parse(resp["uaid"])
		assert.NoError(t, err, "uaid in the response must be a UUID")

		require.NotNil(t, saved)
		assert.Equal(t, "fcm", saved.RouterType)
		assert.Equal(t, routerData, saved.RouterData)
		assert.Equal(t, resp["uaid"], saved.UAID.String())
	})

	t.Run("Unknown router type is a coded validation error", func(t *testing.T) {
		mux := setup(t, &mockRouter{active: true}, new(mockUserStore))

		rec := post(mux, "/v1/smtp/app-1/registration", `{"token":"x"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeErrorBody(t, rec)
		assert.Equal(t, float64(108), body["errno"])
	})

	t.Run("Inactive router type is rejected the same way", func(t *testing.T) {
		mux := setup(t, &mockRouter{active: false}, new(mockUserStore))

		rec := post(mux, "/v1/fcm/app-1/registration", `{"token":"x"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeErrorBody(t, rec)
		assert.Equal(t, float64(108), body["errno"])
	})

	t.Run("Malformed body is rejected", func(t *testing.T) {
		mux := setup(t, &mockRouter{active: true}, new(mockUserStore))

		rec := post(mux, "/v1/fcm/app-1/registration", `{not json`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		decodeErrorBody(t, rec)
	})

	t.Run("Missing token is rejected", func(t *testing.T) {
		backend := &mockRouter{active: true}
		mux := setup(t, backend, new(mockUserStore))

		rec := post(mux, "/v1/fcm/app-1/registration", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		backend.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("Backend rejection passes through with its own status", func(t *testing.T) {
		backend := &mockRouter{active: true}
		mux := setup(t, backend, new(mockUserStore))

		backend.On("Register", mock.Anything, "app-gone").Return(nil,
			apierror.Router(&router.Error{Reason: router.ReasonInvalidAppID, App: "app-gone"})).Once()

		rec := post(mux, "/v1/fcm/app-gone/registration", `{"token":"x"}`)

		assert.Equal(t, http.StatusGone, rec.Code)
		body := decodeErrorBody(t, rec)
		assert.Equal(t, float64(106), body["errno"])
		assert.Contains(t, body["message"], "app-gone")
	})

	t.Run("Storage failure is a database error", func(t *testing.T) {
		backend := &mockRouter{active: true}
		db := new(mockUserStore)
		mux := setup(t, backend, db)

		backend.On("Register", mock.Anything, "app-1").Return(map[string]any{"token": "x"}, nil).Once()
		db.On("RegisterUser", mock.Anything, mock.Anything).Return(errors.New("conn reset")).Once()

		rec := post(mux, "/v1/fcm/app-1/registration", `{"token":"x"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeErrorBody(t, rec)
		assert.Nil(t, body["errno"])
		assert.Contains(t, body["message"], "database error")
	})
}

func TestWriteError(t *testing.T) {
	t.Run("Unclassified errors become internal faults", func(t *testing.T) {
		rec := httptest.NewRecorder()
		api.WriteError(rec, errors.New("surprise"), newTestLogger())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(999), body["errno"])
		assert.Equal(t, "surprise", body["message"])
	})

	t.Run("Classified errors keep their contract", func(t *testing.T) {
		rec := httptest.NewRecorder()
		api.WriteError(rec, apierror.NoUser(), newTestLogger())

		assert.Equal(t, http.StatusGone, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(103), body["errno"])
	})
}
