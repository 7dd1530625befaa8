// Package api exposes subscription registration over HTTP and renders
// every failure through the unified error contract.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

// RegistrationAPI validates and persists backend-specific routing data at
// subscription-creation time.
type RegistrationAPI struct {
	routers map[string]router.Router
	store   store.UserStore
	logger  *slog.Logger
}

func NewRegistrationAPI(routers map[string]router.Router, db store.UserStore, logger *slog.Logger) *RegistrationAPI {
	return &RegistrationAPI{
		routers: routers,
		store:   db,
		logger:  logger.With("component", "RegistrationAPI"),
	}
}

// Mount attaches the registration routes.
func (a *RegistrationAPI) Mount(r chi.Router) {
	r.Post("/v1/{router}/{app_id}/registration", a.RegisterHandler)
}

// registerResponse is returned on successful registration.
type registerResponse struct {
	UAID string `json:"uaid"`
}

func (a *RegistrationAPI) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	routerType := chi.URLParam(r, "router")
	appID := chi.URLParam(r, "app_id")

	backend, ok := a.routers[routerType]
	if !ok || !backend.Active() {
		WriteError(w, apierror.Validation(apierror.FieldError{
			Field: "router_type",
			Code:  108,
			Msg:   "invalid router type",
		}), a.logger)
		return
	}

	var input router.DataInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, apierror.Validation(apierror.FieldError{
			Field: "body",
			Msg:   "invalid registration payload",
		}), a.logger)
		return
	}
	if input.Token == "" {
		WriteError(w, apierror.Validation(apierror.FieldError{
			Field: "token",
			Msg:   "registration token is required",
		}), a.logger)
		return
	}

	routerData, err := backend.Register(&input, appID)
	if err != nil {
		WriteError(w, err, a.logger)
		return
	}

	user := &store.User{
		UAID:        uuid.New(),
		RouterType:  routerType,
		RouterData:  routerData,
		ConnectedAt: time.Now(),
	}
	if err := a.store.RegisterUser(ctx, user); err != nil {
		WriteError(w, apierror.Database(err), a.logger)
		return
	}

	a.logger.Info("Registered subscription",
		"uaid", user.UAID, "router_type", routerType, "app_id", appID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(registerResponse{UAID: user.UAID.String()})
}

// WriteError renders any error with the 5-field JSON body. Errors that are
// not already classified become internal faults; they are logged with the
// captured stack when one exists.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.Internal(err.Error())
	}
	if apiErr.Status() >= http.StatusInternalServerError {
		logger.Error("Request failed", "err", apiErr, "stack", string(apiErr.Stack()))
	}
	apiErr.WriteJSON(w)
}
