// Package fcm routes notifications through Firebase Cloud Messaging, with
// one authenticated client per configured application identifier.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/ncalexan/autopush-rs/internal/metrics"
	"github.com/ncalexan/autopush-rs/internal/routers"
	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

// maxTTL is the relay's message lifetime ceiling: 28 days, in seconds.
const maxTTL = 28 * 24 * 60 * 60

// platform tags metrics and logs for this backend.
const platform = "fcmv1"

// Router implements router.Router for the FCM relay family.
type Router struct {
	settings    Settings
	endpointURL *url.URL
	metrics     *metrics.Metrics
	db          store.UserStore
	logger      *slog.Logger
	// clients maps an application identifier to its authenticated client.
	// Built once at startup, read-only afterwards, so concurrent sends
	// need no locking.
	clients map[string]*Client
}

// BuildClients authenticates one client per configured credential. Any
// failure aborts the whole pool: a partial pool would silently drop
// applications, which must surface as a configuration error instead.
func BuildClients(ctx context.Context, settings Settings) (map[string]*Client, error) {
	clients := make(map[string]*Client, len(settings.Credentials))
	for appID, credential := range settings.Credentials {
		client, err := NewClientFromCredential(ctx, credential)
		if err != nil {
			return nil, fmt.Errorf("FCM client for application %q: %w", appID, err)
		}
		clients[appID] = client
	}
	return clients, nil
}

// NewRouter assembles the router around an already-built client pool.
func NewRouter(
	settings Settings,
	endpointURL *url.URL,
	clients map[string]*Client,
	m *metrics.Metrics,
	db store.UserStore,
	logger *slog.Logger,
) *Router {
	return &Router{
		settings:    settings,
		endpointURL: endpointURL,
		metrics:     m,
		db:          db,
		logger:      logger.With("component", "FCMRouter"),
		clients:     clients,
	}
}

// Active reports whether any client was configured for this backend.
func (r *Router) Active() bool {
	return len(r.clients) > 0
}

// Register validates the application identifier against the client pool and
// builds the routing data persisted with the subscription. No I/O.
func (r *Router) Register(input *router.DataInput, appID string) (map[string]any, error) {
	if _, ok := r.clients[appID]; !ok {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonInvalidAppID, App: appID})
	}
	return map[string]any{
		router.DataKeyToken: input.Token,
		router.DataKeyAppID: appID,
	}, nil
}

// routingInfo runs the gauntlet over stored routing data. Each missing key
// fails with its own named error so the operator can tell which part of the
// stored record is corrupted.
func (r *Router) routingInfo(data map[string]any, uaid uuid.UUID) (string, string, *router.Error) {
	token, ok := data[router.DataKeyToken].(string)
	if !ok || token == "" {
		r.logger.Warn("No registration token found for user", "uaid", uaid)
		return "", "", &router.Error{Reason: router.ReasonNoRegistrationToken}
	}
	appID, ok := data[router.DataKeyAppID].(string)
	if !ok || appID == "" {
		r.logger.Warn("No app_id found for user", "uaid", uaid)
		return "", "", &router.Error{Reason: router.ReasonNoAppID}
	}
	return token, appID, nil
}

// RouteNotification sends one notification through the relay, translating
// any failure into the unified taxonomy. The response echoes the caller's
// requested TTL even though the wire send uses the clamped value.
func (r *Router) RouteNotification(ctx context.Context, n *router.Notification) (*router.Response, error) {
	r.logger.Debug("Sending FCM notification", "uaid", n.Subscription.UAID)

	data := n.Subscription.RouterData
	if len(data) == 0 {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonNoRegistrationToken})
	}
	token, appID, rerr := r.routingInfo(data, n.Subscription.UAID)
	if rerr != nil {
		return nil, apierror.Router(rerr)
	}

	ttl := routers.ClampTTL(n.Headers.TTL, r.settings.MinTTL, maxTTL)

	// A known app_id can still miss the pool when its credential was
	// removed from configuration after registration. Always a hard
	// failure, never silently retried.
	client, ok := r.clients[appID]
	if !ok {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonInvalidAppID, App: appID})
	}

	messageData := routers.BuildMessageData(n)
	if err := client.Send(ctx, token, messageData, ttl); err != nil {
		return nil, routers.HandleError(ctx, err, r.metrics, r.db, platform, appID,
			n.Subscription.UAID, n.Subscription.Vapid, r.logger)
	}

	routers.IncrSuccessMetrics(ctx, r.metrics, platform, appID, n)
	return &router.Response{
		Location: r.endpointURL.JoinPath("m", n.MessageID).String(),
		TTL:      n.Headers.TTL,
	}, nil
}
