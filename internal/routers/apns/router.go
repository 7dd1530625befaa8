// Package apns routes notifications through the Apple Push Notification
// service, one token-authenticated client per configured channel.
package apns

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/ncalexan/autopush-rs/internal/metrics"
	"github.com/ncalexan/autopush-rs/internal/routers"
	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

// APNs caps stored notifications at roughly a month; use the same 28-day
// ceiling as the other bridges.
const maxTTL = 28 * 24 * 60 * 60

const platform = "apns"

// Router implements router.Router for APNs.
type Router struct {
	settings    Settings
	endpointURL *url.URL
	metrics     *metrics.Metrics
	db          store.UserStore
	logger      *slog.Logger
	clients     map[string]*Client
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
		logger:      logger.With("component", "APNSRouter"),
		clients:     clients,
	}
}

func (r *Router) Active() bool {
	return len(r.clients) > 0
}

func (r *Router) Register(input *router.DataInput, appID string) (map[string]any, error) {
	if _, ok := r.clients[appID]; !ok {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonInvalidAppID, App: appID})
	}
	return map[string]any{
		router.DataKeyToken: input.Token,
		router.DataKeyAppID: appID,
	}, nil
}

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

func (r *Router) RouteNotification(ctx context.Context, n *router.Notification) (*router.Response, error) {
	r.logger.Debug("Sending APNs notification", "uaid", n.Subscription.UAID)

	data := n.Subscription.RouterData
	if len(data) == 0 {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonNoRegistrationToken})
	}
	token, appID, rerr := r.routingInfo(data, n.Subscription.UAID)
	if rerr != nil {
		return nil, apierror.Router(rerr)
	}

	ttl := routers.ClampTTL(n.Headers.TTL, r.settings.MinTTL, maxTTL)

	client, ok := r.clients[appID]
	if !ok {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonInvalidAppID, App: appID})
	}

	messageData := routers.BuildMessageData(n)
	if err := client.Send(token, messageData, ttl); err != nil {
		return nil, routers.HandleError(ctx, err, r.metrics, r.db, platform, appID,
			n.Subscription.UAID, n.Subscription.Vapid, r.logger)
	}

	routers.IncrSuccessMetrics(ctx, r.metrics, platform, appID, n)
	return &router.Response{
		Location: r.endpointURL.JoinPath("m", n.MessageID).String(),
		TTL:      n.Headers.TTL,
	}, nil
}
