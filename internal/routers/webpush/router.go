// Package webpush routes notifications straight to a Web Push resource
// (an autonomous push service chosen by the user agent), signing sends
// with per-application VAPID keys.
package webpush

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/ncalexan/autopush-rs/internal/metrics"
	"github.com/ncalexan/autopush-rs/internal/routers"
	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

const maxTTL = 28 * 24 * 60 * 60

const platform = "webpushv1"

// Extra routing-data keys this backend owns: the client's public key and
// auth secret, written at registration and required for payload sends.
const (
	dataKeyP256dh = "key"
	dataKeyAuth   = "auth"
)

// Router implements router.Router for direct Web Push delivery.
type Router struct {
	settings    Settings
	endpointURL *url.URL
	metrics     *metrics.Metrics
	db          store.UserStore
	logger      *slog.Logger
	clients     map[string]*Client
}

// BuildClients builds one signing client per configured application.
func BuildClients(settings Settings) map[string]*Client {
	clients := make(map[string]*Client, len(settings.Applications))
	for appID, keys := range settings.Applications {
		clients[appID] = NewClient(keys, nil)
	}
	return clients
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
		logger:      logger.With("component", "WebPushRouter"),
		clients:     clients,
	}
}

func (r *Router) Active() bool {
	return len(r.clients) > 0
}

// Register validates the application identifier and the subscription keys.
// The keys are required up front: without them no payload can ever be
// encrypted for this subscription.
func (r *Router) Register(input *router.DataInput, appID string) (map[string]any, error) {
	if _, ok := r.clients[appID]; !ok {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonInvalidAppID, App: appID})
	}
	if input.Key == "" || input.Auth == "" {
		return nil, apierror.Validation(apierror.FieldError{
			Field: "key",
			Msg:   "subscription encryption keys are required",
		})
	}
	return map[string]any{
		router.DataKeyToken: input.Token,
		router.DataKeyAppID: appID,
		dataKeyP256dh:       input.Key,
		dataKeyAuth:         input.Auth,
	}, nil
}

func (r *Router) routingInfo(data map[string]any, uaid uuid.UUID) (string, string, *router.Error) {
	endpoint, ok := data[router.DataKeyToken].(string)
	if !ok || endpoint == "" {
		r.logger.Warn("No push resource endpoint found for user", "uaid", uaid)
		return "", "", &router.Error{Reason: router.ReasonNoRegistrationToken}
	}
	appID, ok := data[router.DataKeyAppID].(string)
	if !ok || appID == "" {
		r.logger.Warn("No app_id found for user", "uaid", uaid)
		return "", "", &router.Error{Reason: router.ReasonNoAppID}
	}
	return endpoint, appID, nil
}

func (r *Router) RouteNotification(ctx context.Context, n *router.Notification) (*router.Response, error) {
	r.logger.Debug("Sending Web Push notification", "uaid", n.Subscription.UAID)

	data := n.Subscription.RouterData
	if len(data) == 0 {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonNoRegistrationToken})
	}
	endpoint, appID, rerr := r.routingInfo(data, n.Subscription.UAID)
	if rerr != nil {
		return nil, apierror.Router(rerr)
	}

	ttl := routers.ClampTTL(n.Headers.TTL, r.settings.MinTTL, maxTTL)

	client, ok := r.clients[appID]
	if !ok {
		return nil, apierror.Router(&router.Error{Reason: router.ReasonInvalidAppID, App: appID})
	}

	var payload []byte
	if n.Data != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(n.Data)
		if err != nil {
			rerr := &router.Error{
				Reason: router.ReasonInternal,
				Msg:    "notification payload is not base64url",
				Err:    err,
			}
			return nil, routers.HandleError(ctx, rerr, r.metrics, r.db, platform, appID,
				n.Subscription.UAID, n.Subscription.Vapid, r.logger)
		}
		payload = decoded
	}

	p256dh, _ := data[dataKeyP256dh].(string)
	auth, _ := data[dataKeyAuth].(string)
	if len(payload) > 0 && (p256dh == "" || auth == "") {
		// Keys are written at registration, so their absence is corrupted
		// stored data, same as a missing token.
		rerr := &router.Error{
			Reason: router.ReasonNoRegistrationToken,
			Msg:    "no subscription encryption keys found in routing data",
		}
		return nil, apierror.Router(rerr)
	}

	if err := client.Send(ctx, endpoint, p256dh, auth, payload, ttl); err != nil {
		return nil, routers.HandleError(ctx, err, r.metrics, r.db, platform, appID,
			n.Subscription.UAID, n.Subscription.Vapid, r.logger)
	}

	routers.IncrSuccessMetrics(ctx, r.metrics, platform, appID, n)
	return &router.Response{
		Location: r.endpointURL.JoinPath("m", n.MessageID).String(),
		TTL:      n.Headers.TTL,
	}, nil
}
