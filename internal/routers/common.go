// Package routers holds the dispatch logic shared by every relay backend:
// building the outbound message body, converting backend failures into the
// unified taxonomy, and emitting dispatch metrics.
package routers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ncalexan/autopush-rs/internal/metrics"
	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

// BuildMessageData assembles the relay-agnostic data block from the
// notification's payload and headers. Pure; never fails for a well-formed
// notification. The key names are part of the client protocol.
func BuildMessageData(n *router.Notification) map[string]string {
	data := map[string]string{
		"chid": n.Subscription.ChannelID.String(),
	}
	if n.Data == "" {
		return data
	}
	data["body"] = n.Data
	if n.Headers.Encoding != "" {
		data["con"] = n.Headers.Encoding
	}
	if n.Headers.Encryption != "" {
		data["enc"] = n.Headers.Encryption
	}
	if n.Headers.CryptoKey != "" {
		data["cryptokey"] = n.Headers.CryptoKey
	}
	if n.Headers.EncryptionKey != "" {
		data["enckey"] = n.Headers.EncryptionKey
	}
	return data
}

// ClampTTL bounds the requested TTL between the operator floor and the
// relay's ceiling. The clamped value goes on the wire; callers still see
// the TTL they asked for in the response.
func ClampTTL(requested, floor, ceiling int64) int64 {
	return min(ceiling, max(floor, requested))
}

// HandleError is the single place a backend failure becomes an ApiError.
// When the relay reports the registration permanently gone, the user record
// is pruned here as a side effect, so no caller can forget to do it. The
// pruning is fire-and-forget: a storage failure is logged but never masks
// the original classification. All failures are counted before returning.
func HandleError(
	ctx context.Context,
	err error,
	m *metrics.Metrics,
	db store.UserStore,
	platform string,
	appID string,
	uaid uuid.UUID,
	vapid *router.VapidClaims,
	logger *slog.Logger,
) *apierror.Error {
	var rerr *router.Error
	if !errors.As(err, &rerr) {
		rerr = &router.Error{Reason: router.ReasonInternal, Err: err}
	}

	if rerr.Reason == router.ReasonNotFound {
		if removeErr := db.RemoveUser(ctx, uaid); removeErr != nil && !errors.Is(removeErr, store.ErrNotFound) {
			logger.Warn("Failed to remove user with expired registration",
				"uaid", uaid, "err", removeErr)
		}
	}

	m.IncrError(ctx, platform, appID, rerr.Reason.String(), vapid != nil)
	return apierror.Router(rerr)
}

// IncrSuccessMetrics counts one accepted notification. Fire-and-forget;
// must never fail the calling operation.
func IncrSuccessMetrics(ctx context.Context, m *metrics.Metrics, platform, appID string, n *router.Notification) {
	m.IncrSent(ctx, platform, appID, len(n.Data))
}
