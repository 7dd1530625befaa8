// Package router defines the contract every push-relay backend implements,
// along with the notification payload the dispatch pipeline hands to it.
package router

import (
	"context"

	"github.com/google/uuid"
)

// Router is implemented once per relay family (FCM, APNs, Web Push, ...).
// The HTTP layer and the registration path only ever see this interface;
// backend selection is made by the caller from stored subscription metadata.
type Router interface {
	// Register validates that appID corresponds to a configured client and
	// builds the routing-data mapping persisted with the subscription. It
	// performs no network or storage I/O.
	Register(input *DataInput, appID string) (map[string]any, error)

	// RouteNotification sends one notification through the relay. It is one
	// independently schedulable unit of work and must be safe to call
	// concurrently for distinct notifications.
	RouteNotification(ctx context.Context, n *Notification) (*Response, error)

	// Active reports whether at least one backend client was built, i.e.
	// whether this backend is enabled at all.
	Active() bool
}

// Routing-data keys shared by the bridge backends. Each backend owns the
// keys it writes; once written by Register they must be present at send
// time, so a missing key indicates corrupted stored data.
const (
	DataKeyToken = "token"
	DataKeyAppID = "app_id"
)

// DataInput is the caller-supplied registration payload. Token is the
// relay-specific registration token; Key and Auth carry the client
// encryption keys for backends that need them (Web Push).
type DataInput struct {
	Token string `json:"token"`
	Key   string `json:"key,omitempty"`
	Auth  string `json:"auth,omitempty"`
}

// Headers are the delivery parameters supplied with one send attempt.
type Headers struct {
	// TTL is the requested time-to-live in seconds, as received from the
	// caller. Backends clamp it before hitting the wire but always echo
	// this original value back in the Response.
	TTL           int64
	Topic         string
	Encoding      string
	Encryption    string
	EncryptionKey string
	CryptoKey     string
}

// VapidClaims are the verified claims of the sender's VAPID token, when one
// was supplied. The dispatch core only carries them for diagnostics.
type VapidClaims struct {
	Sub string
	Aud string
	Exp int64
}

// Subscription addresses one receiving device.
type Subscription struct {
	UAID       uuid.UUID
	ChannelID  uuid.UUID
	RouterType string
	// RouterData is the opaque per-subscription mapping written by
	// Register. The core makes no assumption about keys belonging to
	// other backends.
	RouterData map[string]any
	Vapid      *VapidClaims
}

// Notification identifies one message to deliver. It is immutable once
// constructed and owned by the pipeline for the duration of one attempt.
type Notification struct {
	MessageID    string
	Subscription Subscription
	Headers      Headers
	// Data is the encrypted payload, base64url encoded. Empty for sends
	// without a body.
	Data string
}

// Response is the outcome of a successful send. Location is always the
// configured endpoint base joined with /m/<message id>.
type Response struct {
	Location string `json:"location"`
	TTL      int64  `json:"ttl"`
}
