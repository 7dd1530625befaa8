package webpush

import (
	"context"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/ncalexan/autopush-rs/pkg/router"
)

// Client signs and delivers Web Push requests for one application's VAPID
// identity. The underlying http.Client bounds each send with its own
// timeout; a timed-out send surfaces as a transient transport error.
type Client struct {
	keys VapidKeys
	http *http.Client
}

// NewClient builds the relay handle for one application.
func NewClient(keys VapidKeys, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{keys: keys, http: httpClient}
}

// Send encrypts payload for the subscription and posts it to the push
// resource. ttl must already be clamped.
func (c *Client) Send(ctx context.Context, endpoint, p256dh, auth string, payload []byte, ttl int64) error {
	sub := &webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: p256dh,
			Auth:   auth,
		},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		HTTPClient:      c.http,
		Subscriber:      c.keys.Subscriber,
		VAPIDPublicKey:  c.keys.PublicKey,
		VAPIDPrivateKey: c.keys.PrivateKey,
		TTL:             int(ttl),
	})
	if err != nil {
		return &router.Error{Reason: router.ReasonConnect, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return &router.Error{Reason: router.ReasonNotFound,
			Err: fmt.Errorf("push resource rejected with %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return &router.Error{Reason: router.ReasonTooMuchData,
			Err: fmt.Errorf("push resource rejected with %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &router.Error{Reason: router.ReasonAuthentication,
			Err: fmt.Errorf("push resource rejected with %d", resp.StatusCode)}
	default:
		return &router.Error{Reason: router.ReasonUpstream,
			Err: fmt.Errorf("push resource rejected with %d", resp.StatusCode)}
	}
}
