package apns

import (
	"fmt"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/ncalexan/autopush-rs/pkg/router"
)

// PushClient is the subset of the apns2 client the router uses, so tests
// can substitute it.
type PushClient interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// Client is one authenticated relay handle for a single channel. apns2
// refreshes its provider token internally under a mutex, so concurrent
// sends through one client are safe.
type Client struct {
	push  PushClient
	topic string
}

// NewClient wraps an already-built push client.
func NewClient(push PushClient, topic string) *Client {
	return &Client{push: push, topic: topic}
}

// BuildClients parses each channel's signing key and builds its client.
// The key is parsed up front so bad credentials fail at startup, not on
// the send path; any failure aborts the whole pool.
func BuildClients(settings Settings) (map[string]*Client, error) {
	clients := make(map[string]*Client, len(settings.Channels))
	for appID, channel := range settings.Channels {
		authKey, err := token.AuthKeyFromBytes([]byte(channel.P8Key))
		if err != nil {
			return nil, fmt.Errorf("APNs signing key for channel %q: %w", appID, err)
		}
		client := apns2.NewTokenClient(&token.Token{
			AuthKey: authKey,
			KeyID:   channel.KeyID,
			TeamID:  channel.TeamID,
		})
		if channel.Sandbox {
			client = client.Development()
		} else {
			client = client.Production()
		}
		clients[appID] = NewClient(client, channel.Topic)
	}
	return clients, nil
}

// Send pushes one notification to the given device token. ttl must already
// be clamped; it drives the notification expiration.
func (c *Client) Send(token string, data map[string]string, ttl int64) error {
	builder := payload.NewPayload().ContentAvailable()
	for k, v := range data {
		builder.Custom(k, v)
	}

	res, err := c.push.Push(&apns2.Notification{
		DeviceToken: token,
		Topic:       c.topic,
		Expiration:  time.Now().Add(time.Duration(ttl) * time.Second),
		Payload:     builder,
	})
	if err != nil {
		return &router.Error{Reason: router.ReasonConnect, Err: err}
	}
	if res.Sent() {
		return nil
	}
	return translateReason(res)
}
