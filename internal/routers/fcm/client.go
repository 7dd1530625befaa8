package fcm

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// MessagingClient is the subset of the Firebase messaging API the router
// uses. It lets tests substitute the authenticated client; the concrete
// *messaging.Client satisfies it.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Client is one authenticated relay handle for a single application
// identity. Stateless per send; the SDK refreshes its OAuth token
// internally, single-flighted, so concurrent sends through one client are
// safe.
type Client struct {
	messaging MessagingClient
	projectID string
}

// NewClient wraps an already-built messaging client.
func NewClient(client MessagingClient, projectID string) *Client {
	return &Client{messaging: client, projectID: projectID}
}

// NewClientFromCredential authenticates against the Firebase project named
// by the credential. Run once at startup, not on the send path.
func NewClientFromCredential(ctx context.Context, credential Credential) (*Client, error) {
	app, err := firebase.NewApp(ctx,
		&firebase.Config{ProjectID: credential.ProjectID},
		option.WithCredentialsJSON([]byte(credential.ServiceAccountJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to build Firebase app for project %q: %w", credential.ProjectID, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build FCM messaging client for project %q: %w", credential.ProjectID, err)
	}
	return NewClient(client, credential.ProjectID), nil
}

// Send pushes one data message to the given registration token. ttl must
// already be clamped by the caller. Failures come back translated into the
// unified router vocabulary.
func (c *Client) Send(ctx context.Context, token string, data map[string]string, ttl int64) error {
	lifetime := time.Duration(ttl) * time.Second
	msg := &messaging.Message{
		Token: token,
		Data:  data,
		Android: &messaging.AndroidConfig{
			TTL: &lifetime,
		},
	}
	if _, err := c.messaging.Send(ctx, msg); err != nil {
		return translateError(err)
	}
	return nil
}
