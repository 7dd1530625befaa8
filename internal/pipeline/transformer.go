// Package pipeline decodes queued notification requests and routes each one
// through the backend its subscription registered with.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
)

// wireNotification mirrors the JSON a producer publishes for one send
// attempt. Routing data never travels on the wire; it is joined in from
// storage by the processor.
type wireNotification struct {
	MessageID string      `json:"message_id"`
	UAID      string      `json:"uaid"`
	ChannelID string      `json:"channel_id"`
	TTL       *int64      `json:"ttl"`
	Topic     string      `json:"topic,omitempty"`
	Data      string      `json:"data,omitempty"`
	Headers   wireHeaders `json:"headers,omitempty"`
	Vapid     *wireVapid  `json:"vapid,omitempty"`
}

type wireHeaders struct {
	Encoding      string `json:"content-encoding,omitempty"`
	Encryption    string `json:"encryption,omitempty"`
	EncryptionKey string `json:"encryption-key,omitempty"`
	CryptoKey     string `json:"crypto-key,omitempty"`
}

type wireVapid struct {
	Sub string `json:"sub"`
	Aud string `json:"aud"`
	Exp int64  `json:"exp"`
}

// Transform unmarshals and validates one raw payload. A failure here means
// the message can never succeed; callers drop it instead of retrying.
func Transform(payload []byte) (*router.Notification, error) {
	var wire wireNotification
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification request: %w", err)
	}

	if wire.MessageID == "" {
		return nil, apierror.Validation(apierror.FieldError{
			Field: "message_id",
			Msg:   "message id is required",
		})
	}
	uaid, err := uuid.Parse(wire.UAID)
	if err != nil {
		return nil, apierror.Validation(apierror.FieldError{
			Field: "uaid",
			Msg:   "uaid is not a UUID",
		})
	}
	chid, err := uuid.Parse(wire.ChannelID)
	if err != nil {
		return nil, apierror.Validation(apierror.FieldError{
			Field: "channel_id",
			Msg:   "channel id is not a UUID",
		})
	}
	if wire.TTL == nil {
		return nil, apierror.NoTTL()
	}

	n := &router.Notification{
		MessageID: wire.MessageID,
		Subscription: router.Subscription{
			UAID:      uaid,
			ChannelID: chid,
		},
		Headers: router.Headers{
			TTL:           *wire.TTL,
			Topic:         wire.Topic,
			Encoding:      wire.Headers.Encoding,
			Encryption:    wire.Headers.Encryption,
			EncryptionKey: wire.Headers.EncryptionKey,
			CryptoKey:     wire.Headers.CryptoKey,
		},
		Data: wire.Data,
	}
	if wire.Vapid != nil {
		n.Subscription.Vapid = &router.VapidClaims{
			Sub: wire.Vapid.Sub,
			Aud: wire.Vapid.Aud,
			Exp: wire.Vapid.Exp,
		}
	}
	return n, nil
}
