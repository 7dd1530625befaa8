package apns

import (
	"fmt"

	"github.com/sideshow/apns2"

	"github.com/ncalexan/autopush-rs/pkg/router"
)

// translateReason maps an APNs rejection onto the unified router
// vocabulary. Only dead-token reasons classify as NotFound; configuration
// mistakes (wrong topic, bad payload) must not prune live registrations.
func translateReason(res *apns2.Response) *router.Error {
	err := fmt.Errorf("APNs rejection %d: %s", res.StatusCode, res.Reason)
	switch res.Reason {
	case apns2.ReasonUnregistered, apns2.ReasonBadDeviceToken, apns2.ReasonDeviceTokenNotForTopic:
		return &router.Error{Reason: router.ReasonNotFound, Err: err}
	case apns2.ReasonExpiredProviderToken, apns2.ReasonInvalidProviderToken, apns2.ReasonMissingProviderToken:
		return &router.Error{Reason: router.ReasonAuthentication, Err: err}
	case apns2.ReasonPayloadTooLarge:
		return &router.Error{Reason: router.ReasonTooMuchData, Err: err}
	case apns2.ReasonServiceUnavailable, apns2.ReasonShutdown:
		return &router.Error{Reason: router.ReasonConnect, Err: err}
	default:
		return &router.Error{Reason: router.ReasonUpstream, Err: err}
	}
}
