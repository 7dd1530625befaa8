package fcm

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/messaging"

	"github.com/ncalexan/autopush-rs/pkg/router"
)

// translateError maps the Firebase SDK's error surface onto the unified
// router vocabulary. Only an unregistered token classifies as NotFound;
// everything else surfaces without triggering subscription pruning.
func translateError(err error) *router.Error {
	switch {
	case messaging.IsRegistrationTokenNotRegistered(err):
		return &router.Error{Reason: router.ReasonNotFound, Err: err}
	case messaging.IsThirdPartyAuthError(err):
		return &router.Error{Reason: router.ReasonAuthentication, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &router.Error{Reason: router.ReasonRequestTimeout, Err: err}
	case messaging.IsUnavailable(err):
		return &router.Error{Reason: router.ReasonConnect, Err: err}
	case messaging.IsInternal(err), messaging.IsQuotaExceeded(err), messaging.IsInvalidArgument(err):
		return &router.Error{Reason: router.ReasonUpstream, Err: err}
	default:
		return &router.Error{Reason: router.ReasonUpstream, Err: err}
	}
}
