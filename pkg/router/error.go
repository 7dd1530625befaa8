package router

import (
	"fmt"
	"net/http"
)

// Reason classifies a dispatch failure into the cross-backend vocabulary.
// Backend packages translate their relay's own error surface into one of
// these before anything else sees the failure.
type Reason int

const (
	// ReasonNotFound means the relay reported the registration permanently
	// gone. The dispatch helpers prune the user record on this reason.
	ReasonNotFound Reason = iota
	// ReasonUserDeleted means the user record disappeared mid-dispatch.
	ReasonUserDeleted
	// ReasonNoRegistrationToken means the stored routing data is missing
	// the relay token. Points to corrupted data, not a transient fault.
	ReasonNoRegistrationToken
	// ReasonNoAppID means the stored routing data is missing the
	// application identifier.
	ReasonNoAppID
	// ReasonInvalidAppID means no client is configured for the application
	// identifier, either at registration or because the credential was
	// removed from configuration after the subscription was written.
	ReasonInvalidAppID
	// ReasonAuthentication covers server-credential failures against the relay.
	ReasonAuthentication
	// ReasonConnect covers transport-level failures reaching the relay.
	ReasonConnect
	// ReasonRequestTimeout means the relay send timed out.
	ReasonRequestTimeout
	// ReasonTooMuchData means the relay rejected the payload size.
	ReasonTooMuchData
	// ReasonUpstream covers relay-side errors with no better classification.
	ReasonUpstream
	// ReasonInternal is a fault in our own dispatch path.
	ReasonInternal
)

// String returns the metric tag for the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not_found"
	case ReasonUserDeleted:
		return "user_deleted"
	case ReasonNoRegistrationToken:
		return "no_registration_token"
	case ReasonNoAppID:
		return "no_app_id"
	case ReasonInvalidAppID:
		return "invalid_app_id"
	case ReasonAuthentication:
		return "authentication"
	case ReasonConnect:
		return "connection_unavailable"
	case ReasonRequestTimeout:
		return "timeout"
	case ReasonTooMuchData:
		return "too_much_data"
	case ReasonUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a dispatch failure in the unified cross-backend vocabulary. It
// owns the HTTP status and errno reported for the "backend-defined" rows of
// the error table.
type Error struct {
	Reason Reason
	// App is the offending application identifier, when one was resolved.
	App string
	// Msg overrides the reason's default message when set. Used where one
	// reason covers several distinct stored-data defects.
	Msg string
	// Err is the underlying backend error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	switch e.Reason {
	case ReasonNotFound:
		return "user not found at the relay"
	case ReasonUserDeleted:
		return "user was deleted during dispatch"
	case ReasonNoRegistrationToken:
		return "no registration token found in routing data"
	case ReasonNoAppID:
		return "no application id found in routing data"
	case ReasonInvalidAppID:
		return fmt.Sprintf("unknown application identifier %q", e.App)
	case ReasonAuthentication:
		return "relay authentication failed"
	case ReasonConnect:
		return "relay connection unavailable"
	case ReasonRequestTimeout:
		return "relay request timed out"
	case ReasonTooMuchData:
		return "relay rejected the payload size"
	case ReasonUpstream:
		return "relay error"
	default:
		return "internal dispatch error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status reported for this failure. Total over all
// reasons.
func (e *Error) Status() int {
	switch e.Reason {
	case ReasonNotFound, ReasonUserDeleted, ReasonNoRegistrationToken,
		ReasonNoAppID, ReasonInvalidAppID:
		return http.StatusGone
	case ReasonTooMuchData:
		return http.StatusRequestEntityTooLarge
	case ReasonConnect, ReasonUpstream:
		return http.StatusBadGateway
	case ReasonRequestTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Errno returns the published error number, when one exists.
func (e *Error) Errno() (int, bool) {
	switch e.Reason {
	case ReasonNotFound, ReasonNoRegistrationToken, ReasonNoAppID, ReasonInvalidAppID:
		return 106, true
	case ReasonUserDeleted:
		return 105, true
	case ReasonTooMuchData:
		return 104, true
	case ReasonAuthentication:
		return 901, true
	case ReasonConnect:
		return 902, true
	case ReasonRequestTimeout:
		return 903, true
	default:
		return 0, false
	}
}
