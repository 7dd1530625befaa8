// Package apierror is the unified failure vocabulary of the push endpoint.
// Every failure the service can hit maps onto one Kind with a deterministic
// HTTP status and, where published, a stable numeric errno. Errors are
// created exactly once at the failure site, propagate unchanged, and are
// rendered once at the HTTP boundary.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
)

// MoreInfoURL links API callers to the published error-code table.
const MoreInfoURL = "http://autopush.readthedocs.io/en/latest/http.html#error-codes"

// CaptureStacks enables stack capture at error construction. Off by
// default; debug runs switch it on so the failure hot path does not pay
// for capture in production.
var CaptureStacks = false

// Kind tags one failure family. The set is closed: adding a backend never
// adds a Kind, it adds a RouterError translation.
type Kind int

const (
	KindIO Kind = iota
	KindMetrics
	KindValidation
	KindRouter
	KindVapid
	KindTokenHash
	KindDatabase
	KindInvalidToken
	KindNoUser
	KindNoSubscription
	KindInvalidEncryption
	KindPayloadTooLarge
	KindInvalidAPIVersion
	KindNoTTL
	KindInternal
)

// RouterError is what the Router family wraps. Backend-aware errors own
// their status and errno, so "backend-defined" rows of the error table stay
// with the backend that produced them.
type RouterError interface {
	error
	Status() int
	Errno() (int, bool)
}

// FieldError is one failed input field. Code carries the published errno
// for that field when one exists, zero otherwise.
type FieldError struct {
	Field string
	Code  int
	Msg   string
}

// Error is the unified error. It wraps a Kind, the context needed to
// render it, and optionally the call stack captured at construction.
type Error struct {
	Kind Kind

	cause  error
	detail string
	limit  int
	rerr   RouterError
	fields []FieldError
	stack  []byte
}

func newError(kind Kind, cause error) *Error {
	e := &Error{Kind: kind, cause: cause}
	if CaptureStacks {
		e.stack = debug.Stack()
	}
	return e
}

// IO wraps a filesystem or socket failure.
func IO(err error) *Error { return newError(KindIO, err) }

// Metrics wraps a metrics-transport failure.
func Metrics(err error) *Error { return newError(KindMetrics, err) }

// Validation reports one or more failed input fields.
func Validation(fields ...FieldError) *Error {
	e := newError(KindValidation, nil)
	e.fields = fields
	return e
}

// Router wraps a backend-aware dispatch failure.
func Router(err RouterError) *Error {
	e := newError(KindRouter, err)
	e.rerr = err
	return e
}

// Vapid wraps a VAPID header or claim failure.
func Vapid(err error) *Error { return newError(KindVapid, err) }

// TokenHash wraps an endpoint token hash validation failure.
func TokenHash(err error) *Error { return newError(KindTokenHash, err) }

// Database wraps a storage failure.
func Database(err error) *Error { return newError(KindDatabase, err) }

// InvalidToken reports an unparseable endpoint token.
func InvalidToken() *Error { return newError(KindInvalidToken, nil) }

// NoUser reports a UAID with no stored record.
func NoUser() *Error { return newError(KindNoUser, nil) }

// NoSubscription reports a channel the user is not subscribed to.
func NoSubscription() *Error { return newError(KindNoSubscription, nil) }

// InvalidEncryption reports a specific defect in the encryption headers.
func InvalidEncryption(detail string) *Error {
	e := newError(KindInvalidEncryption, nil)
	e.detail = detail
	return e
}

// PayloadTooLarge reports a payload above the given byte limit.
func PayloadTooLarge(limit int) *Error {
	e := newError(KindPayloadTooLarge, nil)
	e.limit = limit
	return e
}

// InvalidAPIVersion reports an API version other than the supported ones.
func InvalidAPIVersion() *Error { return newError(KindInvalidAPIVersion, nil) }

// NoTTL reports a send request without a TTL header.
func NoTTL() *Error { return newError(KindNoTTL, nil) }

// Internal reports a fault in our own code.
func Internal(msg string) *Error {
	e := newError(KindInternal, nil)
	e.detail = msg
	return e
}

// message is the human-readable display for the kind, used both in the
// JSON body and as the head of Error().
func (e *Error) message() string {
	switch e.Kind {
	case KindIO, KindMetrics, KindVapid:
		if e.cause != nil {
			return e.cause.Error()
		}
		return "unknown error"
	case KindValidation:
		msgs := make([]string, 0, len(e.fields))
		for _, f := range e.fields {
			msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Msg))
		}
		return strings.Join(msgs, "; ")
	case KindRouter:
		return e.rerr.Error()
	case KindTokenHash:
		return "error while validating token"
	case KindDatabase:
		return fmt.Sprintf("database error: %s", e.cause)
	case KindInvalidToken:
		return "invalid token"
	case KindNoUser:
		return "UAID not found"
	case KindNoSubscription:
		return "no such subscription"
	case KindInvalidEncryption:
		return e.detail
	case KindPayloadTooLarge:
		return fmt.Sprintf("data payload must be smaller than %d bytes", e.limit)
	case KindInvalidAPIVersion:
		return "invalid API version"
	case KindNoTTL:
		return "missing TTL value"
	default:
		return e.detail
	}
}

// Error prints the kind's display string followed by every wrapped cause,
// innermost last.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.message())
	for cause := errors.Unwrap(e.cause); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(&b, "\ncaused by: %s", cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Stack returns the stack captured at construction, nil unless
// CaptureStacks was on.
func (e *Error) Stack() []byte { return e.stack }

// Status returns the HTTP status for the kind. Pure and total.
func (e *Error) Status() int {
	switch e.Kind {
	case KindRouter:
		return e.rerr.Status()
	case KindValidation, KindInvalidEncryption, KindTokenHash, KindNoTTL:
		return http.StatusBadRequest
	case KindNoUser, KindNoSubscription:
		return http.StatusGone
	case KindVapid:
		return http.StatusUnauthorized
	case KindInvalidToken, KindInvalidAPIVersion:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Errno returns the published error number for the kind. The second return
// is false when no stable code is published, which is acceptable for purely
// internal failures.
func (e *Error) Errno() (int, bool) {
	switch e.Kind {
	case KindRouter:
		return e.rerr.Errno()
	case KindValidation:
		for _, f := range e.fields {
			if f.Code != 0 {
				return f.Code, true
			}
		}
		return 0, false
	case KindInvalidToken, KindInvalidAPIVersion:
		return 102, true
	case KindNoUser:
		return 103, true
	case KindPayloadTooLarge:
		return 104, true
	case KindNoSubscription:
		return 106, true
	case KindVapid, KindTokenHash:
		return 109, true
	case KindInvalidEncryption:
		return 110, true
	case KindNoTTL:
		return 111, true
	case KindInternal:
		return 999, true
	default:
		return 0, false
	}
}

// MarshalJSON renders the fixed 5-field wire body. The field set is part
// of the API contract and must not gain or drop fields.
func (e *Error) MarshalJSON() ([]byte, error) {
	status := e.Status()
	body := struct {
		Code     int    `json:"code"`
		Errno    *int   `json:"errno"`
		Error    string `json:"error"`
		Message  string `json:"message"`
		MoreInfo string `json:"more_info"`
	}{
		Code:     status,
		Error:    http.StatusText(status),
		Message:  e.message(),
		MoreInfo: MoreInfoURL,
	}
	if errno, ok := e.Errno(); ok {
		body.Errno = &errno
	}
	return json.Marshal(body)
}

// WriteJSON renders the error to an HTTP response. The status line always
// matches Status().
func (e *Error) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(e)
}

// NotFoundHandler replaces the router's default handler for unmatched
// paths with a bare 404 and no body, so routing internals never leak. This
// is distinct from the structured errno-bearing 404 for invalid tokens.
func NotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}
