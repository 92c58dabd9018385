// Package apperr classifies failures so each one stays scoped to the action
// that triggered it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure
type Kind int

const (
	// KindValidation is a client-side invariant violation. It never reaches the network.
	KindValidation Kind = iota + 1
	// KindPermission is a 403 from the backend or a capability check that failed locally.
	KindPermission
	// KindNotFoundOrStale is a 404/409-class response; the entity must be re-fetched.
	KindNotFoundOrStale
	// KindTransient is a network failure or 5xx; the user may retry.
	KindTransient
	// KindSessionExpired is a 401 from the backend.
	KindSessionExpired
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindNotFoundOrStale:
		return "not_found_or_stale"
	case KindTransient:
		return "transient"
	case KindSessionExpired:
		return "session_expired"
	}
	return "unknown"
}

// Error is a classified failure. Code is a stable machine-readable identifier
// such as STALE_FROM_LOCATION.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and Code, so sentinel values work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Validation builds a KindValidation error
func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Permission builds a KindPermission error
func Permission(code, format string, args ...any) *Error {
	return &Error{Kind: KindPermission, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind
func Wrap(kind Kind, code string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the Code of the first *Error in err's chain, or ""
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FromStatus classifies a backend HTTP status. It returns nil for 2xx.
func FromStatus(status int, body string) *Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindSessionExpired, Code: "SESSION_EXPIRED", Message: "session expired", Err: bodyErr(body)}
	case status == http.StatusForbidden:
		return &Error{Kind: KindPermission, Code: "FORBIDDEN", Message: "permission denied by backend", Err: bodyErr(body)}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFoundOrStale, Code: "NOT_FOUND", Message: "entity not found", Err: bodyErr(body)}
	case status == http.StatusConflict || status == http.StatusGone || status == http.StatusPreconditionFailed:
		return &Error{Kind: KindNotFoundOrStale, Code: "STALE", Message: "entity changed on the server", Err: bodyErr(body)}
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return &Error{Kind: KindTransient, Code: "BACKEND_UNAVAILABLE", Message: fmt.Sprintf("backend returned %d", status), Err: bodyErr(body)}
	default:
		// Other 4xx: the backend rejected the payload itself
		return &Error{Kind: KindValidation, Code: "BACKEND_REJECTED", Message: fmt.Sprintf("backend rejected request (%d)", status), Err: bodyErr(body)}
	}
}

// HTTPStatus maps a Kind to the status the console answers with
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindPermission:
		return http.StatusForbidden
	case KindNotFoundOrStale:
		if e.Code == "STALE" {
			return http.StatusConflict
		}
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindSessionExpired:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func bodyErr(body string) error {
	if body == "" {
		return nil
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return errors.New(body)
}
