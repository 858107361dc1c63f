package check

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// Kind classifies why a check did not pass.
type Kind string

const (
	KindConfigMissing  Kind = "configuration-missing"
	KindNetwork        Kind = "network-unreachable"
	KindRateLimited    Kind = "rate-limited"
	KindRemoteRejected Kind = "remote-rejected"
	KindMalformed      Kind = "malformed-response"
	KindUnknown        Kind = "unknown"
)

// Hint returns a short diagnostic for the class, or "" when there is none.
func (k Kind) Hint() string {
	switch k {
	case KindConfigMissing:
		return "missing configuration"
	case KindNetwork:
		return "network connection failed"
	case KindRateLimited:
		return "rate limit exceeded"
	case KindRemoteRejected:
		return "remote service rejected the request"
	case KindMalformed:
		return "unexpected response format"
	default:
		return ""
	}
}

// Error attaches an explicit Kind to an error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Malformedf returns a malformed-response error with a formatted message.
func Malformedf(format string, args ...interface{}) error {
	return &Error{Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

// RemoteError is a non-success answer from a remote service.
type RemoteError struct {
	Service    string // e.g., "cdse token endpoint"
	StatusCode int    // HTTP status, 0 when the service reported an application error
	Body       string // error payload as returned by the service, possibly truncated
}

func (e *RemoteError) Error() string {
	msg := e.Service
	if msg == "" {
		msg = "remote service"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s returned status %d", msg, e.StatusCode)
	} else {
		msg += " returned an error"
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// maxBodyLen bounds how much of a remote payload ends up in a detail line.
const maxBodyLen = 300

// TruncateBody trims whitespace and shortens body for display.
func TruncateBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > maxBodyLen {
		return body[:maxBodyLen] + "..."
	}
	return body
}

// Classify maps err onto the error taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}

	var remote *RemoteError
	if errors.As(err, &remote) {
		if remote.StatusCode == http.StatusTooManyRequests || mentionsRateLimit(remote.Body) {
			return KindRateLimited
		}
		return KindRemoteRejected
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindMalformed
	}

	if mentionsRateLimit(err.Error()) {
		return KindRateLimited
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindNetwork
	}
	var netErr net.Error
	var urlErr *url.Error
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return KindNetwork
	}

	return KindUnknown
}

func mentionsRateLimit(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests")
}
