package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UpstreamError reports a transient provider-side failure: transport errors,
// rate limiting, non-2xx statuses or bodies that could not be decoded.
type UpstreamError struct {
	Service string
	Status  int
	Code    string
	Err     error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	b.WriteString(" upstream error")
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status=%d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RateLimited reports whether the provider throttled the call.
func (e *UpstreamError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

// InvalidCredentialsError is returned when the configured access key is missing or rejected.
type InvalidCredentialsError struct {
	Service string
	Status  int
}

func (e *InvalidCredentialsError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: no access key configured", e.Service)
	}
	return fmt.Sprintf("%s rejected access key: status=%d", e.Service, e.Status)
}

// ParseError marks a payload that could not be turned into a typed result.
type ParseError struct {
	What   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.What, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.What, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FromResponse converts a non-2xx HTTP response into the matching error type.
// It returns nil for 2xx responses. The body is read (bounded) but not closed.
func FromResponse(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &InvalidCredentialsError{Service: service, Status: resp.StatusCode}
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &UpstreamError{
		Service: service,
		Status:  resp.StatusCode,
		Code:    http.StatusText(resp.StatusCode),
		Err:     errors.New(strings.TrimSpace(string(b))),
	}
}

// Transport wraps an error returned by the HTTP client itself.
func Transport(service string, err error) error {
	return &UpstreamError{Service: service, Code: "transport", Err: err}
}

// Decode wraps a body decoding failure.
func Decode(service string, err error) error {
	return &UpstreamError{Service: service, Code: "malformed_response", Err: err}
}

// IsInvalidCredentials reports whether err carries an InvalidCredentialsError.
func IsInvalidCredentials(err error) bool {
	var ice *InvalidCredentialsError
	return errors.As(err, &ice)
}

// Kind labels err for metrics and error events.
func Kind(err error) string {
	var (
		ice *InvalidCredentialsError
		ue  *UpstreamError
		pe  *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ice):
		return "invalid_credentials"
	case errors.As(err, &ue):
		if ue.RateLimited() {
			return "rate_limited"
		}
		return "upstream"
	case errors.As(err, &pe):
		return "parse"
	default:
		return "internal"
	}
}
