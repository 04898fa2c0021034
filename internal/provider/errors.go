package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// ClassifyStatus maps an HTTP status returned by a backend onto a provider
// error kind.
func ClassifyStatus(providerName string, status int, message string, cause error) *domain.Error {
	if message == "" {
		message = http.StatusText(status)
	}
	msg := fmt.Sprintf("status %d: %s", status, message)

	var e *domain.Error
	switch {
	case status == http.StatusTooManyRequests:
		e = domain.ErrRateLimited(msg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusPaymentRequired:
		e = domain.ErrAccount(msg)
	case status == http.StatusRequestTimeout, status >= 500:
		// 529 (overloaded) lands here as well.
		e = domain.ErrUnavailable(msg)
	default:
		e = domain.ErrValidation("%s", msg)
	}
	e = e.WithProvider(providerName)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// ClassifyError maps a transport-level failure onto a provider error kind.
// Errors that already carry a kind are returned unchanged. Message
// sniffing is only the last resort for untyped errors.
func ClassifyError(providerName string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.ErrUnavailable(err.Error()).WithProvider(providerName).WithCause(err)
	case errors.As(err, &netErr):
		return domain.ErrUnavailable(err.Error()).WithProvider(providerName).WithCause(err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"):
		return domain.ErrRateLimited(err.Error()).WithProvider(providerName).WithCause(err)
	case strings.Contains(lower, "insufficient_quota"), strings.Contains(lower, "billing"),
		strings.Contains(lower, "invalid api key"), strings.Contains(lower, "unauthorized"):
		return domain.ErrAccount(err.Error()).WithProvider(providerName).WithCause(err)
	}
	return domain.ErrUnavailable(err.Error()).WithProvider(providerName).WithCause(err)
}
