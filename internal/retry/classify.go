package retry

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Classify treats rate limits and server-side failures as retryable and
// everything else as fatal. It understands go-errors values produced by
// httpx, gRPC statuses, and the plain-text errors some provider SDKs return.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Fatal
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch {
		case richErr.Category == goerrors.CategoryRateLimit:
			return Retryable
		case richErr.Code == http.StatusTooManyRequests, richErr.Code >= 500:
			return Retryable
		default:
			return Fatal
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted:
			return Retryable
		default:
			return Fatal
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return Retryable
		}
	}
	return Fatal
}

var retryableMarkers = []string{
	"status code: 429",
	"status code: 5",
	"rate limit",
	"ratelimit",
	"too many requests",
}
