// Package middleware provides HTTP middleware for rate limiting and request
// logging.
package middleware

import (
	"context"
	"strconv"
	"strings"

	"farmlokal/internal/biz"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// RateLimit returns a middleware enforcing the per-client fixed-window limit.
//
// The client identity is the X-API-Key header when present, otherwise the
// client IP. Every response carries X-RateLimit-Limit and X-RateLimit-Remaining;
// rejected requests additionally carry Retry-After in seconds.
func RateLimit(limiter *biz.RateLimiterUseCase) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return handler(ctx, req)
			}
			ht, ok := tr.(http.Transporter)
			if !ok {
				return handler(ctx, req)
			}

			clientID := extractClientID(ht.Request())

			decision, err := limiter.Allow(ctx, clientID)
			if err != nil {
				return nil, err
			}

			header := tr.ReplyHeader()
			header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			if decision.Remaining >= 0 {
				header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			}

			if !decision.Allowed {
				header.Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
				return nil, biz.NewRateLimitExceededError(decision.RetryAfter)
			}

			return handler(ctx, req)
		}
	}
}

// extractClientID picks the rate-limiting identity of a request.
func extractClientID(req *http.Request) string {
	if key := req.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return extractClientIP(req)
}

// extractClientIP returns the client's real IP.
// Priority: X-Real-IP > X-Forwarded-For (first hop) > RemoteAddr.
func extractClientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	host := req.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
