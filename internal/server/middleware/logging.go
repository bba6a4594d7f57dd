package middleware

import (
	"context"
	"time"

	pkglog "farmlokal/pkg/log"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// Logging returns a middleware that logs one line per request with method,
// path, status and latency. It assigns a request id (reusing X-Request-ID
// when the caller supplies one) and injects it into the context so downstream
// log lines can correlate.
func Logging(logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				ip        string
				requestID string
				clientID  string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				method = tr.Operation()
				path = tr.Operation()

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}

					ip = extractClientIP(httpReq)
					clientID = extractClientID(httpReq)

					requestID = httpReq.Header.Get("X-Request-ID")
					if requestID == "" {
						requestID = pkglog.GenerateRequestID()
					}

					tr.ReplyHeader().Set("X-Request-ID", requestID)
				}
			}

			ctx = pkglog.WithRequestContext(ctx, requestID, clientID)

			reply, err := handler(ctx, req)

			duration := time.Since(startTime).Milliseconds()

			status := 200
			if err != nil {
				status = int(kerrors.FromError(err).Code)
			}

			logFn := helper.Infow
			if status >= 500 {
				logFn = helper.Errorw
			} else if status >= 400 {
				logFn = helper.Warnw
			}

			logFn("http request",
				"request_id", requestID,
				"method", method,
				"path", path,
				"status", status,
				"duration_ms", duration,
				"ip", ip,
			)

			return reply, err
		}
	}
}
