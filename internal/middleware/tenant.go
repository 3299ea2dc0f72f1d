package middleware

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const organizationHeader = "X-Organization-ID"

// RequireOrganization rejects requests without a tenant header. The
// gateway in front of this service resolves authentication and stamps
// the header; this layer only enforces its presence.
func RequireOrganization(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if len(ctx.Request.Header.Peek(organizationHeader)) == 0 {
				logger.Debug("request without organization header",
					zap.ByteString("path", ctx.Path()))
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				ctx.SetBodyString(`{"status":"error","code":"INVALID","error":"missing X-Organization-ID header"}`)
				ctx.Response.Header.SetContentType("application/json")
				return
			}
			next(ctx)
		}
	}
}

// Recover converts handler panics into 500 responses.
func Recover(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked",
						zap.ByteString("path", ctx.Path()),
						zap.Any("panic", r))
					ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				}
			}()
			next(ctx)
		}
	}
}
