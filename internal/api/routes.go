package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/propagation"

	"github.com/curaious/synergy/internal/api/controllers"
	"github.com/curaious/synergy/internal/api/response"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/services/user"
)

var tracePropagator = propagation.TraceContext{}

var publicRoutes = []string{
	"/api/health",
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/logout",
}

// TokenResolver maps an access token onto the user it was issued to.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*user.User, error)
}

func (s *Server) initNewRoutes() fasthttp.RequestHandler {
	r := router.New()

	r.GET("/api/health", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		_, _ = ctx.Write([]byte("OK"))
	})

	controllers.RegisterAuthRoutes(r, s.services, s.authLimiter)
	controllers.RegisterProjectRoutes(r, s.services)
	controllers.RegisterTaskRoutes(r, s.services)
	controllers.RegisterCommentRoutes(r, s.services)
	controllers.RegisterActivityRoutes(r, s.services, s.pubsub)

	return withMiddlewares(r.Handler, s.conf.CORS_ORIGINS, s.services.User)
}

func withMiddlewares(next fasthttp.RequestHandler, origins []string, resolver TokenResolver) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		applyCORS(ctx, origins)
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		start := time.Now()
		uri := ctx.URI()
		requestURI := string(uri.FullURI())
		slog.Info("Started processing", slog.String("method", string(ctx.Method())), slog.String("request_uri", requestURI))

		h := http.Header{}
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			h[string(k)] = []string{string(v)}
		})
		traceCtx := tracePropagator.Extract(context.Background(), propagation.HeaderCarrier(h))
		ctx.SetUserValue("traceCtx", traceCtx)

		// Auth check
		if !isPublicRoute(ctx) {
			u, err := resolver.Resolve(traceCtx, accessToken(ctx))
			if err != nil {
				if !errors.Is(err, user.ErrUnauthorized) {
					response.NewResponse[any](traceCtx, "Unable to authenticate", nil).WithError(err).Write(ctx)
					return
				}
				response.NewResponse[any](traceCtx, "Could not validate credentials", nil).
					WithError(perrors.NewErrUnauthorized("Could not validate credentials", err)).
					Write(ctx)
				ctx.Response.Header.Set("WWW-Authenticate", "Bearer")
				return
			}

			ctx.SetUserValue(controllers.CurrentUserKey, u)
		}

		next(ctx)

		slog.Info("Finished processing", slog.String("method", string(ctx.Method())), slog.String("request_uri", requestURI), slog.Duration("duration", time.Since(start)))
	}
}

// accessToken reads the bearer token, falling back to the access_token cookie.
func accessToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token
	}
	return string(ctx.Request.Header.Cookie("access_token"))
}

func applyCORS(ctx *fasthttp.RequestCtx, origins []string) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" || !slices.Contains(origins, origin) {
		return
	}

	headers := &ctx.Response.Header
	headers.Set("Access-Control-Allow-Origin", origin)
	headers.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	headers.Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
	headers.Set("Access-Control-Allow-Credentials", "true")
	headers.Add("Vary", "Origin")
}

func isPublicRoute(ctx *fasthttp.RequestCtx) bool {
	return slices.Contains(publicRoutes, string(ctx.Path()))
}
