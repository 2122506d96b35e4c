package controllers

import (
	"time"

	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/ratelimit"
	"github.com/curaious/synergy/internal/services"
	"github.com/curaious/synergy/internal/services/user"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

const accessTokenCookie = "access_token"

// AuthResponse is returned by register and login.
type AuthResponse struct {
	*user.AccessToken
	User *user.User `json:"user"`
}

// RegisterAuthRoutes wires registration, login and session endpoints. limiter
// may be nil, in which case nothing is throttled.
func RegisterAuthRoutes(r *router.Router, svc *services.Services, limiter *ratelimit.Limiter) {
	r.POST("/api/auth/register", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		if err := throttle(ctx, limiter, "register"); err != nil {
			writeServiceError(ctx, stdCtx, "Too many registration attempts", err)
			return
		}

		var req user.RegisterRequest
		if err := parseBody(ctx, &req); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		u, err := svc.User.Register(stdCtx, &req)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Unable to register", err)
			return
		}

		token, err := svc.User.IssueToken(u)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to issue token", err)
			return
		}

		setTokenCookie(ctx, token.Token, token.ExpiresAt)
		writeCreated(ctx, stdCtx, "Registered successfully", AuthResponse{AccessToken: token, User: u})
	})

	r.POST("/api/auth/login", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		if err := throttle(ctx, limiter, "login"); err != nil {
			writeServiceError(ctx, stdCtx, "Too many login attempts", err)
			return
		}

		var req user.LoginRequest
		if err := parseBody(ctx, &req); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		u, err := svc.User.Authenticate(stdCtx, req.Email, req.Password)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Incorrect email or password", err)
			return
		}

		token, err := svc.User.IssueToken(u)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to issue token", err)
			return
		}

		setTokenCookie(ctx, token.Token, token.ExpiresAt)
		writeOK(ctx, stdCtx, "Logged in successfully", AuthResponse{AccessToken: token, User: u})
	})

	r.GET("/api/auth/me", func(ctx *fasthttp.RequestCtx) {
		writeOK(ctx, requestContext(ctx), "success", currentUser(ctx))
	})

	r.POST("/api/auth/logout", func(ctx *fasthttp.RequestCtx) {
		setTokenCookie(ctx, "", time.Now().Add(-time.Hour))
		writeOK(ctx, requestContext(ctx), "Logged out successfully", nil)
	})
}

func setTokenCookie(ctx *fasthttp.RequestCtx, token string, expires time.Time) {
	var cookie fasthttp.Cookie
	cookie.SetKey(accessTokenCookie)
	cookie.SetValue(token)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSecure(ctx.IsTLS())
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetExpire(expires)
	ctx.Response.Header.SetCookie(&cookie)
}

// throttle consumes a token from the caller's bucket for action.
func throttle(ctx *fasthttp.RequestCtx, limiter *ratelimit.Limiter, action string) error {
	if limiter == nil {
		return nil
	}
	return limiter.Check(requestContext(ctx), action+":"+ctx.RemoteIP().String())
}
