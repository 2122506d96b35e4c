package api

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/curaious/synergy/internal/api/controllers"
	"github.com/curaious/synergy/internal/services/user"
)

type stubResolver struct {
	user   *user.User
	err    error
	tokens []string
}

func (s *stubResolver) Resolve(_ context.Context, token string) (*user.User, error) {
	s.tokens = append(s.tokens, token)
	if token == "" {
		return nil, user.ErrUnauthorized
	}
	return s.user, s.err
}

func newRequest(method, path string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	return ctx
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	resolver := &stubResolver{}
	called := false
	h := withMiddlewares(func(ctx *fasthttp.RequestCtx) { called = true }, nil, resolver)

	ctx := newRequest(fasthttp.MethodGet, "/api/projects")
	h(ctx)

	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "Bearer", string(ctx.Response.Header.Peek("WWW-Authenticate")))
}

func TestMiddlewareStoresResolvedUser(t *testing.T) {
	alice := &user.User{ID: uuid.New(), Name: "alice"}
	resolver := &stubResolver{user: alice}

	var seen *user.User
	h := withMiddlewares(func(ctx *fasthttp.RequestCtx) {
		seen, _ = ctx.UserValue(controllers.CurrentUserKey).(*user.User)
	}, nil, resolver)

	ctx := newRequest(fasthttp.MethodGet, "/api/projects")
	ctx.Request.Header.Set("Authorization", "Bearer token-1")
	h(ctx)

	require.NotNil(t, seen)
	assert.Equal(t, alice.ID, seen.ID)
	assert.Equal(t, []string{"token-1"}, resolver.tokens)
}

func TestMiddlewareFallsBackToCookie(t *testing.T) {
	resolver := &stubResolver{user: &user.User{ID: uuid.New()}}
	h := withMiddlewares(func(ctx *fasthttp.RequestCtx) {}, nil, resolver)

	ctx := newRequest(fasthttp.MethodGet, "/api/users/me/tasks")
	ctx.Request.Header.SetCookie("access_token", "cookie-token")
	h(ctx)

	assert.Equal(t, []string{"cookie-token"}, resolver.tokens)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestMiddlewareSkipsPublicRoutes(t *testing.T) {
	resolver := &stubResolver{}
	called := false
	h := withMiddlewares(func(ctx *fasthttp.RequestCtx) { called = true }, nil, resolver)

	h(newRequest(fasthttp.MethodPost, "/api/auth/login"))

	assert.True(t, called)
	assert.Empty(t, resolver.tokens)
}

func TestCORS(t *testing.T) {
	origins := []string{"http://localhost:3000"}
	h := withMiddlewares(func(ctx *fasthttp.RequestCtx) {}, origins, &stubResolver{})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		ctx := newRequest(fasthttp.MethodOptions, "/api/projects")
		ctx.Request.Header.Set("Origin", "http://localhost:3000")
		h(ctx)

		assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
		assert.Equal(t, "http://localhost:3000", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
		assert.Equal(t, "true", string(ctx.Response.Header.Peek("Access-Control-Allow-Credentials")))
	})

	t.Run("unknown origin gets no CORS headers", func(t *testing.T) {
		ctx := newRequest(fasthttp.MethodOptions, "/api/projects")
		ctx.Request.Header.Set("Origin", "http://evil.example")
		h(ctx)

		assert.Empty(t, ctx.Response.Header.Peek("Access-Control-Allow-Origin"))
	})
}
