package controllers

import (
	"context"
	"errors"
	"fmt"

	json "github.com/bytedance/sonic"
	"github.com/curaious/synergy/internal/api/response"
	"github.com/curaious/synergy/internal/services/user"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// CurrentUserKey is the user value the auth middleware stores the resolved
// *user.User under.
const CurrentUserKey = "currentUser"

// requestContext returns the trace context extracted by the middleware, so
// service spans join the caller's trace. fasthttp does not provide a standard
// context otherwise.
func requestContext(ctx *fasthttp.RequestCtx) context.Context {
	if traceCtx, ok := ctx.UserValue("traceCtx").(context.Context); ok && traceCtx != nil {
		return traceCtx
	}
	return context.Background()
}

// currentUser returns the authenticated caller, or nil on public routes.
func currentUser(ctx *fasthttp.RequestCtx) *user.User {
	if u, ok := ctx.UserValue(CurrentUserKey).(*user.User); ok {
		return u
	}
	return nil
}

func actorID(ctx *fasthttp.RequestCtx) uuid.UUID {
	if u := currentUser(ctx); u != nil {
		return u.ID
	}
	return uuid.Nil
}

func parseBody(ctx *fasthttp.RequestCtx, target any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("request body is empty")
	}

	return json.Unmarshal(body, target)
}

func writeError(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, err error) {
	response.NewResponse[any](stdCtx, message, nil).WithError(err).Write(ctx)
}

// writeServiceError maps a service error onto its HTTP error before writing it.
func writeServiceError(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, err error) {
	writeError(ctx, stdCtx, message, toHTTPError(message, err))
}

func writeOK(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, data any) {
	response.NewResponse(stdCtx, message, data).Write(ctx)
}

func writeCreated(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, data any) {
	response.NewResponse(stdCtx, message, data).WithStatus(fasthttp.StatusCreated).Write(ctx)
}

func pathParam(ctx *fasthttp.RequestCtx, key string) (string, error) {
	val := ctx.UserValue(key)
	if val == nil {
		return "", fmt.Errorf("%s is required", key)
	}

	return fmt.Sprint(val), nil
}

func pathParamUUID(ctx *fasthttp.RequestCtx, key string) (uuid.UUID, error) {
	val, err := pathParam(ctx, key)
	if err != nil {
		return uuid.Nil, err
	}

	return uuid.Parse(val)
}
