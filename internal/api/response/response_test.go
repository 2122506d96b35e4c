package response

import (
	"context"
	"errors"
	"net/http"
	"testing"

	json "github.com/bytedance/sonic"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func decode(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}

func TestWriteOK(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	NewResponse(context.Background(), "Project created", map[string]string{"name": "Sprint 1"}).
		WithStatus(http.StatusCreated).Write(ctx)

	assert.Equal(t, http.StatusCreated, ctx.Response.StatusCode())
	body := decode(t, ctx)
	assert.Equal(t, false, body["error"])
	assert.Equal(t, "Sprint 1", body["data"].(map[string]any)["name"])
	assert.NotContains(t, body, "errorDetails")
}

func TestWriteTypedError(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	NewResponse[any](context.Background(), "Project not found", nil).
		WithError(perrors.NewErrNotFound("Project not found", errors.New("project not found"))).Write(ctx)

	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())
	details := decode(t, ctx)["errorDetails"].(map[string]any)
	assert.Equal(t, "project not found", details["error"])
	assert.Equal(t, "not_found", details["code"].(map[string]any)["code"])
}

func TestWriteHidesInternalErrors(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	NewResponse[any](context.Background(), "Failed", nil).
		WithError(errors.New("pq: relation \"tasks\" does not exist")).Write(ctx)

	assert.Equal(t, http.StatusInternalServerError, ctx.Response.StatusCode())
	details := decode(t, ctx)["errorDetails"].(map[string]any)
	assert.Equal(t, "Internal Server Error", details["error"])
}
