package controllers

import (
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/services"
	"github.com/curaious/synergy/internal/services/comment"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

func RegisterCommentRoutes(r *router.Router, svc *services.Services) {
	r.POST("/api/projects/{id}/comments", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		projectID, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		var body comment.CreateCommentRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		created, err := svc.Comment.Create(stdCtx, actorID(ctx), projectID, &body)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to post comment", err)
			return
		}

		writeCreated(ctx, stdCtx, "Comment posted successfully", created)
	})

	r.GET("/api/projects/{id}/comments", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		projectID, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		comments, err := svc.Comment.List(stdCtx, actorID(ctx), projectID)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to list comments", err)
			return
		}

		writeOK(ctx, stdCtx, "Comments retrieved successfully", comments)
	})
}
