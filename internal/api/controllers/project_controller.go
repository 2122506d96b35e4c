package controllers

import (
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/services"
	"github.com/curaious/synergy/internal/services/project"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

func RegisterProjectRoutes(r *router.Router, svc *services.Services) {
	// Create project
	r.POST("/api/projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body project.CreateProjectRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		created, err := svc.Project.Create(stdCtx, actorID(ctx), &body)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to create project", err)
			return
		}

		writeCreated(ctx, stdCtx, "Project created successfully", created)
	})

	// List projects the caller belongs to
	r.GET("/api/projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		projects, err := svc.Project.List(stdCtx, actorID(ctx))
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to list projects", err)
			return
		}

		writeOK(ctx, stdCtx, "Projects retrieved successfully", projects)
	})

	r.GET("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		p, err := svc.Project.Get(stdCtx, actorID(ctx), id)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Project not found", err)
			return
		}

		writeOK(ctx, stdCtx, "Project retrieved successfully", p)
	})

	// Update project
	r.PUT("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		var body project.UpdateProjectRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.Project.Update(stdCtx, actorID(ctx), id, &body)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to update project", err)
			return
		}

		writeOK(ctx, stdCtx, "Project updated successfully", updated)
	})

	// Delete project with its tasks, comments and memberships
	r.DELETE("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		report, err := svc.Project.Delete(stdCtx, actorID(ctx), id)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to delete project", err)
			return
		}

		writeOK(ctx, stdCtx, "Project deleted successfully", report)
	})

	r.POST("/api/projects/{id}/members", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		var body project.AddMemberRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		added, members, err := svc.Project.AddMember(stdCtx, actorID(ctx), id, body.Email)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to add member", err)
			return
		}

		message := "Member added successfully"
		if !added {
			message = "User is already a member"
		}
		writeOK(ctx, stdCtx, message, members)
	})

	r.GET("/api/projects/{id}/members", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		members, err := svc.Project.Members(stdCtx, actorID(ctx), id)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to list members", err)
			return
		}

		writeOK(ctx, stdCtx, "Members retrieved successfully", members)
	})
}
