package controllers

import (
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/services"
	"github.com/curaious/synergy/internal/services/task"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

func RegisterTaskRoutes(r *router.Router, svc *services.Services) {
	r.POST("/api/projects/{id}/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		projectID, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		var body task.CreateTaskRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		created, err := svc.Task.Create(stdCtx, actorID(ctx), projectID, &body)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to create task", err)
			return
		}

		writeCreated(ctx, stdCtx, "Task created successfully", created)
	})

	r.GET("/api/projects/{id}/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		projectID, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		tasks, err := svc.Task.List(stdCtx, actorID(ctx), projectID)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to list tasks", err)
			return
		}

		writeOK(ctx, stdCtx, "Tasks retrieved successfully", tasks)
	})

	r.PUT("/api/tasks/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		taskID, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		var body task.UpdateTaskRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.Task.Update(stdCtx, actorID(ctx), taskID, &body)
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to update task", err)
			return
		}

		writeOK(ctx, stdCtx, "Task updated successfully", updated)
	})

	r.DELETE("/api/tasks/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		taskID, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		if err := svc.Task.Delete(stdCtx, actorID(ctx), taskID); err != nil {
			writeServiceError(ctx, stdCtx, "Failed to delete task", err)
			return
		}

		writeOK(ctx, stdCtx, "Task deleted successfully", nil)
	})

	// Tasks assigned to the caller across their projects
	r.GET("/api/users/me/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		tasks, err := svc.Task.ListAssigned(stdCtx, actorID(ctx))
		if err != nil {
			writeServiceError(ctx, stdCtx, "Failed to list tasks", err)
			return
		}

		writeOK(ctx, stdCtx, "Tasks retrieved successfully", tasks)
	})
}
