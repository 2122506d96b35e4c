package controllers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/curaious/synergy/internal/access"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/pubsub"
	"github.com/curaious/synergy/internal/services"
	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const (
	activityBuffer    = 64
	activityHeartbeat = 25 * time.Second
)

// RegisterActivityRoutes streams committed changes of a project to its members
// as server-sent events. Access is checked again before every event; the
// stream ends once the caller loses access or the project is deleted.
func RegisterActivityRoutes(r *router.Router, svc *services.Services, ps *pubsub.PubSub) {
	r.GET("/api/projects/{id}/activity", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		projectID, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		if ps == nil {
			writeError(ctx, stdCtx, "Activity stream unavailable", perrors.New(perrors.ErrCodeServiceUnavailable, "Activity stream unavailable", errors.New("pubsub is not running")))
			return
		}

		actor := actorID(ctx)
		if err := svc.Project.Authorize(stdCtx, actor, projectID, access.Subscribe); err != nil {
			writeServiceError(ctx, stdCtx, "Project not found", err)
			return
		}

		events := make(chan pubsub.ActivityEvent, activityBuffer)
		unsubscribe := ps.Subscribe(func(event pubsub.ActivityEvent) {
			if event.ProjectID != projectID && event.Operation != pubsub.OperationReload {
				return
			}
			select {
			case events <- event:
			default:
				slog.Warn("Dropping activity event for slow subscriber", slog.String("project_id", projectID.String()), slog.String("actor", actor.String()))
			}
		})

		ctx.Response.Header.Set("Content-Type", "text/event-stream")
		ctx.Response.Header.Set("Cache-Control", "no-cache")
		ctx.SetStatusCode(fasthttp.StatusOK)

		ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			defer unsubscribe()

			heartbeat := time.NewTicker(activityHeartbeat)
			defer heartbeat.Stop()

			stream := &activityStream{
				w:         w,
				projectID: projectID,
				authorize: func(c context.Context) error {
					return svc.Project.Authorize(c, actor, projectID, access.Subscribe)
				},
				exists: func(c context.Context) (bool, error) {
					return svc.Project.Exists(c, projectID)
				},
			}
			stream.run(context.Background(), events, heartbeat.C)
		})
	})
}

type activityStream struct {
	w         *bufio.Writer
	projectID uuid.UUID
	authorize func(ctx context.Context) error
	exists    func(ctx context.Context) (bool, error)
}

// run writes events until the subscriber must stop receiving them or the
// client goes away.
func (s *activityStream) run(ctx context.Context, events <-chan pubsub.ActivityEvent, heartbeat <-chan time.Time) {
	if err := s.write("ready", map[string]string{"project_id": s.projectID.String()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event := <-events:
			if event.ProjectGone() {
				_ = s.write("deleted", event)
				return
			}

			// The cascade removes memberships before the project row, so a
			// subscriber is usually denied before the projects DELETE arrives.
			if err := s.authorize(ctx); err != nil {
				if s.projectGone(ctx, err) {
					_ = s.write("deleted", pubsub.ActivityEvent{Table: "projects", Operation: "DELETE", ProjectID: s.projectID})
					return
				}
				_ = s.write("closed", map[string]string{"reason": "access revoked"})
				return
			}

			name := "activity"
			if event.Operation == pubsub.OperationReload {
				name = "reload"
				event.ProjectID = s.projectID
			}
			if err := s.write(name, event); err != nil {
				return
			}

		case <-heartbeat:
			if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
				return
			}
			if err := s.w.Flush(); err != nil {
				return
			}
		}
	}
}

// projectGone reports whether a denial was caused by the project being
// deleted rather than by the subscriber losing membership.
func (s *activityStream) projectGone(ctx context.Context, denied error) bool {
	if !errors.Is(denied, access.ErrProjectNotFound) || s.exists == nil {
		return false
	}
	exists, err := s.exists(ctx)
	if err != nil {
		slog.Warn("Unable to check project after denial", slog.String("project_id", s.projectID.String()), slog.Any("error", err))
		return false
	}
	return !exists
}

func (s *activityStream) write(event string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, buf); err != nil {
		return err
	}
	return s.w.Flush()
}
