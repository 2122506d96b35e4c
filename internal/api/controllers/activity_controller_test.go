package controllers

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/curaious/synergy/internal/access"
	"github.com/curaious/synergy/internal/pubsub"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestStream(projectID uuid.UUID, authorize func(context.Context) error) (*activityStream, *bytes.Buffer) {
	var buf bytes.Buffer
	return &activityStream{
		w:         bufio.NewWriter(&buf),
		projectID: projectID,
		authorize: authorize,
	}, &buf
}

func allow(context.Context) error { return nil }

func projectExists(exists bool) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) { return exists, nil }
}

func TestActivityStreamForwardsEventsUntilProjectDeleted(t *testing.T) {
	projectID := uuid.New()
	stream, buf := newTestStream(projectID, allow)

	events := make(chan pubsub.ActivityEvent, 3)
	events <- pubsub.ActivityEvent{Table: "tasks", Operation: "INSERT", ProjectID: projectID}
	events <- pubsub.ActivityEvent{Operation: pubsub.OperationReload}
	events <- pubsub.ActivityEvent{Table: "projects", Operation: "DELETE", ProjectID: projectID}

	stream.run(context.Background(), events, nil)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "event: ready\n"))
	assert.Contains(t, out, "event: activity\ndata: {")
	assert.Contains(t, out, `"table":"tasks"`)
	assert.Contains(t, out, "event: reload\n")
	assert.True(t, strings.HasSuffix(out, "\n\n"))
	assert.Contains(t, out, "event: deleted\n")
	assert.Less(t, strings.Index(out, "event: activity"), strings.Index(out, "event: deleted"))
}

func TestActivityStreamClosesWhenAccessRevoked(t *testing.T) {
	projectID := uuid.New()
	stream, buf := newTestStream(projectID, func(context.Context) error {
		return access.ErrProjectNotFound
	})
	stream.exists = projectExists(true)

	events := make(chan pubsub.ActivityEvent, 2)
	events <- pubsub.ActivityEvent{Table: "comments", Operation: "INSERT", ProjectID: projectID}
	events <- pubsub.ActivityEvent{Table: "tasks", Operation: "INSERT", ProjectID: projectID}

	stream.run(context.Background(), events, nil)

	out := buf.String()
	assert.Contains(t, out, "event: closed\n")
	assert.NotContains(t, out, "event: activity")
	assert.Len(t, events, 1)
}

func TestActivityStreamHeartbeat(t *testing.T) {
	stream, buf := newTestStream(uuid.New(), allow)

	heartbeat := make(chan time.Time, 1)
	heartbeat <- time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	stream.run(ctx, make(chan pubsub.ActivityEvent), heartbeat)

	assert.Contains(t, buf.String(), ": ping\n\n")
}

func TestActivityStreamReportsDeletionAfterCascade(t *testing.T) {
	projectID := uuid.New()
	stream, buf := newTestStream(projectID, func(context.Context) error {
		return access.ErrProjectNotFound
	})
	stream.exists = projectExists(false)

	// Rows are notified in cascade order and delivered after commit, so every
	// event is checked against a project that no longer exists.
	events := make(chan pubsub.ActivityEvent, 3)
	events <- pubsub.ActivityEvent{Table: "tasks", Operation: "DELETE", ProjectID: projectID}
	events <- pubsub.ActivityEvent{Table: "project_members", Operation: "DELETE", ProjectID: projectID}
	events <- pubsub.ActivityEvent{Table: "projects", Operation: "DELETE", ProjectID: projectID}

	stream.run(context.Background(), events, nil)

	out := buf.String()
	assert.Contains(t, out, "event: deleted\n")
	assert.Contains(t, out, `"table":"projects"`)
	assert.Contains(t, out, `"operation":"DELETE"`)
	assert.Contains(t, out, projectID.String())
	assert.NotContains(t, out, "event: closed")
	assert.NotContains(t, out, "event: activity")
}

func TestActivityStreamClosesWhenExistenceCheckFails(t *testing.T) {
	projectID := uuid.New()
	stream, buf := newTestStream(projectID, func(context.Context) error {
		return access.ErrProjectNotFound
	})
	stream.exists = func(context.Context) (bool, error) { return false, errors.New("connection reset") }

	events := make(chan pubsub.ActivityEvent, 1)
	events <- pubsub.ActivityEvent{Table: "tasks", Operation: "UPDATE", ProjectID: projectID}

	stream.run(context.Background(), events, nil)

	assert.Contains(t, buf.String(), "event: closed\n")
	assert.NotContains(t, buf.String(), "event: deleted")
}
