package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/curaious/synergy/internal/config"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Channel is the postgres NOTIFY channel the activity triggers publish on.
const Channel = "project_activity"

// OperationReload is delivered to every subscriber after the listener
// reconnects, since notifications may have been missed while it was down.
const OperationReload = "RELOAD"

// ActivityEvent is one committed change to a project or something in it.
type ActivityEvent struct {
	Table     string    `json:"table"`
	Operation string    `json:"operation"` // INSERT, UPDATE, DELETE or RELOAD
	ProjectID uuid.UUID `json:"project_id"`
}

// ProjectGone reports whether the event is the project row itself being deleted.
func (e ActivityEvent) ProjectGone() bool {
	return e.Table == "projects" && e.Operation == "DELETE"
}

// ActivityHandler receives events. It is called on the listener goroutine and
// must not block.
type ActivityHandler func(event ActivityEvent)

// PubSub fans out PostgreSQL LISTEN/NOTIFY project activity to subscribers.
type PubSub struct {
	connStr  string
	listener *pq.Listener
	handlers map[uint64]ActivityHandler
	nextID   uint64
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewPubSub(conf *config.Config) *PubSub {
	ctx, cancel := context.WithCancel(context.Background())

	return &PubSub{
		connStr:  conf.DatabaseURL(),
		handlers: make(map[uint64]ActivityHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe registers handler and returns a func that removes it.
func (ps *PubSub) Subscribe(handler ActivityHandler) (unsubscribe func()) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	id := ps.nextID
	ps.nextID++
	ps.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			ps.mu.Lock()
			delete(ps.handlers, id)
			ps.mu.Unlock()
		})
	}
}

// Start begins listening for notifications
func (ps *PubSub) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("PubSub listener error", slog.Any("error", err))
		}
		if ev == pq.ListenerEventConnectionAttemptFailed {
			slog.Warn("PubSub connection attempt failed, will retry")
		}
		if ev == pq.ListenerEventDisconnected {
			slog.Warn("PubSub disconnected, will attempt reconnect")
		}
		if ev == pq.ListenerEventReconnected {
			slog.Info("PubSub reconnected, asking subscribers to reload")
			ps.publish(ActivityEvent{Operation: OperationReload})
		}
	}

	ps.listener = pq.NewListener(ps.connStr, 10*time.Second, time.Minute, reportProblem)

	if err := ps.listener.Listen(Channel); err != nil {
		return fmt.Errorf("failed to listen on %s channel: %w", Channel, err)
	}

	slog.Info("PubSub started listening for project activity")

	go ps.processNotifications()

	return nil
}

// Stop closes the listener
func (ps *PubSub) Stop() {
	ps.cancel()
	if ps.listener != nil {
		ps.listener.Close()
	}
	slog.Info("PubSub stopped")
}

func (ps *PubSub) processNotifications() {
	for {
		select {
		case <-ps.ctx.Done():
			return
		case notification := <-ps.listener.Notify:
			if notification == nil {
				// Connection lost, will be handled by reportProblem callback
				continue
			}

			event, err := parseActivity(notification.Extra)
			if err != nil {
				slog.Warn("Invalid notification payload", slog.String("payload", notification.Extra), slog.Any("error", err))
				continue
			}

			slog.Debug("Received project activity",
				slog.String("table", event.Table),
				slog.String("operation", event.Operation),
				slog.String("project_id", event.ProjectID.String()))

			ps.publish(event)
		}
	}
}

func (ps *PubSub) publish(event ActivityEvent) {
	ps.mu.RLock()
	handlers := make([]ActivityHandler, 0, len(ps.handlers))
	for _, h := range ps.handlers {
		handlers = append(handlers, h)
	}
	ps.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// parseActivity parses "table:operation:project_id".
func parseActivity(payload string) (ActivityEvent, error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return ActivityEvent{}, fmt.Errorf("expected table:operation:project_id")
	}

	projectID, err := uuid.Parse(parts[2])
	if err != nil {
		return ActivityEvent{}, fmt.Errorf("invalid project id: %w", err)
	}

	return ActivityEvent{Table: parts[0], Operation: parts[1], ProjectID: projectID}, nil
}
