package pubsub

import (
	"testing"

	"github.com/curaious/synergy/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActivity(t *testing.T) {
	id := uuid.New()

	event, err := parseActivity("tasks:INSERT:" + id.String())
	require.NoError(t, err)
	assert.Equal(t, ActivityEvent{Table: "tasks", Operation: "INSERT", ProjectID: id}, event)
	assert.False(t, event.ProjectGone())

	event, err = parseActivity("projects:DELETE:" + id.String())
	require.NoError(t, err)
	assert.True(t, event.ProjectGone())

	for _, bad := range []string{"", "tasks:INSERT", "tasks:INSERT:nope", ":INSERT:" + id.String()} {
		_, err := parseActivity(bad)
		assert.Error(t, err, bad)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	ps := NewPubSub(&config.Config{})
	defer ps.Stop()

	var a, b []ActivityEvent
	unsubA := ps.Subscribe(func(e ActivityEvent) { a = append(a, e) })
	ps.Subscribe(func(e ActivityEvent) { b = append(b, e) })

	first := ActivityEvent{Table: "comments", Operation: "INSERT", ProjectID: uuid.New()}
	ps.publish(first)

	unsubA()
	unsubA()

	second := ActivityEvent{Operation: OperationReload}
	ps.publish(second)

	assert.Equal(t, []ActivityEvent{first}, a)
	assert.Equal(t, []ActivityEvent{first, second}, b)
}
