package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActivityEventDefaults(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	event := newActivityEvent(ActivityEventLoginSuccess, ActorRef{Type: "user"}, "u1", nil, at)

	assert.NotNil(t, event.Metadata)
	assert.Equal(t, time.UTC, event.OccurredAt.Location())
	assert.True(t, event.OccurredAt.Equal(at))
}

func TestMultiActivitySink(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	failing := ActivitySinkFunc(func(context.Context, ActivityEvent) error {
		return errors.New("sink down")
	})

	sink := MultiActivitySink{first, nil, failing, second}
	err := sink.Record(context.Background(), ActivityEvent{EventType: ActivityEventUserDeleted})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Equal(t, []ActivityEventType{ActivityEventUserDeleted}, first.Types())
	assert.Equal(t, []ActivityEventType{ActivityEventUserDeleted}, second.Types())
}

func TestNilActivitySinkFunc(t *testing.T) {
	var f ActivitySinkFunc
	assert.NoError(t, f.Record(context.Background(), ActivityEvent{}))
}
