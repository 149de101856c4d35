package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeliversAndUnsubscribes(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	unsubscribe := d.Subscribe(EventStorageChanged, func(_ context.Context, e Event) error {
		got = append(got, e.Key)
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventStorageChanged, Key: "token"}))
	unsubscribe()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventStorageChanged, Key: "userType"}))

	assert.Equal(t, []string{"token"}, got)
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	calls := 0
	d.Subscribe(EventStorageChanged, func(context.Context, Event) error { calls++; return boom })
	d.Subscribe(EventStorageChanged, func(context.Context, Event) error { calls++; return nil })

	err := d.Publish(context.Background(), Event{Type: EventStorageChanged})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}
