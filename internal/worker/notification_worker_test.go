package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/telepredict/internal/events"
	"github.com/spec-kit/telepredict/internal/service"
)

type fakeSyncer struct {
	startErr error
	started  atomic.Int32
	tornDown atomic.Int32
}

func (f *fakeSyncer) StartSync(context.Context) error {
	f.started.Add(1)
	return f.startErr
}

func (f *fakeSyncer) Teardown() { f.tornDown.Add(1) }

func TestStartSessionSyncTearsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &fakeSyncer{}

	done, err := StartSessionSync(ctx, s, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.started.Load())
	assert.EqualValues(t, 0, s.tornDown.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync worker did not stop")
	}
	assert.EqualValues(t, 1, s.tornDown.Load())
}

func TestStartSessionSyncReportsStartError(t *testing.T) {
	s := &fakeSyncer{startErr: errors.New("torn down")}
	done, err := StartSessionSync(context.Background(), s, nil)
	require.Error(t, err)
	assert.Nil(t, done)
}

func TestNotificationWorkerLogsServiceEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	svc := service.NewNotificationService(dispatcher, zap.New(core))
	StartNotificationWorker(svc)
	StartNotificationWorker(nil)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventStaffAdded,
		Subject: "1001",
		Payload: map[string]any{"staff_id": "s1"},
	}))
	entries := logs.FilterMessage(string(events.EventStaffAdded)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "1001", entries[0].ContextMap()["subject"])

	svc.Close()
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventStaffAdded}))
	assert.Equal(t, 1, logs.FilterMessage(string(events.EventStaffAdded)).Len())
}
