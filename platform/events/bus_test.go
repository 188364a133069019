package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sfr_ops_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	calls := 0
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls++
		return nil
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	}))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 2, calls)
}

func TestPublishRunsHandlersAsynchronously(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		wg.Done()
		return nil
	}))

	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestPublishSyncWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	assert.NoError(t, bus.PublishSync(context.Background(), pingEvent{}))
}

type pongEvent struct {
	BaseEvent
}

func (pongEvent) EventName() string { return "test.ping" }

func TestOnIgnoresOtherEventTypes(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var got []pingEvent
	bus.Subscribe("test.ping", On(func(_ context.Context, e pingEvent) error {
		got = append(got, e)
		return nil
	}))

	require.NoError(t, bus.PublishSync(context.Background(), pongEvent{BaseEvent: NewBaseEvent()}))
	require.NoError(t, bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()}))
	assert.Len(t, got, 1)
}
