package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"sfr_ops_backend/internal/events"
	"sfr_ops_backend/internal/notification/outbox"
	"sfr_ops_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTimerPayloadRejectsMissingRequest(t *testing.T) {
	_, err := ParseStatusTimerPayload(asynq.NewTask(TaskStatusTimer, []byte(`{}`)))
	require.Error(t, err)

	task, err := NewStatusTimerTask(StatusTimerPayload{RequestID: 11})
	require.NoError(t, err)
	payload, err := ParseStatusTimerPayload(task)
	require.NoError(t, err)
	assert.Equal(t, int64(11), payload.RequestID)
}

func TestStatusTimerTaskIDIsStablePerInstant(t *testing.T) {
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, statusTimerTaskID(11, at), statusTimerTaskID(11, at.In(time.FixedZone("X", 3600))))
	assert.NotEqual(t, statusTimerTaskID(11, at), statusTimerTaskID(12, at))
}

func TestWorkerPublishesBusEvents(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Discard())
	var got []events.Event
	record := events.HandlerFunc(func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), record)
	bus.Subscribe(events.SFRStatusTimerFired{}.EventName(), record)
	w := &Worker{bus: bus, log: logger.Discard()}

	id := uuid.New()
	due, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{OutboxID: id.String(), RequestID: 11})
	require.NoError(t, err)
	require.NoError(t, w.handleNotificationOutboxDue(context.Background(), due))

	timer, err := NewStatusTimerTask(StatusTimerPayload{RequestID: 11})
	require.NoError(t, err)
	require.NoError(t, w.handleStatusTimer(context.Background(), timer))

	require.Len(t, got, 2)
	assert.Equal(t, id, got[0].(events.NotificationOutboxDue).OutboxID)
	assert.Equal(t, int64(11), got[1].(events.SFRStatusTimerFired).RequestID)
}

func TestWorkerSkipsRetryForMalformedPayload(t *testing.T) {
	w := &Worker{bus: events.NewInMemoryBus(logger.Discard()), log: logger.Discard()}
	err := w.handleNotificationOutboxDue(context.Background(), asynq.NewTask(TaskNotificationOutboxDue, []byte(`{"outboxId":"nope"}`)))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeClaimer struct {
	records []outbox.Record
	pending map[uuid.UUID]string
}

func (f *fakeClaimer) ClaimPending(context.Context, int) ([]outbox.Record, error) {
	out := f.records
	f.records = nil
	return out, nil
}

func (f *fakeClaimer) MarkPending(_ context.Context, id uuid.UUID, lastError *string) error {
	f.pending[id] = *lastError
	return nil
}

type fakeEnqueuer struct {
	fail  map[string]bool
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	p, _ := ParseNotificationOutboxDuePayload(task)
	if f.fail[p.OutboxID] {
		return nil, errors.New("redis down")
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestDispatchOnceReturnsFailedRowsToPending(t *testing.T) {
	ok, bad := uuid.New(), uuid.New()
	repo := &fakeClaimer{
		records: []outbox.Record{{ID: ok, RequestID: 11}, {ID: bad, RequestID: 12}},
		pending: map[uuid.UUID]string{},
	}
	client := &fakeEnqueuer{fail: map[string]bool{bad.String(): true}}
	d := &NotificationOutboxDispatcher{client: client, queue: "default", repo: repo, log: logger.Discard()}

	assert.Equal(t, 1, d.dispatchOnce(context.Background()))
	require.Len(t, client.tasks, 1)
	assert.Equal(t, TaskNotificationOutboxDue, client.tasks[0].Type())
	assert.Equal(t, "redis down", repo.pending[bad])
	assert.NotContains(t, repo.pending, ok)
}

func TestClientStatusTimersAreIdempotentAndCancelable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newClient(asynq.RedisClientOpt{Addr: mr.Addr()}, "default")
	t.Cleanup(func() { _ = c.Close() })
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	at := []time.Time{now.Add(-time.Hour), now.Add(2 * time.Hour), now.Add(6 * time.Hour)}
	ctx := context.Background()

	require.NoError(t, c.ScheduleStatusTimers(ctx, 11, at))
	require.NoError(t, c.ScheduleStatusTimers(ctx, 11, at))

	scheduled, err := c.inspector.ListScheduledTasks("default")
	require.NoError(t, err)
	assert.Len(t, scheduled, 2)

	require.NoError(t, c.CancelStatusTimers(ctx, 11, at))
	scheduled, err = c.inspector.ListScheduledTasks("default")
	require.NoError(t, err)
	assert.Empty(t, scheduled)
}
