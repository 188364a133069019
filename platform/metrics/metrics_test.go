package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserversRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition("Confirmed", "Amended")
	m.ObserveTransition("Confirmed", "Confirmed")
	m.ObserveEnqueue("amendment", nil)
	m.ObserveEnqueue("amendment", errors.New("down"))
	m.ObserveLockConflict()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("Confirmed", "Amended")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("Confirmed", "Confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsEnqueued.WithLabelValues("amendment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationEnqueueFailure.WithLabelValues("amendment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockConflicts))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var m *Registry
	assert.NotPanics(t, func() {
		m.ObserveTransition("a", "b")
		m.ObserveInvariantViolation("x")
		m.ObserveCacheMiss()
		m.ObserveDispatch("succeeded")
	})
}
