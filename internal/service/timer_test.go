package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerRegistryFires(t *testing.T) {
	r := NewTimerRegistry()
	defer r.Stop()

	var fired int32
	r.Schedule("a1", 5*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, r.Active())
}

func TestTimerRegistryCancelPreventsFiring(t *testing.T) {
	r := NewTimerRegistry()
	defer r.Stop()

	var fired int32
	r.Schedule("a1", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	r.Cancel("a1")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.Equal(t, 0, r.Active())

	// cancelling again is harmless
	r.Cancel("a1")
}

func TestTimerRegistryScheduleReplacesExisting(t *testing.T) {
	r := NewTimerRegistry()
	defer r.Stop()

	var first, second int32
	r.Schedule("a1", time.Hour, func() { atomic.AddInt32(&first, 1) })
	r.Schedule("a1", 5*time.Millisecond, func() { atomic.AddInt32(&second, 1) })
	assert.Equal(t, 1, r.Active())

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&second) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
}

func TestTimerRegistryStopDisarmsAll(t *testing.T) {
	r := NewTimerRegistry()

	var fired int32
	r.Schedule("a1", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	r.Schedule("a2", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	r.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.Equal(t, 0, r.Active())
}
