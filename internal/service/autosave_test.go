package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutosaverPersistsHighestSequence(t *testing.T) {
	svc, store, _, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	saver := NewAutosaver(svc, 4, 16)
	done := make(chan struct{})
	go func() {
		saver.Run()
		close(done)
	}()

	// same question delivered out of order across requests
	require.True(t, saver.Enqueue(a.ID, "q1", "A", 1))
	require.True(t, saver.Enqueue(a.ID, "q1", "C", 3))
	require.True(t, saver.Enqueue(a.ID, "q1", "B", 2))
	require.True(t, saver.Enqueue(a.ID, "q2", "Paris", 1))

	saver.Stop()
	<-done

	answers, err := store.ListAnswers(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", answers["q1"])
	assert.Equal(t, "Paris", answers["q2"])
}

func TestAutosaverDropsWhenQueueFull(t *testing.T) {
	svc, _, _, _ := newEngine(t)

	// single shard, single slot, no worker draining it
	saver := NewAutosaver(svc, 1, 1)

	assert.True(t, saver.Enqueue("a", "q", "v", 1))
	assert.False(t, saver.Enqueue("a", "q", "v", 2))
}

func TestAutosaverIgnoresClosedAttempts(t *testing.T) {
	svc, store, clock, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)
	clock.Advance(31 * time.Minute)

	saver := NewAutosaver(svc, 2, 8)
	done := make(chan struct{})
	go func() {
		saver.Run()
		close(done)
	}()

	require.True(t, saver.Enqueue(a.ID, "q1", "B", 1))
	saver.Stop()
	<-done

	answers, err := store.ListAnswers(a.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestAutosaverStopDrainsQueuedJobs(t *testing.T) {
	svc, store, _, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	saver := NewAutosaver(svc, 2, 64)
	done := make(chan struct{})
	go func() {
		saver.Run()
		close(done)
	}()

	for i := 1; i <= 20; i++ {
		require.True(t, saver.Enqueue(a.ID, fmt.Sprintf("q%d", i), "v", 1))
	}

	// Stop closes the queues; everything accepted so far must still be written
	saver.Stop()
	<-done

	answers, err := store.ListAnswers(a.ID)
	require.NoError(t, err)
	assert.Len(t, answers, 20)
}
