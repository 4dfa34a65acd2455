package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsPostedWorkInOrder(t *testing.T) {
	loop := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	var got []int
	finished := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	loop.Post(func() { close(finished) })

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("posted work did not run")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestLoopSurvivesPanics(t *testing.T) {
	loop := NewLoop(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var ran atomic.Bool
	loop.Post(func() { panic("boom") })
	loop.Post(func() { ran.Store(true) })

	assert.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)
}

func TestLoopDropsWorkAfterStop(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, loop.Run(ctx))

	loop.Post(func() {})
	loop.Post(func() {})
}

func TestQueueDrainIncludesNestedPosts(t *testing.T) {
	var q Queue
	var got []string
	q.Post(func() {
		got = append(got, "outer")
		q.Post(func() { got = append(got, "inner") })
	})

	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, []string{"outer", "inner"}, got)
	assert.Equal(t, 0, q.Drain())
}
