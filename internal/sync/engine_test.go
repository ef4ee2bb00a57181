package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineTicks(t *testing.T) {
	var ticks atomic.Int32
	e := NewEngine(10*time.Millisecond, func() { ticks.Add(1) }, nil)

	e.Start(context.Background())
	require.True(t, e.Running())
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, 5*time.Millisecond)

	e.Stop()
	assert.False(t, e.Running())
	after := ticks.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no ticks after Stop")
}

func TestEngineStartIsIdempotent(t *testing.T) {
	var ticks atomic.Int32
	e := NewEngine(time.Hour, func() { ticks.Add(1) }, nil)

	e.Start(context.Background())
	e.Start(context.Background())
	e.Stop()
	e.Stop()
	assert.False(t, e.Running())
}

func TestEngineDisabled(t *testing.T) {
	e := NewEngine(0, func() {}, nil)
	e.Start(context.Background())
	assert.False(t, e.Running())
	e.Stop()
}

func TestEngineStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewEngine(time.Hour, func() {}, nil)
	e.Start(ctx)
	cancel()
	e.Stop()
}
