package cron

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) SweepExpired(ctx context.Context) int {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return -1
	}
	return 2
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_StartRegistersSweep(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, "", testLogger())

	require.NoError(t, s.Start())
	defer s.Stop()

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Next.IsZero())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "every five minutes", testLogger())
	assert.Error(t, s.Start())
}

func TestScheduler_RunNow(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, "@every 1h", testLogger())

	s.RunNow()
	assert.Equal(t, int32(1), sweeper.calls.Load())
}
