package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestReadiness_NoChecks(t *testing.T) {
	status := NewReadiness("dev", time.Second).Check(context.Background())

	assert.True(t, status.Ready)
	assert.Empty(t, status.Checks)
	assert.Equal(t, "dev", status.Version)
}

func TestReadiness_AggregatesFailures(t *testing.T) {
	r := NewReadiness("dev", time.Second)
	r.Add("postgres", PingCheck(pinger{}))
	r.Add("redis", PingCheck(pinger{err: errors.New("dial tcp: refused")}))
	r.Add("broker", PingCheck(pinger{err: errors.New("no servers")}))

	status := r.Check(context.Background())

	assert.False(t, status.Ready)
	assert.Equal(t, "unready: broker, redis", status.Message)
	assert.True(t, status.Checks["postgres"].Ready)
	assert.Equal(t, "OK", status.Checks["postgres"].Message)
	assert.Equal(t, "dial tcp: refused", status.Checks["redis"].Message)
}

func TestReadiness_CheckTimeout(t *testing.T) {
	r := NewReadiness("dev", 20*time.Millisecond)
	r.Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := r.Check(context.Background())

	assert.False(t, status.Ready)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}

func TestReadiness_AddReplaces(t *testing.T) {
	r := NewReadiness("dev", time.Second)
	r.Add("router", func(context.Context) error { return errors.New("down") })
	r.Add("router", func(context.Context) error { return nil })

	assert.True(t, r.Check(context.Background()).Ready)
}

func TestRunningCheck(t *testing.T) {
	running := make(chan struct{})
	check := RunningCheck(func() chan struct{} { return running })

	assert.ErrorIs(t, check(context.Background()), ErrNotRunning)

	close(running)
	assert.NoError(t, check(context.Background()))
}
