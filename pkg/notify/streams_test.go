package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreams_IndependentKeys(t *testing.T) {
	clock := newFakeClock()
	base := clock.Now()
	sink := &recordingSink{}
	streams := NewStreamsWithClock(sink, 30*time.Minute, clock.Now)

	a := NewMissingDeploymentAlert("default", "api")
	b := NewMissingDeploymentAlert("default", "worker")

	require.NoError(t, streams.Send(context.Background(), a, b))
	assert.Len(t, sink.Calls(), 2)

	clock.Set(5*time.Minute, base)
	require.NoError(t, streams.Send(context.Background(), a))
	assert.Len(t, sink.Calls(), 2, "repeat of the same stream inside cooldown is dropped")

	c := NewMissingDeploymentAlert("kube-system", "api")
	require.NoError(t, streams.Send(context.Background(), c))
	assert.Len(t, sink.Calls(), 3, "a new stream is not affected by others")

	clock.Set(31*time.Minute, base)
	require.NoError(t, streams.Send(context.Background(), b))
	assert.Len(t, sink.Calls(), 4)
	assert.Equal(t, 3, streams.Len())
}

func TestStreams_GroupsSameKeyInOneCall(t *testing.T) {
	sink := &recordingSink{}
	streams := NewStreams(sink, time.Minute)

	first := Alert{Key: "x", Template: "t"}
	second := Alert{Key: "x", Template: "t"}

	require.NoError(t, streams.Send(context.Background(), first, second))
	calls := sink.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], 2)
}

func TestStreams_SuppressHookPropagates(t *testing.T) {
	sink := &recordingSink{}
	streams := NewStreams(sink, time.Hour)
	dropped := 0
	streams.OnSuppress = func(n int) { dropped += n }

	alert := Alert{Key: "dup"}
	require.NoError(t, streams.Send(context.Background(), alert))
	require.NoError(t, streams.Send(context.Background(), alert))

	assert.Equal(t, 1, dropped)
}
