package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueEvents(t *testing.T, env *testEnv, n int) {
	t.Helper()
	ctx := context.Background()
	err := env.uow.Do(ctx, func(r repository.Repositories) error {
		for i := 0; i < n; i++ {
			if err := enqueueEvent(ctx, r, 42, model.EventMessagePosted, map[string]int{"seq": i}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRelayPublishesInOrder(t *testing.T) {
	env := newTestEnv(t)
	queueEvents(t, env, 3)

	published, err := env.relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, published)

	events := env.broadcaster.Events()
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.EqualValues(t, 42, ev.NegotiationID)
		assert.JSONEq(t, `{"seq":`+string(rune('0'+i))+`}`, string(ev.Data))
	}

	published, err = env.relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
}

func TestRelayRetriesAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	queueEvents(t, env, 2)

	env.broadcaster.Fail(errors.New("redis down"))
	published, err := env.relay.Flush(context.Background())
	require.Error(t, err)
	assert.Zero(t, published)

	pending, err := env.repos.Events.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)

	env.broadcaster.Fail(nil)
	published, err = env.relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
}

func TestRelayDropsPoisonEvents(t *testing.T) {
	env := newTestEnv(t)
	queueEvents(t, env, 1)
	relay := NewEventRelay(env.repos.Events, env.broadcaster, zerolog.Nop())

	env.broadcaster.Fail(errors.New("rejected"))
	for i := 0; i < maxPublishAttempts; i++ {
		_, err := relay.Flush(context.Background())
		require.Error(t, err)
	}
	published, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)

	pending, err := env.repos.Events.ListPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
