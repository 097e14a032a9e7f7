package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/magic-table/internal/protocol"
	"github.com/palemoky/magic-table/internal/storage"
)

func TestServer_SessionRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	store := storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	ts := newTestServerWith(t, 2, []Option{WithRedisStore(store)})
	conns := ts.start(t, forestDeck(20), forestDeck(20))

	var rec *storage.SessionData
	require.Eventually(t, func() bool {
		var err error
		rec, err = store.CurrentSession(ctx)
		return err == nil && rec != nil && rec.Status == StatusActive.String()
	}, waitTimeout, 5*time.Millisecond)

	assert.Equal(t, ts.ID(), rec.ID)
	require.Len(t, rec.Slots, 2)
	for i, sd := range rec.Slots {
		assert.Equal(t, i, sd.Index)
		assert.True(t, sd.Alive)
		assert.Equal(t, 20, sd.Cards)
		assert.Equal(t, 20, sd.Health)
		assert.Equal(t, 7, sd.Hand)
		assert.Equal(t, 13, sd.Library)
	}

	conns[1].push(&protocol.DisconnectPayload{})
	require.Eventually(t, func() bool {
		rec, _ = store.CurrentSession(ctx)
		return rec != nil && len(rec.Slots) == 2 && !rec.Slots[1].Alive
	}, waitTimeout, 5*time.Millisecond)
	assert.Zero(t, rec.Slots[1].Hand, "断开玩家的手牌被回收")
	assert.Equal(t, 7, rec.Slots[0].Hand)
}
