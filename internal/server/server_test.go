package server

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/magic-table/internal/config"
	"github.com/palemoky/magic-table/internal/game/deck"
	"github.com/palemoky/magic-table/internal/protocol"
)

func TestServer_TwoPlayerStart(t *testing.T) {
	ts := newTestServer(t, 2)
	conns := ts.start(t, forestDeck(20), forestDeck(20))

	for viewer, c := range conns {
		actions := c.actions(t)

		// 从全量卡牌列表开始截取
		start := -1
		for i, a := range actions {
			if _, ok := a.(*protocol.FullCardListPayload); ok {
				require.Equal(t, -1, start, "只应收到一次全量卡牌列表")
				start = i
			}
		}
		require.NotEqual(t, -1, start)
		list := actions[start].(*protocol.FullCardListPayload)
		assert.Len(t, list.Cards, 40)

		rest := actions[start+1:]
		require.Len(t, rest, 2*(1+7))
		for owner := range 2 {
			block := rest[owner*8 : (owner+1)*8]
			shuffle, ok := block[0].(*protocol.ShufflePayload)
			require.True(t, ok)
			assert.Equal(t, owner, shuffle.Owner)

			for _, a := range block[1:] {
				move, ok := a.(*protocol.MovePayload)
				require.True(t, ok)
				assert.Equal(t, protocol.ZoneTopLibrary, move.Source)
				assert.Equal(t, protocol.ZoneHand, move.Destination)
				assert.Equal(t, owner, move.Requestor)
				if owner == viewer {
					assert.NotNil(t, move.CardID, "自己的抓牌可见")
				} else {
					assert.Nil(t, move.CardID, "对手的抓牌不可见")
				}
			}
		}
	}

	require.Eventually(t, func() bool { return ts.Status() == StatusActive }, waitTimeout, 5*time.Millisecond)
	snap := ts.currentGame().Snapshot()
	for p := range 2 {
		assert.Len(t, snap.Players[p].Hand, 7)
		assert.Len(t, snap.Players[p].Library, 13)
	}
}

func TestServer_HandshakeExchangesDecks(t *testing.T) {
	ts := newTestServer(t, 2)

	a := ts.join(t, "alice", forestDeck(10))
	welcome := waitFor[*protocol.WelcomePayload](t, a, 1)[0]
	assert.Equal(t, protocol.WelcomePayload{
		Index:     0,
		Name:      "alice",
		AssetPort: ts.config.Server.AssetPort(0),
		Players:   2,
	}, *welcome)

	b := ts.join(t, "alice", forestDeck(12))
	welcome = waitFor[*protocol.WelcomePayload](t, b, 1)[0]
	assert.Equal(t, "alice-", welcome.Name, "重名追加后缀")
	assert.Equal(t, 1, welcome.Index)

	// 先到者收到新玩家的牌组，新玩家收到先到者和自己的牌组
	checks := waitFor[*protocol.DeckCheckPayload](t, a, 2)
	assert.Equal(t, []string{"alice", "alice-"}, []string{checks[0].Owner, checks[1].Owner})
	checks = waitFor[*protocol.DeckCheckPayload](t, b, 2)
	assert.Equal(t, []string{"alice", "alice-"}, []string{checks[0].Owner, checks[1].Owner})
	assert.Equal(t, 12, checks[1].Deck.Size())
}

func TestServer_ReadyBarrierRequiresEveryone(t *testing.T) {
	ts := newTestServer(t, 2)

	a := ts.join(t, "alice", forestDeck(10))
	a.push(&protocol.ReadyPayload{})
	require.Eventually(t, func() bool {
		ts.Server.mu.Lock()
		defer ts.Server.mu.Unlock()
		return ts.slots[0].ready
	}, waitTimeout, 5*time.Millisecond)

	// 新玩家加入会重置先到者的就绪状态
	b := ts.join(t, "bob", forestDeck(10))
	b.push(&protocol.ReadyPayload{})
	barrier(t, b, a, 1)

	assert.Never(t, func() bool { return ts.currentGame() != nil }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, StatusAdmitting, ts.Status(), "握手已结束但尚未开局")
	assert.Empty(t, ofType[*protocol.ReadyPayload](b.actions(t)), "就绪消息不转发")

	a.push(&protocol.ReadyPayload{})
	waitFor[*protocol.FullCardListPayload](t, a, 1)
	waitFor[*protocol.FullCardListPayload](t, b, 1)
}

func TestServer_InvalidDeckRetriesSameSlot(t *testing.T) {
	ts := newTestServer(t, 1, func(c *config.Config) { c.Game.MinDeckSize = 10 })

	bad := newMockConn("bad")
	bad.push(&protocol.DeckCheckPayload{Owner: "bad", Deck: forestDeck(3)})
	ts.offer(t, bad)

	errs := waitFor[*protocol.ErrorPayload](t, bad, 1)
	assert.Equal(t, protocol.ErrCodeInvalidDeck, errs[0].Code)
	require.Eventually(t, bad.isClosed, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, StatusAdmitting, ts.Status())

	good := ts.join(t, "good", forestDeck(10))
	welcome := waitFor[*protocol.WelcomePayload](t, good, 1)[0]
	assert.Equal(t, 0, welcome.Index)
}

func TestServer_RejectsOversizedDeck(t *testing.T) {
	ts := newTestServer(t, 1, func(c *config.Config) { c.Game.MaxDeckSize = 60 })

	huge := newMockConn("huge")
	huge.push(&protocol.DeckCheckPayload{Owner: "huge", Deck: forestDeck(1 << 40)})
	ts.offer(t, huge)

	errs := waitFor[*protocol.ErrorPayload](t, huge, 1)
	assert.Equal(t, protocol.ErrCodeInvalidDeck, errs[0].Code)
	assert.Contains(t, errs[0].Message, "60")
	require.Eventually(t, huge.isClosed, waitTimeout, 5*time.Millisecond)
	assert.Empty(t, ofType[*protocol.WelcomePayload](huge.actions(t)))

	good := ts.join(t, "good", forestDeck(60))
	assert.Equal(t, 0, waitFor[*protocol.WelcomePayload](t, good, 1)[0].Index)
}

func TestServer_HandshakeAttemptsAreBounded(t *testing.T) {
	ts := newTestServer(t, 2, func(c *config.Config) { c.Server.MaxHandshakeAttempts = 2 })

	for range 2 {
		c := newMockConn("bad")
		c.push(&protocol.DragPayload{CardID: "x"})
		ts.offer(t, c)
		waitFor[*protocol.ErrorPayload](t, c, 1)
	}

	select {
	case <-ts.Done():
	case <-time.After(waitTimeout):
		t.Fatal("超过重试上限后会话应关闭")
	}
	assert.Equal(t, StatusDead, ts.Status())
}

func TestServer_FetchesMissingCards(t *testing.T) {
	ts := newTestServer(t, 1)

	d := deck.Deck{Name: "mixed", Cards: []deck.Entry{
		{Name: "Forest", Quantity: 4},
		{Name: "Island", Quantity: 4},
	}}
	c := newMockConn("alice")
	c.push(&protocol.DeckCheckPayload{Owner: "alice", Deck: d})
	ts.offer(t, c)

	req := waitFor[*protocol.CardRequestPayload](t, c, 1)[0]
	assert.Equal(t, "Island", req.Name)

	conn, err := net.Dial("tcp", ts.assetAddr(t, 0))
	require.NoError(t, err)
	_, err = conn.Write([]byte("island-bytes"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	waitFor[*protocol.WelcomePayload](t, c, 1)
	require.Eventually(t, func() bool {
		_, ok := ts.catalog.Find("island")
		return ok
	}, waitTimeout, 5*time.Millisecond)
}

func TestServer_DeadSlotBeforeStart(t *testing.T) {
	ts := newTestServer(t, 2)

	a := ts.join(t, "alice", forestDeck(10))
	a.push(&protocol.DisconnectPayload{})
	require.Eventually(t, func() bool { return !ts.slotAt(0).alive.Load() }, waitTimeout, 5*time.Millisecond)

	b := ts.join(t, "bob", forestDeck(10))
	notices := waitFor[*protocol.DisconnectPayload](t, b, 1)
	require.NotNil(t, notices[0].Player)
	assert.Equal(t, 0, *notices[0].Player)

	// 只需存活的玩家就绪即可开局，离开的玩家被回收
	b.push(&protocol.ReadyPayload{})
	waitFor[*protocol.FullCardListPayload](t, b, 1)
	moves := waitFor[*protocol.MovePayload](t, b, 7)
	for _, m := range moves {
		assert.Equal(t, 1, m.Requestor)
	}
	require.Eventually(t, func() bool { return ts.currentGame() != nil }, waitTimeout, 5*time.Millisecond)
	g := ts.currentGame()
	assert.False(t, g.Alive(0))
	assert.Empty(t, g.Snapshot().Players[0].Hand)
}

func TestServer_GamePublishedAfterDeal(t *testing.T) {
	ts := newTestServer(t, 2)
	a := ts.join(t, "alice", forestDeck(10))
	b := ts.join(t, "bob", forestDeck(10))

	var (
		mu   sync.Mutex
		seen []bool
	)
	b.observe(func(msg *protocol.Message) {
		switch msg.Type {
		case protocol.MsgFullCardList, protocol.MsgShuffle, protocol.MsgMove:
			published := ts.currentGame() != nil
			mu.Lock()
			seen = append(seen, published)
			mu.Unlock()
		}
	})

	a.push(&protocol.ReadyPayload{})
	b.push(&protocol.ReadyPayload{})
	require.Eventually(t, func() bool { return ts.currentGame() != nil }, waitTimeout, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1+2*(1+7))
	for i, published := range seen {
		assert.False(t, published, "发牌第 %d 条消息时对局已公开", i)
	}
}

func TestServer_MoveDuringDealIsDropped(t *testing.T) {
	ts := newTestServer(t, 2)
	a := ts.join(t, "alice", forestDeck(10))
	b := ts.join(t, "bob", forestDeck(10))

	// 收到全量卡牌列表时立即尝试抓牌，并等监听协程处理完再继续发牌
	var once sync.Once
	a.observe(func(msg *protocol.Message) {
		if msg.Type != protocol.MsgFullCardList {
			return
		}
		once.Do(func() {
			a.push(&protocol.MovePayload{Source: protocol.ZoneTopLibrary, Destination: protocol.ZoneHand})
			a.push(&protocol.DragPayload{CardID: "mid-deal"})
			assert.Eventually(t, func() bool {
				for _, d := range ofType[*protocol.DragPayload](b.actions(t)) {
					if d.CardID == "mid-deal" {
						return true
					}
				}
				return false
			}, waitTimeout, 5*time.Millisecond)
		})
	})

	a.push(&protocol.ReadyPayload{})
	b.push(&protocol.ReadyPayload{})
	require.Eventually(t, func() bool { return ts.currentGame() != nil }, waitTimeout, 5*time.Millisecond)

	snap := ts.currentGame().Snapshot()
	assert.Len(t, snap.Players[0].Hand, 7, "发牌期间的操作不生效")
	assert.Len(t, snap.Players[0].Library, 3)
}

func TestServer_StatusLifecycle(t *testing.T) {
	ts := newTestServer(t, 2)
	assert.Equal(t, StatusAdmitting, ts.Status())

	conns := ts.start(t, forestDeck(10), forestDeck(10))
	require.Eventually(t, func() bool { return ts.Status() == StatusActive }, waitTimeout, 5*time.Millisecond)

	conns[0].push(&protocol.DisconnectPayload{})
	notice := waitFor[*protocol.DisconnectPayload](t, conns[1], 1)[0]
	require.NotNil(t, notice.Player)
	assert.Equal(t, 0, *notice.Player)
	assert.Equal(t, StatusActive, ts.Status())

	_ = conns[1].Close() // 连接断开
	select {
	case <-ts.Done():
	case <-time.After(waitTimeout):
		t.Fatal("最后一名玩家离开后会话应关闭")
	}
	assert.Equal(t, StatusDead, ts.Status())
}

func TestServer_DisconnectIsIdempotent(t *testing.T) {
	ts := newTestServer(t, 3)
	conns := ts.start(t, forestDeck(10), forestDeck(10), forestDeck(10))

	ts.disconnect(0)
	ts.disconnect(0)
	barrier(t, conns[1], conns[2], 1)

	for _, c := range conns[1:] {
		assert.Len(t, ofType[*protocol.DisconnectPayload](c.actions(t)), 1)
	}
	conns[0].mu.Lock()
	assert.Equal(t, 1, conns[0].closes)
	conns[0].mu.Unlock()
	assert.False(t, ts.currentGame().Alive(0))
}

func TestSlot_TeardownIsIdempotent(t *testing.T) {
	t.Parallel()

	c := newMockConn("a")
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	sl := newSlot(0, "a", forestDeck(1), c, l)
	sl.alive.Store(true)

	assert.True(t, sl.teardown())
	assert.False(t, sl.teardown())
	assert.Nil(t, sl.connection())
	assert.Nil(t, sl.assetListener())
	assert.False(t, sl.alive.Load())
	assert.Equal(t, 1, c.closes)

	_, err = net.Dial("tcp", l.Addr().String())
	assert.Error(t, err, "卡图端口已关闭")
}

func TestServer_CloseNotifiesEveryone(t *testing.T) {
	ts := newTestServer(t, 2)
	conns := ts.start(t, forestDeck(10), forestDeck(10))

	ts.Close()
	ts.Close()

	for _, c := range conns {
		notices := ofType[*protocol.DisconnectPayload](c.actions(t))
		require.Len(t, notices, 1)
		assert.True(t, notices[0].All)
		assert.True(t, c.isClosed())
	}
	assert.Equal(t, StatusDead, ts.Status())
}
