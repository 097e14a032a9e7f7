package server

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/palemoky/magic-table/internal/game/deck"
	"github.com/palemoky/magic-table/internal/protocol"
)

// slot 一个座位。座位只会原地拆除，不会被移除，下标在会话内保持稳定。
type slot struct {
	index     int
	name      string
	deck      deck.Deck
	deckCheck *protocol.DeckCheckPayload

	ready bool // 由 Server.mu 保护

	// alive 监听协程是否仍在运行
	alive atomic.Bool

	mu     sync.Mutex
	conn   PlayerConn
	assets net.Listener
}

func newSlot(index int, name string, d deck.Deck, conn PlayerConn, assets net.Listener) *slot {
	return &slot{
		index:     index,
		name:      name,
		deck:      d,
		deckCheck: &protocol.DeckCheckPayload{Owner: name, Deck: d},
		conn:      conn,
		assets:    assets,
	}
}

func (sl *slot) connection() PlayerConn {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.conn
}

func (sl *slot) assetListener() net.Listener {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.assets
}

// teardown 关闭连接与卡图端口并清空句柄。
// 只有第一次调用返回 true，重复调用没有任何效果。
func (sl *slot) teardown() bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.alive.Store(false)
	if sl.conn == nil {
		return false
	}
	_ = sl.conn.Close()
	if sl.assets != nil {
		_ = sl.assets.Close()
	}
	sl.conn, sl.assets = nil, nil
	return true
}
