package server

import (
	"io"
	"math/rand/v2"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/magic-table/internal/apperrors"
	"github.com/palemoky/magic-table/internal/assets"
	"github.com/palemoky/magic-table/internal/config"
	"github.com/palemoky/magic-table/internal/game"
	"github.com/palemoky/magic-table/internal/game/deck"
	"github.com/palemoky/magic-table/internal/protocol"
)

const waitTimeout = 2 * time.Second

// mockConn 内存中的玩家连接，记录所有发出的消息
type mockConn struct {
	name string
	in   chan *protocol.Message

	mu     sync.Mutex
	sent   []*protocol.Message
	closes int
	onSend func(*protocol.Message)

	done      chan struct{}
	closeOnce sync.Once
}

func newMockConn(name string) *mockConn {
	return &mockConn{
		name: name,
		in:   make(chan *protocol.Message, 64),
		done: make(chan struct{}),
	}
}

func (c *mockConn) ReadMessage() (*protocol.Message, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *mockConn) Send(msg *protocol.Message) error {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return apperrors.ErrSlotClosed
	default:
	}
	c.sent = append(c.sent, msg)
	hook := c.onSend
	c.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return nil
}

// observe 每收到一条消息时调用 f
func (c *mockConn) observe(f func(*protocol.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSend = f
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *mockConn) RemoteAddr() string { return "mock/" + c.name }

// push 模拟客户端发送
func (c *mockConn) push(a protocol.Action) {
	c.in <- protocol.MustActionMessage(a)
}

func (c *mockConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// actions 已收到的消息，解析为动作
func (c *mockConn) actions(t *testing.T) []protocol.Action {
	t.Helper()
	c.mu.Lock()
	msgs := make([]*protocol.Message, len(c.sent))
	copy(msgs, c.sent)
	c.mu.Unlock()

	out := make([]protocol.Action, 0, len(msgs))
	for _, m := range msgs {
		a, err := protocol.ParseAction(m)
		if !assert.NoError(t, err) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ofType[T protocol.Action](actions []protocol.Action) []T {
	var out []T
	for _, a := range actions {
		if v, ok := a.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// waitFor 等待收到至少 n 条 T 类型的消息
func waitFor[T protocol.Action](t *testing.T, c *mockConn, n int) []T {
	t.Helper()
	var got []T
	require.Eventually(t, func() bool {
		got = ofType[T](c.actions(t))
		return len(got) >= n
	}, waitTimeout, 5*time.Millisecond, "%s 未收到 %d 条 %T", c.name, n, *new(T))
	return got
}

func forestDeck(n int) deck.Deck {
	return deck.Deck{Name: "green", Cards: []deck.Entry{{Name: "Forest", Quantity: n}}}
}

// testServer 带固定随机源的会话，卡图端口监听在随机端口
type testServer struct {
	*Server
	root string

	mu     sync.Mutex
	assets []net.Listener
}

func newTestServer(t *testing.T, players int, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	return newTestServerWith(t, players, nil, mutate...)
}

// newTestServerWith 附加额外的服务器选项
func newTestServerWith(t *testing.T, players int, extra []Option, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Players = players
	cfg.Game.MinDeckSize = 1
	for _, m := range mutate {
		m(cfg)
	}

	root := t.TempDir()
	cards := filepath.Join(root, "cards")
	require.NoError(t, os.MkdirAll(cards, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cards, "Forest.jpg"), []byte("forest"), 0o644))
	catalog, err := assets.NewCatalog(cards, filepath.Join(root, "downloaded"))
	require.NoError(t, err)

	ts := &testServer{root: root}
	opts := []Option{
		WithCatalog(catalog),
		WithGameOptions(game.WithRand(rand.New(rand.NewPCG(7, 11)))),
		WithAssetListen(func(int) (net.Listener, error) {
			l, err := net.Listen("tcp", "127.0.0.1:0")
			if err == nil {
				ts.mu.Lock()
				ts.assets = append(ts.assets, l)
				ts.mu.Unlock()
			}
			return l, err
		}),
	}
	s, err := NewServer(cfg, append(opts, extra...)...)
	require.NoError(t, err)
	ts.Server = s

	s.startCoordinator()
	t.Cleanup(s.Close)
	return ts
}

// assetAddr 第 i 个打开的卡图端口地址
func (ts *testServer) assetAddr(t *testing.T, i int) string {
	t.Helper()
	var addr string
	require.Eventually(t, func() bool {
		ts.mu.Lock()
		defer ts.mu.Unlock()
		if len(ts.assets) <= i {
			return false
		}
		addr = ts.assets[i].Addr().String()
		return true
	}, waitTimeout, 5*time.Millisecond)
	return addr
}

// join 以给定名字与牌组完成握手
func (ts *testServer) join(t *testing.T, name string, d deck.Deck) *mockConn {
	t.Helper()
	c := newMockConn(name)
	c.push(&protocol.DeckCheckPayload{Owner: name, Deck: d})
	ts.offer(t, c)
	waitFor[*protocol.WelcomePayload](t, c, 1)
	return c
}

// offer 把连接交给协调协程
func (ts *testServer) offer(t *testing.T, c *mockConn) {
	t.Helper()
	select {
	case ts.accept <- c:
	case <-time.After(waitTimeout):
		t.Fatalf("协调协程未接受连接 %s", c.name)
	}
}

// start 两名玩家入座并就绪，等待发牌完成
func (ts *testServer) start(t *testing.T, decks ...deck.Deck) []*mockConn {
	t.Helper()
	conns := make([]*mockConn, len(decks))
	for i, d := range decks {
		conns[i] = ts.join(t, string(rune('a'+i))+"player", d)
	}
	for _, c := range conns {
		c.push(&protocol.ReadyPayload{})
	}

	hand := ts.config.Game.HandSize
	last := conns[len(conns)-1]
	require.Eventually(t, func() bool {
		n := 0
		for _, m := range ofType[*protocol.MovePayload](last.actions(t)) {
			if m.Requestor == len(conns)-1 {
				n++
			}
		}
		return n >= min(hand, decks[len(decks)-1].Size())
	}, waitTimeout, 5*time.Millisecond, "发牌未完成")
	require.Eventually(t, func() bool { return ts.currentGame() != nil }, waitTimeout, 5*time.Millisecond)
	return conns
}

// barrier 发送一条拖动并等待其被转发，确保之前的消息已处理完
func barrier(t *testing.T, from *mockConn, observer *mockConn, seq int) {
	t.Helper()
	id := "barrier-" + string(rune('0'+seq))
	from.push(&protocol.DragPayload{CardID: id})
	require.Eventually(t, func() bool {
		for _, d := range ofType[*protocol.DragPayload](observer.actions(t)) {
			if d.CardID == id {
				return true
			}
		}
		return false
	}, waitTimeout, 5*time.Millisecond)
}
