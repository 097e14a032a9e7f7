// Package server 实现对局会话：按座位依次接入玩家、握手、等待全员就绪、发牌，
// 之后由每个座位的监听协程转发经过校验的状态变化。
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palemoky/magic-table/internal/apperrors"
	"github.com/palemoky/magic-table/internal/assets"
	"github.com/palemoky/magic-table/internal/config"
	"github.com/palemoky/magic-table/internal/game"
	"github.com/palemoky/magic-table/internal/game/deck"
	"github.com/palemoky/magic-table/internal/logger"
	"github.com/palemoky/magic-table/internal/protocol"
	"github.com/palemoky/magic-table/internal/protocol/codec"
	"github.com/palemoky/magic-table/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 客户端为桌面程序，不校验来源
	},
}

// Status 会话状态
type Status int

const (
	StatusDead      Status = iota // 没有握手协程，也没有存活的监听协程
	StatusAdmitting               // 协调协程仍在运行：接入玩家、等待就绪、发牌
	StatusActive                  // 接入完成，至少一个监听协程存活
)

func (s Status) String() string {
	switch s {
	case StatusAdmitting:
		return "admitting"
	case StatusActive:
		return "active"
	}
	return "dead"
}

// Option 服务器选项
type Option func(*Server)

// WithChecker 指定牌组校验器
func WithChecker(c deck.Checker) Option {
	return func(s *Server) { s.checker = c }
}

// WithCatalog 指定卡图目录
func WithCatalog(c *assets.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithArchive 指定牌组归档
func WithArchive(a storage.DeckArchive) Option {
	return func(s *Server) { s.archive = a }
}

// WithRedisStore 启用会话记录
func WithRedisStore(rs *storage.RedisStore) Option {
	return func(s *Server) { s.store = rs }
}

// WithGameOptions 创建对局时附加的选项
func WithGameOptions(opts ...game.Option) Option {
	return func(s *Server) { s.gameOpts = append(s.gameOpts, opts...) }
}

// WithAssetListen 替换卡图端口的监听方式
func WithAssetListen(f func(index int) (net.Listener, error)) Option {
	return func(s *Server) { s.listenAssets = f }
}

// Server 一局对战的会话
type Server struct {
	id       string
	config   *config.Config
	codec    codec.Codec
	checker  deck.Checker
	catalog  *assets.Catalog
	archive  storage.DeckArchive
	store    *storage.RedisStore
	gameOpts []game.Option

	listenAssets func(index int) (net.Listener, error)

	accept   chan PlayerConn // HTTP 处理器升级后的连接，由协调协程依次取出
	admitted chan struct{}   // 全部座位接入完成后关闭
	listener net.Listener
	httpSrv  *http.Server

	mu      sync.Mutex
	slots   []*slot
	game    *game.Game
	readyCh chan struct{} // 就绪状态变化通知

	admitting atomic.Bool
	startedAt time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewServer 创建会话
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	c, err := codec.New(cfg.Server.Codec)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		id:     uuid.NewString(),
		config: cfg,
		codec:  c,
		checker: deck.StandardChecker{
			MinCards:  cfg.Game.MinDeckSize,
			MaxCards:  cfg.Game.MaxDeckSize,
			MaxCopies: cfg.Game.MaxCopies,
		},
		archive:  storage.MultiArchive{},
		accept:   make(chan PlayerConn),
		admitted: make(chan struct{}),
		slots:    make([]*slot, cfg.Server.Players),
		readyCh:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.gameOpts = []game.Option{game.WithStartingLife(cfg.Game.StartingLife)}
	s.listenAssets = func(index int) (net.Listener, error) {
		return assets.Listen(cfg.Server.Host, cfg.Server.AssetPort(index))
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.catalog == nil {
		s.catalog, err = assets.NewCatalog(cfg.Assets.CardsDir, cfg.Assets.DownloadDir)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ID 会话 ID
func (s *Server) ID() string {
	return s.id
}

// Handler 返回 HTTP 处理器：/ws 接入玩家，/health 健康检查
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start 打开主端口并开始接入玩家，端口不可用时返回错误
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", addr, err)
	}
	s.listener = l
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError("HTTP 服务异常退出: %v", err)
		}
	}()

	log.Printf("🚀 会话 %s 启动在 ws://%s/ws，等待 %d 名玩家", s.id, l.Addr(), s.config.Server.Players)
	s.startCoordinator()
	return nil
}

// Addr 主端口实际监听地址
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) startCoordinator() {
	s.startedAt = time.Now()
	s.admitting.Store(true)
	s.saveSession()
	go s.run()
}

// Done 会话结束后关闭
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Status 会话状态
func (s *Server) Status() Status {
	if s.admitting.Load() {
		return StatusAdmitting
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl != nil && sl.alive.Load() {
			return StatusActive
		}
	}
	return StatusDead
}

// handleWebSocket 升级连接并交给协调协程
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.admitted:
		http.Error(w, "Session Full", http.StatusServiceUnavailable)
		return
	case <-s.ctx.Done():
		http.Error(w, "Session Closed", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket 升级失败: %v", err)
		return
	}

	pc := newWSConn(conn, s.codec)
	select {
	case s.accept <- pc:
	case <-s.admitted:
		_ = pc.Send(protocol.NewErrorMessageWithText(protocol.ErrCodeServerClosed, "座位已满"))
		_ = pc.Close()
	case <-s.ctx.Done():
		_ = pc.Send(apperrors.ToMessage(apperrors.ErrSessionClosed))
		_ = pc.Close()
	}
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.Status().String()))
}

// Close 优雅关闭：通知所有客户端后拆除全部座位
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.SendToAll(protocol.MustActionMessage(&protocol.DisconnectPayload{All: true}))

		s.cancel()
		s.admitting.Store(false)
		for _, sl := range s.snapshotSlots() {
			if sl != nil {
				sl.teardown()
			}
		}
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = s.httpSrv.Shutdown(ctx)
			cancel()
		}

		s.saveSession()
		close(s.done)
		logger.LogInfo("会话 %s 已关闭", s.id)
	})
}

func (s *Server) snapshotSlots() []*slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*slot, len(s.slots))
	copy(out, s.slots)
	return out
}

func (s *Server) slotAt(i int) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.slots) {
		return nil
	}
	return s.slots[i]
}

func (s *Server) currentGame() *game.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game
}

// saveSession 写入会话记录，未启用 Redis 时跳过
func (s *Server) saveSession() {
	if s.store == nil {
		return
	}

	data := &storage.SessionData{
		ID:        s.id,
		Status:    s.Status().String(),
		Players:   s.config.Server.Players,
		Port:      s.config.Server.Port,
		StartedAt: s.startedAt.Unix(),
		UpdatedAt: time.Now().Unix(),
	}
	var snap game.Snapshot
	if g := s.currentGame(); g != nil {
		snap = g.Snapshot()
	}

	s.mu.Lock()
	for _, sl := range s.slots {
		if sl == nil {
			continue
		}
		sd := storage.SlotData{
			Index:    sl.index,
			Name:     sl.name,
			DeckName: sl.deck.Name,
			Cards:    sl.deck.Size(),
			Ready:    sl.ready,
			Alive:    sl.alive.Load(),
		}
		if sl.index < len(snap.Players) {
			p := snap.Players[sl.index]
			sd.Health, sd.Poison = p.Health, p.Poison
			sd.Hand, sd.Library = len(p.Hand), len(p.Library)
		}
		data.Slots = append(data.Slots, sd)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.SaveSession(ctx, data); err != nil {
		logger.LogWarn("保存会话记录失败: %v", err)
	}
}

// errSessionClosed 协调协程在等待时会话被关闭
var errSessionClosed = fmt.Errorf("协调协程退出: %w", apperrors.ErrSessionClosed)
