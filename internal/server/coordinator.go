package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/palemoky/magic-table/internal/apperrors"
	"github.com/palemoky/magic-table/internal/game"
	"github.com/palemoky/magic-table/internal/game/deck"
	"github.com/palemoky/magic-table/internal/logger"
	"github.com/palemoky/magic-table/internal/protocol"
	"github.com/palemoky/magic-table/internal/protocol/codec"
)

var errExpectedDeckCheck = errors.New("握手首条消息必须是牌组")

// run 协调协程：依次接入全部座位，等待全员就绪后发牌
func (s *Server) run() {
	err := s.admitAll()
	close(s.admitted)
	if err != nil {
		s.admitting.Store(false)
		if !errors.Is(err, apperrors.ErrSessionClosed) {
			logger.LogError("接入玩家失败: %v", err)
		}
		s.Close()
		return
	}
	s.saveSession()

	if err := s.waitReady(s.ctx); err != nil {
		return
	}
	s.deal()
	s.admitting.Store(false)
	s.saveSession()

	if s.Status() == StatusDead {
		log.Println("所有玩家在开局前离开")
		s.Close()
	}
}

func (s *Server) admitAll() error {
	for i := range s.config.Server.Players {
		if err := s.admit(i); err != nil {
			return err
		}
	}
	return nil
}

// admit 接入第 i 个座位，握手失败时在同一座位重试，连续失败超过上限则放弃
func (s *Server) admit(i int) error {
	assetsL, err := s.listenAssets(i)
	if err != nil {
		return err
	}
	// 会话关闭时释放卡图端口，入座后改由座位负责关闭
	release := context.AfterFunc(s.ctx, func() { _ = assetsL.Close() })

	for attempt := 1; ; attempt++ {
		conn, err := s.acceptConn()
		if err != nil {
			return err
		}

		stopConn := context.AfterFunc(s.ctx, func() { _ = conn.Close() })
		sl, err := s.handshake(i, conn, assetsL)
		stopConn()
		if err == nil {
			if !release() {
				_ = conn.Close()
				return errSessionClosed
			}
			s.activate(sl)
			return nil
		}

		_ = conn.Close()
		if s.ctx.Err() != nil {
			return errSessionClosed
		}
		logger.LogWarn("座位 %d 第 %d 次握手失败 (%s): %v", i, attempt, conn.RemoteAddr(), err)
		if attempt >= s.config.Server.MaxHandshakeAttempts {
			release()
			_ = assetsL.Close()
			return fmt.Errorf("座位 %d 握手连续失败 %d 次: %w", i, attempt, err)
		}
	}
}

func (s *Server) acceptConn() (PlayerConn, error) {
	select {
	case conn := <-s.accept:
		return conn, nil
	case <-s.ctx.Done():
		return nil, errSessionClosed
	}
}

// handshake 校验牌组、分配名字、补齐缺失的卡图
func (s *Server) handshake(i int, conn PlayerConn, assetsL net.Listener) (*slot, error) {
	msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("读取牌组失败: %w", err)
	}
	action, err := protocol.ParseAction(msg)
	codec.PutMessage(msg)
	if err != nil {
		_ = conn.Send(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return nil, err
	}
	check, ok := action.(*protocol.DeckCheckPayload)
	if !ok {
		_ = conn.Send(protocol.NewErrorMessageWithText(protocol.ErrCodeInvalidMsg, "请先发送牌组"))
		return nil, fmt.Errorf("%w，收到 %s", errExpectedDeckCheck, action.Type())
	}

	if err := s.checker.Check(check.Deck); err != nil {
		reason := err.Error()
		var ide *deck.InvalidDeckError
		if errors.As(err, &ide) {
			reason = ide.Reason
		}
		err = fmt.Errorf("%w: %s", apperrors.ErrInvalidDeck, reason)
		_ = conn.Send(apperrors.ToMessage(err))
		return nil, err
	}

	s.mu.Lock()
	name := s.uniqueName(sanitizeName(check.Owner))
	s.mu.Unlock()

	if err := conn.Send(protocol.MustActionMessage(&protocol.WelcomePayload{
		Index:     i,
		Name:      name,
		AssetPort: s.config.Server.AssetPort(i),
		Players:   s.config.Server.Players,
	})); err != nil {
		return nil, err
	}

	if err := s.archive.ArchiveDeck(s.ctx, name, check.Deck); err != nil {
		logger.LogWarn("归档牌组失败: %v", err)
	}

	if err := s.fetchMissing(conn, assetsL, check.Deck); err != nil {
		return nil, err
	}

	log.Printf("✅ 玩家 %s 入座 %d (%s)，牌组 %q 共 %d 张", name, i, conn.RemoteAddr(), check.Deck.Name, check.Deck.Size())
	return newSlot(i, name, check.Deck, conn, assetsL), nil
}

// fetchMissing 逐张请求本地缺失的卡图，字节从卡图端口接收
func (s *Server) fetchMissing(conn PlayerConn, assetsL net.Listener, d deck.Deck) error {
	for _, name := range s.catalog.Missing(d.Names()) {
		if err := conn.Send(protocol.MustActionMessage(&protocol.CardRequestPayload{Name: name})); err != nil {
			return err
		}
		path, err := s.catalog.Fetch(assetsL, name)
		if err != nil {
			if s.ctx.Err() != nil {
				return errSessionClosed
			}
			return fmt.Errorf("接收卡图 %q 失败: %w", name, err)
		}
		log.Printf("🖼️ 已接收卡图 %s -> %s", name, path)
	}
	return nil
}

// activate 座位入座：与先到的玩家交换牌组，并重置他们的就绪状态
func (s *Server) activate(sl *slot) {
	newcomer := protocol.MustActionMessage(sl.deckCheck)

	s.mu.Lock()
	s.slots[sl.index] = sl
	earlier := make([]*slot, sl.index)
	copy(earlier, s.slots[:sl.index])
	for _, prev := range earlier {
		prev.ready = false
	}
	s.mu.Unlock()

	sl.alive.Store(true)
	for _, prev := range earlier {
		s.Send(prev.index, newcomer)
		s.Send(sl.index, protocol.MustActionMessage(prev.deckCheck))
		if !prev.alive.Load() {
			s.Send(sl.index, protocol.MustActionMessage(&protocol.DisconnectPayload{Player: protocol.IntPtr(prev.index)}))
		}
	}
	s.Send(sl.index, newcomer)

	go s.listen(sl)
	s.notifyReady()
	s.saveSession()
}

// waitReady 阻塞直到所有存活座位都已就绪
func (s *Server) waitReady(ctx context.Context) error {
	for !s.allReady() {
		select {
		case <-s.readyCh:
		case <-ctx.Done():
			return errSessionClosed
		}
	}
	return nil
}

func (s *Server) allReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl == nil {
			return false
		}
		if sl.alive.Load() && !sl.ready {
			return false
		}
	}
	return true
}

func (s *Server) setReady(i int) {
	s.mu.Lock()
	if sl := s.slots[i]; sl != nil {
		sl.ready = true
	}
	s.mu.Unlock()

	s.notifyReady()
	s.saveSession()
}

func (s *Server) notifyReady() {
	select {
	case s.readyCh <- struct{}{}:
	default:
	}
}

// deal 建立对局，广播全部卡牌，然后为每个存活座位洗牌并抓起手牌。
// 发牌结束后才公开对局，此前监听协程收到的操作按未开局处理。
func (s *Server) deal() {
	s.mu.Lock()
	decks := make([]deck.Deck, len(s.slots))
	for i, sl := range s.slots {
		decks[i] = sl.deck
	}
	slots := make([]*slot, len(s.slots))
	copy(slots, s.slots)
	s.mu.Unlock()

	g := game.New(decks, s.gameOpts...)

	all := g.AllCards()
	infos := make([]protocol.CardInfo, len(all))
	for i, c := range all {
		infos[i] = protocol.CardInfo{ID: c.ID, Name: c.Name, Owner: c.Owner}
	}
	s.SendToAll(protocol.MustActionMessage(&protocol.FullCardListPayload{Cards: infos}))
	log.Printf("🃏 对局开始，共 %d 张卡牌", len(infos))

	for _, sl := range slots {
		if !sl.alive.Load() {
			g.Kill(sl.index)
			continue
		}

		g.LibraryShuffle(sl.index)
		s.SendToAll(protocol.MustActionMessage(&protocol.ShufflePayload{Owner: sl.index}))

		for range s.config.Game.HandSize {
			c, ok := g.LibraryDraw(sl.index)
			if !ok {
				break
			}
			s.SendToAllInvisible(&protocol.MovePayload{
				Source:      protocol.ZoneTopLibrary,
				Destination: protocol.ZoneHand,
				Requestor:   sl.index,
				CardID:      protocol.StringPtr(c.ID),
			})
		}
	}

	s.mu.Lock()
	s.game = g
	s.mu.Unlock()

	// 发牌期间断开的座位此时还看不到对局，由这里回收
	for _, sl := range slots {
		if !sl.alive.Load() {
			g.Kill(sl.index)
		}
	}
}
