package server

import (
	"errors"
	"fmt"
	"log"

	"github.com/palemoky/magic-table/internal/apperrors"
	"github.com/palemoky/magic-table/internal/game"
	"github.com/palemoky/magic-table/internal/logger"
	"github.com/palemoky/magic-table/internal/protocol"
	"github.com/palemoky/magic-table/internal/protocol/codec"
)

var (
	// errClientLeft 客户端主动断开
	errClientLeft = errors.New("客户端主动断开")
	// errUnexpected 客户端发来只应由服务端发送的消息
	errUnexpected = errors.New("非预期的消息")
	// errBadCounter 未知的指示物类型
	errBadCounter = errors.New("未知的指示物类型")
	// errBadZone 该区域不支持此操作
	errBadZone = errors.New("区域不支持此操作")
)

// listener 单个座位的消息处理
type listener struct {
	s     *Server
	index int
}

var _ protocol.Handler = (*listener)(nil)

// listen 监听协程：按到达顺序处理消息，连接断开或出现协议违规时断开该座位
func (s *Server) listen(sl *slot) {
	l := &listener{s: s, index: sl.index}
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			log.Printf("[PANIC] 座位 %d 的监听协程崩溃: %v", sl.index, r)
		}
		s.disconnect(sl.index)
	}()

	conn := sl.connection()
	if conn == nil {
		return
	}

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			var de *protocol.DecodeError
			if errors.As(err, &de) {
				log.Printf("座位 %d 消息解析错误: %v", sl.index, err)
				continue
			}
			return
		}

		err = l.dispatch(msg)
		switch {
		case err == nil:
		case errors.Is(err, errClientLeft):
			return
		case errors.Is(err, apperrors.ErrUnsupportedMove):
			logger.LogError("座位 %d 协议违规，断开连接: %v", sl.index, err)
			return
		default:
			logger.LogWarn("座位 %d 处理 %s 失败: %v", sl.index, msg.Type, err)
		}
	}
}

func (l *listener) dispatch(msg *protocol.Message) error {
	action, err := protocol.ParseAction(msg)
	codec.PutMessage(msg)
	if err != nil {
		return err
	}
	return action.Accept(l)
}

func (l *listener) game() (*game.Game, error) {
	g := l.s.currentGame()
	if g == nil {
		return nil, apperrors.ErrGameNotStarted
	}
	return g, nil
}

// --- 只由服务端发送的消息 ---

func (l *listener) HandleDeckCheck(*protocol.DeckCheckPayload) error {
	return fmt.Errorf("%w: %s", errUnexpected, protocol.MsgDeckCheck)
}

func (l *listener) HandleWelcome(*protocol.WelcomePayload) error {
	return fmt.Errorf("%w: %s", errUnexpected, protocol.MsgWelcome)
}

func (l *listener) HandleFullCardList(*protocol.FullCardListPayload) error {
	return fmt.Errorf("%w: %s", errUnexpected, protocol.MsgFullCardList)
}

func (l *listener) HandleError(p *protocol.ErrorPayload) error {
	log.Printf("座位 %d 报告错误 %d: %s", l.index, p.Code, p.Message)
	return nil
}

// --- 会话控制 ---

// HandleCardRequest 在卡图端口上接受一个连接并发送卡图
func (l *listener) HandleCardRequest(p *protocol.CardRequestPayload) error {
	sl := l.s.slotAt(l.index)
	if sl == nil {
		return apperrors.ErrSlotClosed
	}
	assetsL := sl.assetListener()
	if assetsL == nil {
		return apperrors.ErrSlotClosed
	}
	n, err := l.s.catalog.Serve(assetsL, p.Name)
	if err != nil {
		return fmt.Errorf("发送卡图 %q 失败: %w", p.Name, err)
	}
	log.Printf("🖼️ 已向座位 %d 发送卡图 %s (%d 字节)", l.index, p.Name, n)
	return nil
}

func (l *listener) HandleReady(*protocol.ReadyPayload) error {
	l.s.setReady(l.index)
	return nil
}

func (l *listener) HandleDisconnect(*protocol.DisconnectPayload) error {
	return errClientLeft
}

// --- 纯展示，直接转发 ---

func (l *listener) HandleDrag(p *protocol.DragPayload) error {
	p.Requestor = l.index
	l.s.SendToAll(protocol.MustActionMessage(p))
	return nil
}

func (l *listener) HandleTap(p *protocol.TapPayload) error {
	p.Requestor = l.index
	l.s.SendToAll(protocol.MustActionMessage(p))
	return nil
}

// --- 经过对局状态的操作 ---

func (l *listener) HandleCounter(p *protocol.CounterPayload) error {
	g, err := l.game()
	if err != nil {
		return err
	}
	p.Requestor = l.index

	var ok bool
	switch p.Kind {
	case protocol.CounterHealth:
		ok = g.SetHealth(p.Target, p.NewValue)
	case protocol.CounterPoison:
		ok = g.SetPoison(p.Target, p.NewValue)
	default:
		return fmt.Errorf("%w: %q", errBadCounter, p.Kind)
	}
	if ok {
		l.s.SendToAll(protocol.MustActionMessage(p))
	}
	return nil
}

// HandleSearch 检索自己牌库顶若干张，或任意玩家的公开区域，结果只对发起者可见
func (l *listener) HandleSearch(p *protocol.SearchPayload) error {
	g, err := l.game()
	if err != nil {
		return err
	}
	p.Requestor = l.index
	// 牌库是隐藏区域，只能检索自己的
	if p.Zone == protocol.ZoneLibrary {
		p.ZoneOwner = l.index
	}
	if !g.Alive(p.ZoneOwner) {
		return nil
	}

	switch p.Zone {
	case protocol.ZoneLibrary:
		if p.Amount < protocol.SearchAll || p.Amount == 0 {
			return nil
		}
		if p.Amount >= g.LibrarySize(p.ZoneOwner) {
			p.Amount = protocol.SearchAll
		}
		p.CardIDs = g.LibrarySearch(p.ZoneOwner, p.Amount)
	case protocol.ZoneGraveyard:
		p.CardIDs = g.GraveyardView(p.ZoneOwner)
	case protocol.ZoneExiled:
		p.CardIDs = g.ExiledView(p.ZoneOwner)
	default:
		return fmt.Errorf("%w: search %s", errBadZone, p.Zone)
	}

	l.s.SendToAllInvisible(p)
	return nil
}

// HandleShuffle 洗自己的牌库，新的顺序不会发出
func (l *listener) HandleShuffle(p *protocol.ShufflePayload) error {
	g, err := l.game()
	if err != nil {
		return err
	}
	p.Owner = l.index
	if g.LibraryShuffle(l.index) {
		l.s.SendToAll(protocol.MustActionMessage(p))
	}
	return nil
}

// HandleReveal 向所有人展示牌库顶
func (l *listener) HandleReveal(p *protocol.RevealPayload) error {
	g, err := l.game()
	if err != nil {
		return err
	}
	top, ok := g.LibraryTop(l.index)
	if !ok {
		return nil
	}
	p.Requestor = l.index
	p.CardID = protocol.StringPtr(top.ID)
	l.s.SendToAll(protocol.MustActionMessage(p))
	return nil
}

// HandleRestart 手牌洗回牌库后重抽
func (l *listener) HandleRestart(p *protocol.RestartPayload) error {
	g, err := l.game()
	if err != nil {
		return err
	}
	ids, ok := g.Restart(l.index, l.s.config.Game.HandSize)
	if !ok {
		return nil
	}
	p.Requestor = l.index
	p.IDs = ids
	l.s.SendToAllInvisible(p)
	return nil
}
