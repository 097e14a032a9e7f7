package server

import (
	"fmt"

	"github.com/palemoky/magic-table/internal/apperrors"
	"github.com/palemoky/magic-table/internal/protocol"
)

// route 区域移动的起点与终点
type route struct {
	from, to protocol.Zone
}

// impossible 按规则不可能出现的移动，收到即视为协议违规
func (r route) impossible() bool {
	switch r {
	case route{protocol.ZoneTable, protocol.ZoneLibrary},
		route{protocol.ZoneLibrary, protocol.ZoneTopLibrary},
		route{protocol.ZoneTopLibrary, protocol.ZoneLibrary}:
		return true
	}
	return r.from == r.to
}

// HandleMove 区域移动状态机。前置条件不满足时静默忽略，不转发也不改变状态。
func (l *listener) HandleMove(p *protocol.MovePayload) error {
	g, err := l.game()
	if err != nil {
		return err
	}
	if !p.Source.Valid() || !p.Destination.Valid() {
		return fmt.Errorf("%w: %s → %s", errBadZone, p.Source, p.Destination)
	}
	p.Requestor = l.index
	i := l.index

	r := route{p.Source, p.Destination}
	if r.impossible() {
		return fmt.Errorf("%s → %s: %w", r.from, r.to, apperrors.ErrUnsupportedMove)
	}

	cardID := ""
	if p.CardID != nil {
		cardID = *p.CardID
	}

	var ok bool
	switch r {
	case route{protocol.ZoneHand, protocol.ZoneTable}:
		ok = g.HandPlay(i, cardID)
	case route{protocol.ZoneTable, protocol.ZoneHand}:
		ok = g.TableTake(i, cardID)
	case route{protocol.ZoneTable, protocol.ZoneGraveyard}:
		ok = g.TableDestroy(i, cardID)
	case route{protocol.ZoneTable, protocol.ZoneExiled}:
		ok = g.TableExile(i, cardID)
	case route{protocol.ZoneTable, protocol.ZoneTopLibrary}:
		ok = g.TablePutOnTopOfLibrary(i, cardID)
	case route{protocol.ZoneLibrary, protocol.ZoneTable}:
		ok = g.LibraryPlay(i, cardID)

	case route{protocol.ZoneTopLibrary, protocol.ZoneHand}:
		c, drawn := g.LibraryDraw(i)
		if drawn {
			p.CardID = protocol.StringPtr(c.ID)
			l.s.SendToAllInvisible(p)
		}
		return nil

	case route{protocol.ZoneTopLibrary, protocol.ZoneTable}:
		c, played := g.LibraryPlayTop(i)
		if !played {
			return nil
		}
		p.CardID = protocol.StringPtr(c.ID)
		ok = true

	default:
		// 预留给后续的动作
		return nil
	}

	if ok {
		l.s.SendToAll(protocol.MustActionMessage(p))
	}
	return nil
}
