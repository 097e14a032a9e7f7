package protocol

import (
	"errors"
	"fmt"
)

// ErrUnknownType 未知消息类型
var ErrUnknownType = errors.New("未知消息类型")

// Action 协议中的一种动作。每个变体都必须在 Handler 中有对应方法，
// 新增变体而未实现处理方法会导致编译失败。
type Action interface {
	Type() MessageType
	Accept(h Handler) error
}

// Handler 按变体分派动作
type Handler interface {
	HandleDeckCheck(p *DeckCheckPayload) error
	HandleCardRequest(p *CardRequestPayload) error
	HandleWelcome(p *WelcomePayload) error
	HandleReady(p *ReadyPayload) error
	HandleDrag(p *DragPayload) error
	HandleTap(p *TapPayload) error
	HandleMove(p *MovePayload) error
	HandleCounter(p *CounterPayload) error
	HandleSearch(p *SearchPayload) error
	HandleShuffle(p *ShufflePayload) error
	HandleReveal(p *RevealPayload) error
	HandleRestart(p *RestartPayload) error
	HandleDisconnect(p *DisconnectPayload) error
	HandleFullCardList(p *FullCardListPayload) error
	HandleError(p *ErrorPayload) error
}

func (p *DeckCheckPayload) Type() MessageType { return MsgDeckCheck }
func (p *CardRequestPayload) Type() MessageType { return MsgCardRequest }
func (p *WelcomePayload) Type() MessageType { return MsgWelcome }
func (p *ReadyPayload) Type() MessageType { return MsgReady }
func (p *DragPayload) Type() MessageType { return MsgDrag }
func (p *TapPayload) Type() MessageType { return MsgTap }
func (p *MovePayload) Type() MessageType { return MsgMove }
func (p *CounterPayload) Type() MessageType { return MsgCounter }
func (p *SearchPayload) Type() MessageType { return MsgSearch }
func (p *ShufflePayload) Type() MessageType { return MsgShuffle }
func (p *RevealPayload) Type() MessageType { return MsgReveal }
func (p *RestartPayload) Type() MessageType { return MsgRestart }
func (p *DisconnectPayload) Type() MessageType { return MsgDisconnect }
func (p *FullCardListPayload) Type() MessageType { return MsgFullCardList }
func (p *ErrorPayload) Type() MessageType { return MsgError }

func (p *DeckCheckPayload) Accept(h Handler) error { return h.HandleDeckCheck(p) }
func (p *CardRequestPayload) Accept(h Handler) error { return h.HandleCardRequest(p) }
func (p *WelcomePayload) Accept(h Handler) error { return h.HandleWelcome(p) }
func (p *ReadyPayload) Accept(h Handler) error { return h.HandleReady(p) }
func (p *DragPayload) Accept(h Handler) error { return h.HandleDrag(p) }
func (p *TapPayload) Accept(h Handler) error { return h.HandleTap(p) }
func (p *MovePayload) Accept(h Handler) error { return h.HandleMove(p) }
func (p *CounterPayload) Accept(h Handler) error { return h.HandleCounter(p) }
func (p *SearchPayload) Accept(h Handler) error { return h.HandleSearch(p) }
func (p *ShufflePayload) Accept(h Handler) error { return h.HandleShuffle(p) }
func (p *RevealPayload) Accept(h Handler) error { return h.HandleReveal(p) }
func (p *RestartPayload) Accept(h Handler) error { return h.HandleRestart(p) }
func (p *DisconnectPayload) Accept(h Handler) error { return h.HandleDisconnect(p) }
func (p *FullCardListPayload) Accept(h Handler) error { return h.HandleFullCardList(p) }
func (p *ErrorPayload) Accept(h Handler) error { return h.HandleError(p) }

// ParseAction 将消息解析为具体动作
func ParseAction(msg *Message) (Action, error) {
	switch msg.Type {
	case MsgDeckCheck:
		return parse[DeckCheckPayload](msg)
	case MsgCardRequest:
		return parse[CardRequestPayload](msg)
	case MsgWelcome:
		return parse[WelcomePayload](msg)
	case MsgReady:
		return parse[ReadyPayload](msg)
	case MsgDrag:
		return parse[DragPayload](msg)
	case MsgTap:
		return parse[TapPayload](msg)
	case MsgMove:
		return parse[MovePayload](msg)
	case MsgCounter:
		return parse[CounterPayload](msg)
	case MsgSearch:
		return parse[SearchPayload](msg)
	case MsgShuffle:
		return parse[ShufflePayload](msg)
	case MsgReveal:
		return parse[RevealPayload](msg)
	case MsgRestart:
		return parse[RestartPayload](msg)
	case MsgDisconnect:
		return parse[DisconnectPayload](msg)
	case MsgFullCardList:
		return parse[FullCardListPayload](msg)
	case MsgError:
		return parse[ErrorPayload](msg)
	}
	return nil, &DecodeError{Type: msg.Type, Err: ErrUnknownType}
}

// parse 解析 payload；T 的指针类型必须实现 Action
func parse[T any, PT interface {
	*T
	Action
}](msg *Message) (Action, error) {
	p, err := ParsePayload[T](msg)
	if err != nil {
		return nil, err
	}
	return PT(p), nil
}

// NewActionMessage 将动作编码为消息
func NewActionMessage(a Action) (*Message, error) {
	msg, err := NewMessage(a.Type(), a)
	if err != nil {
		return nil, fmt.Errorf("编码 %s 失败: %w", a.Type(), err)
	}
	return msg, nil
}

// MustActionMessage 编码动作，失败时 panic
func MustActionMessage(a Action) *Message {
	msg, err := NewActionMessage(a)
	if err != nil {
		panic(err)
	}
	return msg
}
