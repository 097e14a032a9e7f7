package apperrors

import (
	"errors"

	"github.com/palemoky/magic-table/internal/protocol"
)

// GameError 会话错误（协调器和监听器共享）
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrInvalidDeck     = &GameError{Code: protocol.ErrCodeInvalidDeck, Message: "牌组不合法"}
	ErrUnsupportedMove = &GameError{Code: protocol.ErrCodeUnsupported, Message: "不支持的区域移动"}
	ErrGameNotStarted  = &GameError{Code: protocol.ErrCodeGameNotStarted, Message: "游戏尚未开始"}
	ErrSlotClosed      = &GameError{Code: protocol.ErrCodeUnknown, Message: "座位已断开"}
	ErrSessionClosed   = &GameError{Code: protocol.ErrCodeServerClosed, Message: "会话已关闭"}
)

// Code 提取错误码，非 GameError 时返回 ErrCodeUnknown
func Code(err error) int {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return protocol.ErrCodeUnknown
}

// ToMessage 将错误转换为发给客户端的错误消息，文本保留整条错误链
func ToMessage(err error) *protocol.Message {
	return protocol.NewErrorMessageWithText(Code(err), err.Error())
}
