package protocol

import (
	"encoding/json"

	"github.com/palemoky/magic-table/internal/game/deck"
)

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 握手阶段消息
const (
	MsgDeckCheck   MessageType = "deck_check"   // 牌组校验（双向）
	MsgCardRequest MessageType = "card_request" // 请求卡图（双向）
	MsgWelcome     MessageType = "welcome"      // 握手成功（服务端 → 客户端）
	MsgReady       MessageType = "ready"        // 准备就绪（客户端 → 服务端）
)

// 对局消息
const (
	MsgDrag         MessageType = "drag"           // 拖动卡牌
	MsgTap          MessageType = "tap"            // 横置/重置
	MsgMove         MessageType = "move"           // 区域移动
	MsgCounter      MessageType = "counter"        // 生命/中毒指示物
	MsgSearch       MessageType = "search"         // 检索区域
	MsgShuffle      MessageType = "shuffle"        // 洗牌
	MsgReveal       MessageType = "reveal"         // 展示牌库顶
	MsgRestart      MessageType = "restart"        // 重抽起手
	MsgDisconnect   MessageType = "disconnect"     // 断开
	MsgFullCardList MessageType = "full_card_list" // 全部卡牌实例（服务端 → 客户端）
	MsgError        MessageType = "error"          // 错误消息
)

// Zone 卡牌所在区域
type Zone string

const (
	ZoneLibrary    Zone = "LIBRARY"
	ZoneTopLibrary Zone = "TOP_LIBRARY" // 牌库顶那一张
	ZoneHand       Zone = "HAND"
	ZoneTable      Zone = "TABLE" // 所有玩家共享
	ZoneGraveyard  Zone = "GRAVEYARD"
	ZoneExiled     Zone = "EXILED"
)

// Valid 是否为已知区域
func (z Zone) Valid() bool {
	switch z {
	case ZoneLibrary, ZoneTopLibrary, ZoneHand, ZoneTable, ZoneGraveyard, ZoneExiled:
		return true
	}
	return false
}

// CounterKind 指示物类型
type CounterKind string

const (
	CounterHealth CounterKind = "health"
	CounterPoison CounterKind = "poison"
)

// SearchAll 检索整个牌库
const SearchAll = -1

// --- Payloads ---

// DeckCheckPayload 牌组校验，收到方需确认本地拥有牌组中所有卡图
type DeckCheckPayload struct {
	Owner string    `json:"owner"`
	Deck  deck.Deck `json:"deck"`
}

// CardRequestPayload 卡图请求
type CardRequestPayload struct {
	Name string `json:"name"`
}

// WelcomePayload 握手成功响应
type WelcomePayload struct {
	Index     int    `json:"index"`      // 座位号
	Name      string `json:"name"`       // 去重后的昵称
	AssetPort int    `json:"asset_port"` // 卡图传输端口
	Players   int    `json:"players"`    // 本局玩家数
}

// ReadyPayload 准备就绪
type ReadyPayload struct{}

// DragPayload 拖动卡牌（纯展示，不校验）
type DragPayload struct {
	CardID    string `json:"card_id"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Requestor int    `json:"requestor"`
}

// TapPayload 横置卡牌（纯展示，不校验）
type TapPayload struct {
	CardID    string `json:"card_id"`
	Tapped    bool   `json:"tapped"`
	Requestor int    `json:"requestor"`
}

// MovePayload 区域移动；对旁观者隐藏时 card_id 为 null
type MovePayload struct {
	Source      Zone    `json:"source"`
	Destination Zone    `json:"destination"`
	Requestor   int     `json:"requestor"`
	CardID      *string `json:"card_id"`
}

// CounterPayload 指示物变更
type CounterPayload struct {
	Target    int         `json:"target"`
	Kind      CounterKind `json:"kind"`
	NewValue  int         `json:"new_value"`
	Requestor int         `json:"requestor"`
}

// SearchPayload 检索；对旁观者隐藏时 card_ids 为 null
type SearchPayload struct {
	Zone      Zone     `json:"zone"`
	ZoneOwner int      `json:"zone_owner"`
	Amount    int      `json:"amount"` // -1 表示全部
	CardIDs   []string `json:"card_ids"`
	Requestor int      `json:"requestor"`
}

// ShufflePayload 洗牌通知，不包含新顺序
type ShufflePayload struct {
	Owner int `json:"owner"`
}

// RevealPayload 展示牌库顶，对所有人可见
type RevealPayload struct {
	CardID    *string `json:"card_id"`
	Requestor int     `json:"requestor"`
}

// RestartPayload 重抽起手；对旁观者隐藏时 ids 为 null
type RestartPayload struct {
	IDs       []string `json:"ids"`
	Requestor int      `json:"requestor"`
}

// DisconnectPayload 断开通知
type DisconnectPayload struct {
	Player *int `json:"player,omitempty"` // 断开的座位
	All    bool `json:"all,omitempty"`    // 服务器关闭
}

// FullCardListPayload 本局全部卡牌实例
type FullCardListPayload struct {
	Cards []CardInfo `json:"cards"`
}

// CardInfo 卡牌实例信息
type CardInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner int    `json:"owner"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// --- 错误码 ---
const (
	ErrCodeUnknown        = 1000
	ErrCodeInvalidMsg     = 1001
	ErrCodeInvalidDeck    = 2001
	ErrCodeMissingCard    = 2002
	ErrCodeGameNotStarted = 3001
	ErrCodeUnsupported    = 3002
	ErrCodeServerClosed   = 4001
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:        "未知错误",
	ErrCodeInvalidMsg:     "无效的消息格式",
	ErrCodeInvalidDeck:    "牌组不合法",
	ErrCodeMissingCard:    "缺少卡图",
	ErrCodeGameNotStarted: "游戏尚未开始",
	ErrCodeUnsupported:    "不支持的操作",
	ErrCodeServerClosed:   "服务器已关闭",
}
