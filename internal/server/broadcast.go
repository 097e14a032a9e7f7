package server

import (
	"log"

	"github.com/palemoky/magic-table/internal/logger"
	"github.com/palemoky/magic-table/internal/protocol"
)

// Send 发送给单个座位。发送失败只记录日志，不影响会话。
func (s *Server) Send(i int, msg *protocol.Message) {
	sl := s.slotAt(i)
	if sl == nil {
		return
	}
	conn := sl.connection()
	if conn == nil {
		return
	}
	if err := conn.Send(msg); err != nil {
		logger.LogWarn("发送 %s 给座位 %d 失败: %v", msg.Type, i, err)
	}
}

// SendToAll 发送给所有座位
func (s *Server) SendToAll(msg *protocol.Message) {
	for i := range s.config.Server.Players {
		s.Send(i, msg)
	}
}

// SendToAllExcept 发送给除 except 外的所有座位
func (s *Server) SendToAllExcept(except int, msg *protocol.Message) {
	for i := range s.config.Server.Players {
		if i != except {
			s.Send(i, msg)
		}
	}
}

// SendToAllInvisible 发起者收到完整内容，其他人收到隐藏了身份字段的副本
func (s *Server) SendToAllInvisible(a protocol.Concealable) {
	full := protocol.MustActionMessage(a)
	hidden := protocol.MustActionMessage(a.Concealed())
	for i := range s.config.Server.Players {
		if i == a.RequestedBy() {
			s.Send(i, full)
		} else {
			s.Send(i, hidden)
		}
	}
}

// disconnect 完全断开一个座位：拆除连接、回收卡牌、通知其他玩家。
// 最后一个存活座位断开后关闭整个会话。
func (s *Server) disconnect(i int) {
	sl := s.slotAt(i)
	if sl == nil || !sl.teardown() {
		return
	}
	logger.LogInfo("玩家 %s (座位 %d) 已断开", sl.name, i)

	if g := s.currentGame(); g != nil {
		g.Kill(i)
	}
	s.SendToAllExcept(i, protocol.MustActionMessage(&protocol.DisconnectPayload{Player: protocol.IntPtr(i)}))
	s.notifyReady()
	s.saveSession()

	if s.Status() == StatusDead {
		log.Println("没有存活的玩家，关闭会话")
		s.Close()
	}
}
