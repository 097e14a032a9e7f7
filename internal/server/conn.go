package server

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palemoky/magic-table/internal/apperrors"
	"github.com/palemoky/magic-table/internal/protocol"
	"github.com/palemoky/magic-table/internal/protocol/codec"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小，牌组校验消息可能较大
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// PlayerConn 玩家主连接
type PlayerConn interface {
	// ReadMessage 阻塞读取下一条消息。
	// 内容无法解析时返回 *protocol.DecodeError，连接仍可继续使用；其他错误表示连接已断开。
	ReadMessage() (*protocol.Message, error)
	// Send 异步发送消息
	Send(msg *protocol.Message) error
	Close() error
	RemoteAddr() string
}

// wsConn 基于 WebSocket 的玩家连接
type wsConn struct {
	conn  *websocket.Conn
	codec codec.Codec
	send  chan []byte

	mu     sync.RWMutex
	closed bool
}

var _ PlayerConn = (*wsConn)(nil)

func newWSConn(conn *websocket.Conn, c codec.Codec) *wsConn {
	wc := &wsConn{
		conn:  conn,
		codec: c,
		send:  make(chan []byte, sendBufferSize),
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go wc.writePump()
	return wc
}

func (c *wsConn) ReadMessage() (*protocol.Message, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			log.Printf("读取错误: %v", err)
		}
		return nil, err
	}
	return c.codec.Decode(data)
}

// writePump 按顺序写出发送队列，队列关闭后发送关闭帧并断开底层连接
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	frame := websocket.TextMessage
	if c.codec.Binary() {
		frame = websocket.BinaryMessage
	}

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(frame, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) Send(msg *protocol.Message) error {
	data, err := c.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("消息编码错误: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return apperrors.ErrSlotClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		// 发送缓冲区已满，对端读得太慢
		go func() { _ = c.Close() }()
		return errors.New("发送缓冲区已满")
	}
}

// Close 关闭发送队列，已入队的消息仍会写出
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
