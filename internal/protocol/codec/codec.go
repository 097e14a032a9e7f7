// Package codec 负责消息信封在 WebSocket 帧上的编解码
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/palemoky/magic-table/internal/config"
	"github.com/palemoky/magic-table/internal/protocol"
)

// 信封字段号，与客户端 message.proto 保持一致
const (
	fieldType    protowire.Number = 1
	fieldPayload protowire.Number = 2
)

// ErrUnknownCodec 不支持的编码名
var ErrUnknownCodec = errors.New("未知编码")

// Codec 信封编解码器
type Codec interface {
	Name() string
	// Binary 为 true 时使用二进制帧
	Binary() bool
	Encode(m *protocol.Message) ([]byte, error)
	// Decode 返回的消息来自对象池，用完后应调用 PutMessage
	Decode(data []byte) (*protocol.Message, error)
}

// New 按名称创建编解码器
func New(name string) (Codec, error) {
	switch name {
	case "", config.CodecJSON:
		return JSON{}, nil
	case config.CodecProtobuf:
		return Protobuf{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
}

// JSON 文本帧编码
type JSON struct{}

func (JSON) Name() string { return config.CodecJSON }
func (JSON) Binary() bool { return false }

func (JSON) Encode(m *protocol.Message) ([]byte, error) {
	return json.Marshal(m)
}

func (JSON) Decode(data []byte) (*protocol.Message, error) {
	msg := GetMessage()
	if err := json.Unmarshal(data, msg); err != nil {
		PutMessage(msg)
		return nil, &protocol.DecodeError{Err: err}
	}
	return msg, nil
}

// Protobuf 二进制帧编码：信封为 protobuf 线格式，payload 仍为 JSON
type Protobuf struct{}

func (Protobuf) Name() string { return config.CodecProtobuf }
func (Protobuf) Binary() bool { return true }

func (Protobuf) Encode(m *protocol.Message) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	b := *buf
	b = protowire.AppendTag(b, fieldType, protowire.BytesType)
	b = protowire.AppendString(b, string(m.Type))
	if len(m.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Payload)
	}
	*buf = b

	return append([]byte(nil), b...), nil
}

func (Protobuf) Decode(data []byte) (*protocol.Message, error) {
	msg := GetMessage()
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			PutMessage(msg)
			return nil, &protocol.DecodeError{Err: protowire.ParseError(n)}
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				PutMessage(msg)
				return nil, &protocol.DecodeError{Err: protowire.ParseError(m)}
			}
			msg.Type = protocol.MessageType(v)
			n = m
		case num == fieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				PutMessage(msg)
				return nil, &protocol.DecodeError{Err: protowire.ParseError(m)}
			}
			msg.Payload = append([]byte(nil), v...) // 复制 payload 避免引用
			n = m
		default:
			// 跳过未知字段，保持向前兼容
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				PutMessage(msg)
				return nil, &protocol.DecodeError{Err: protowire.ParseError(n)}
			}
		}
		data = data[n:]
	}
	return msg, nil
}
