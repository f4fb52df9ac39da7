// Package volcengine speaks the Volcengine openspeech binary WebSocket protocol.
package volcengine

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

const protocolVersion = 0b0001

// MessageType 消息类型（header 第二字节高 4 位）
type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	AudioOnlyRequest        MessageType = 0b0010
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

// Flags 消息标志（header 第二字节低 4 位）
type Flags uint8

const (
	FlagNone         Flags = 0b0000
	FlagSequence     Flags = 0b0001
	FlagLast         Flags = 0b0010
	FlagLastSequence Flags = 0b0011
	FlagEvent        Flags = 0b0100
)

// Serialization 序列化方式
type Serialization uint8

const (
	SerializationNone Serialization = 0b0000
	SerializationJSON Serialization = 0b0001
)

// Compression 压缩方式
type Compression uint8

const (
	CompressionNone Compression = 0b0000
	CompressionGzip Compression = 0b0001
)

// Event 服务端事件类型
type Event int32

const (
	EventNone               Event = 0
	EventStartConnection    Event = 1
	EventFinishConnection   Event = 2
	EventConnectionStarted  Event = 50
	EventConnectionFailed   Event = 51
	EventConnectionFinished Event = 52
	EventSessionStarted     Event = 150
	EventSessionFinished    Event = 152
	EventSessionFailed      Event = 153
)

// connectionScoped 连接级事件不携带 session id。
func (e Event) connectionScoped() bool {
	switch e {
	case EventStartConnection, EventFinishConnection,
		EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return true
	}
	return false
}

func (e Event) carriesConnectID() bool {
	switch e {
	case EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return true
	}
	return false
}

// Frame is one binary protocol message.
type Frame struct {
	Type          MessageType
	Flags         Flags
	Serialization Serialization
	Compression   Compression
	Sequence      int32
	Event         Event
	SessionID     string
	ConnectID     string
	ErrorCode     uint32
	Payload       []byte
}

func (f *Frame) hasSequence() bool {
	s := f.Flags & FlagLastSequence
	return s == FlagSequence || s == FlagLastSequence
}

func (f *Frame) hasEvent() bool {
	return f.Flags&FlagEvent == FlagEvent
}

// Last 判断是否为最后一包。
func (f *Frame) Last() bool {
	s := f.Flags & FlagLastSequence
	return s == FlagLast || s == FlagLastSequence
}

// Body 返回解压后的 payload。
func (f *Frame) Body() ([]byte, error) {
	switch f.Compression {
	case CompressionNone:
		return f.Payload, nil
	case CompressionGzip:
		return gunzip(f.Payload)
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", f.Compression)
	}
}

// MarshalBinary 按 4 字节 header + 可选字段 + payload size + payload 编码。
func (f *Frame) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{
		protocolVersion<<4 | 0b0001,
		byte(f.Type)<<4 | byte(f.Flags),
		byte(f.Serialization)<<4 | byte(f.Compression),
		0x00,
	})

	if f.hasSequence() {
		putUint32(&buf, uint32(f.Sequence))
	}
	if f.hasEvent() {
		putUint32(&buf, uint32(f.Event))
		if !f.Event.connectionScoped() {
			putString(&buf, f.SessionID)
		}
		if f.Event.carriesConnectID() {
			putString(&buf, f.ConnectID)
		}
	}
	if f.Type == ErrorMessage {
		putUint32(&buf, f.ErrorCode)
	}

	putUint32(&buf, uint32(len(f.Payload)))
	buf.Write(f.Payload)
	return buf.Bytes(), nil
}

// ParseFrame decodes one message received from the server.
func ParseFrame(data []byte) (*Frame, error) {
	r := bytes.NewReader(data)

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if version := header[0] >> 4; version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := &Frame{
		Type:          MessageType(header[1] >> 4),
		Flags:         Flags(header[1] & 0x0F),
		Serialization: Serialization(header[2] >> 4),
		Compression:   Compression(header[2] & 0x0F),
	}

	// header size 以 4 字节为单位，多出的扩展头直接跳过
	if extra := int(header[0]&0x0F)*4 - 4; extra > 0 {
		if _, err := r.Seek(int64(extra), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("failed to skip extended header: %w", err)
		}
	}

	if f.hasSequence() {
		seq, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read sequence: %w", err)
		}
		f.Sequence = int32(seq)
	}

	if f.hasEvent() {
		event, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read event type: %w", err)
		}
		f.Event = Event(event)

		if !f.Event.connectionScoped() {
			if f.SessionID, err = readString(r); err != nil {
				return nil, fmt.Errorf("failed to read session id: %w", err)
			}
		}
		if f.Event.carriesConnectID() {
			if f.ConnectID, err = readString(r); err != nil {
				return nil, fmt.Errorf("failed to read connect id: %w", err)
			}
		}
	}

	if f.Type == ErrorMessage {
		code, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read error code: %w", err)
		}
		f.ErrorCode = code
	}

	size, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload size: %w", err)
	}
	if size > 0 {
		f.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("failed to read payload (expected %d bytes): %w", size, err)
		}
	}

	return f, nil
}

// newClientRequest 创建携带 JSON 参数的完整客户端请求。
func newClientRequest(payload []byte, compression Compression) (*Frame, error) {
	if compression == CompressionGzip {
		var err error
		if payload, err = gzipBytes(payload); err != nil {
			return nil, err
		}
	}
	return &Frame{
		Type:          FullClientRequest,
		Serialization: SerializationJSON,
		Compression:   compression,
		Payload:       payload,
	}, nil
}

// newAudioFrame 创建音频包，最后一包使用负序号。
func newAudioFrame(chunk []byte, sequence int32, last bool) (*Frame, error) {
	payload, err := gzipBytes(chunk)
	if err != nil {
		return nil, err
	}

	f := &Frame{
		Type:        AudioOnlyRequest,
		Compression: CompressionGzip,
		Sequence:    sequence,
		Payload:     payload,
	}
	switch {
	case last && sequence != 0:
		f.Flags = FlagLastSequence
		f.Sequence = -sequence
	case last:
		f.Flags = FlagLast
	case sequence > 0:
		f.Flags = FlagSequence
	}
	return f, nil
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putString(buf *bytes.Buffer, s string) {
	putUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readString(r io.Reader) (string, error) {
	size, err := readUint32(r)
	if err != nil || size == 0 {
		return "", err
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read failed: %w", err)
	}
	return out, nil
}
