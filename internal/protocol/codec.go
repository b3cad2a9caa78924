package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec frames Message envelopes on the websocket.
type Codec interface {
	Name() string

	// FrameType is the websocket message type the codec writes.
	FrameType() int

	Marshal(m *Message) ([]byte, error)
	Unmarshal(data []byte, m *Message) error
}

// Codec names accepted in the ?codec= query parameter.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

var (
	// JSON is the default codec, used by browsers.
	JSON Codec = jsonCodec{}

	// Msgpack frames envelopes as binary messages. The CLI uses it.
	Msgpack Codec = msgpackCodec{}
)

// CodecByName resolves a codec. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSON, nil
	case CodecMsgpack:
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return CodecJSON }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Marshal(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

func (jsonCodec) Unmarshal(data []byte, m *Message) error {
	return json.Unmarshal(data, m)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return CodecMsgpack }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Marshal(m *Message) ([]byte, error) {
	return msgpack.Marshal(m)
}

func (msgpackCodec) Unmarshal(data []byte, m *Message) error {
	return msgpack.Unmarshal(data, m)
}
