package stream

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes outbound events for the wire. The transport layer
// negotiates the format per connection; JSON is the default.
type Codec interface {
	// Encode serializes an event to bytes.
	Encode(evt *Event) ([]byte, error)

	// Decode deserializes bytes into an event.
	Decode(data []byte) (*Event, error)

	// Name returns the codec identifier ("json", "msgpack").
	Name() string
}

// Codec name constants for format negotiation.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Unknown names fall back to JSON.
func GetCodec(name string) Codec {
	if name == CodecNameMsgpack {
		return &MsgpackCodec{}
	}
	return &JSONCodec{}
}

// JSONCodec encodes events as JSON.
type JSONCodec struct{}

func (c *JSONCodec) Encode(evt *Event) ([]byte, error) {
	return json.Marshal(evt)
}

func (c *JSONCodec) Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec encodes events as MessagePack.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(evt *Event) ([]byte, error) {
	return msgpack.Marshal(evt)
}

func (c *MsgpackCodec) Decode(data []byte) (*Event, error) {
	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
