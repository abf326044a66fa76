package proto

import (
	"errors"
	"fmt"
)

// MaxPlayers caps the number of entities a snapshot may carry.
const MaxPlayers = 10

// MaxPayloadSize bounds every datagram produced by the codec.
//
// Messages carry no length trailer, so a snapshot cut at a player boundary
// still decodes as a shorter snapshot. Readers must detect truncation at the
// socket: receive into a buffer larger than MaxPayloadSize and drop any
// datagram that fills it.
const MaxPayloadSize = 2048

// 网络层基础消息类型（每条消息的 field 1）
const (
	KindCommands = 1
	KindSnapshot = 2
)

var (
	// ErrMalformedPacket: the payload is not a well-formed message.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrSchemaMismatch: the payload parses but is not the expected message.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrEncodeOverflow: the encoded message would not fit in one datagram.
	ErrEncodeOverflow = errors.New("encode overflow")
	ErrEmptyBatch     = errors.New("empty command batch")
)

// Command is one discrete unit of local intent.
type Command uint8

const (
	MoveLeft Command = iota
	MoveRight
	Jump
)

// Commands lists every command in the order intents are sampled each tick.
var Commands = [...]Command{MoveRight, MoveLeft, Jump}

func (c Command) Valid() bool {
	switch c {
	case MoveLeft, MoveRight, Jump:
		return true
	}
	return false
}

func (c Command) String() string {
	switch c {
	case MoveLeft:
		return "move-left"
	case MoveRight:
		return "move-right"
	case Jump:
		return "jump"
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// Color tags an entity with one of the server palette entries.
type Color uint8

const (
	Red Color = iota
	Green
	Blue
)

// Palette is the closed set of colors, in wire order.
var Palette = [...]Color{Red, Green, Blue}

func (c Color) Valid() bool {
	switch c {
	case Red, Green, Blue:
		return true
	}
	return false
}

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	}
	return fmt.Sprintf("color(%d)", uint8(c))
}

// Entity 远端玩家的位置与颜色（以服务器最近一次上报为准）
type Entity struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Color Color   `json:"color"`
}

// Snapshot is the complete server-ordered entity list of one message.
// Index positions carry no identity across snapshots.
type Snapshot []Entity

// Batch is the ordered list of commands collected during one tick.
type Batch []Command

func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, c)
	}
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	for _, p := range Palette {
		if p.String() == string(b) {
			*c = p
			return nil
		}
	}
	return fmt.Errorf("%w: unknown color %q", ErrSchemaMismatch, b)
}
