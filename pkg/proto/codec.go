package proto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers. Every message starts with fieldKind; unknown fields are
// skipped so newer peers can add fields without breaking older decoders.
const (
	fieldKind     protowire.Number = 1
	fieldCommands protowire.Number = 2
	fieldPlayers  protowire.Number = 3

	fieldPlayerX     protowire.Number = 1
	fieldPlayerY     protowire.Number = 2
	fieldPlayerColor protowire.Number = 3
)

// EncodeCommandBatch serializes a non-empty batch, preserving order and
// duplicates. The same batch always yields the same bytes.
func EncodeCommandBatch(batch Batch) ([]byte, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	packed := make([]byte, 0, len(batch))
	for _, c := range batch {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, c)
		}
		packed = protowire.AppendVarint(packed, uint64(c))
	}
	size := kindSize(KindCommands) + protowire.SizeTag(fieldCommands) + protowire.SizeBytes(len(packed))
	if size > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d commands need %d bytes, limit %d", ErrEncodeOverflow, len(batch), size, MaxPayloadSize)
	}
	b := make([]byte, 0, size)
	b = appendKind(b, KindCommands)
	b = protowire.AppendTag(b, fieldCommands, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	return b, nil
}

// DecodeCommandBatch is the server-side inverse of EncodeCommandBatch.
// Both packed and unpacked command encodings are accepted.
func DecodeCommandBatch(b []byte) (Batch, error) {
	kind, fields, err := readMessage(b)
	if err != nil {
		return nil, err
	}
	if kind != KindCommands {
		return nil, fmt.Errorf("%w: kind %d is not a command batch", ErrSchemaMismatch, kind)
	}
	var batch Batch
	for _, f := range fields {
		if f.num != fieldCommands {
			continue
		}
		switch f.typ {
		case protowire.VarintType:
			c, err := commandFromWire(f.varint)
			if err != nil {
				return nil, err
			}
			batch = append(batch, c)
		case protowire.BytesType:
			for p := f.bytes; len(p) > 0; {
				v, n := protowire.ConsumeVarint(p)
				if n < 0 {
					return nil, fmt.Errorf("%w: commands: %v", ErrMalformedPacket, protowire.ParseError(n))
				}
				p = p[n:]
				c, err := commandFromWire(v)
				if err != nil {
					return nil, err
				}
				batch = append(batch, c)
			}
		default:
			return nil, fmt.Errorf("%w: commands field has wire type %d", ErrSchemaMismatch, f.typ)
		}
	}
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	return batch, nil
}

// EncodeWorldSnapshot serializes the server's view of all entities.
func EncodeWorldSnapshot(s Snapshot) ([]byte, error) {
	if len(s) > MaxPlayers {
		return nil, fmt.Errorf("%w: %d entities, limit %d", ErrSchemaMismatch, len(s), MaxPlayers)
	}
	b := appendKind(nil, KindSnapshot)
	for _, e := range s {
		if !e.Color.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, e.Color)
		}
		var rec []byte
		rec = protowire.AppendTag(rec, fieldPlayerX, protowire.Fixed32Type)
		rec = protowire.AppendFixed32(rec, math.Float32bits(e.X))
		rec = protowire.AppendTag(rec, fieldPlayerY, protowire.Fixed32Type)
		rec = protowire.AppendFixed32(rec, math.Float32bits(e.Y))
		rec = protowire.AppendTag(rec, fieldPlayerColor, protowire.VarintType)
		rec = protowire.AppendVarint(rec, uint64(e.Color))
		b = protowire.AppendTag(b, fieldPlayers, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}
	if len(b) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: snapshot needs %d bytes, limit %d", ErrEncodeOverflow, len(b), MaxPayloadSize)
	}
	return b, nil
}

// DecodeWorldSnapshot 从快照数据报中解析所有玩家位置。
// 坐标与颜色按原样接受，不做范围校验。
func DecodeWorldSnapshot(b []byte) (Snapshot, error) {
	kind, fields, err := readMessage(b)
	if err != nil {
		return nil, err
	}
	if kind != KindSnapshot {
		return nil, fmt.Errorf("%w: kind %d is not a snapshot", ErrSchemaMismatch, kind)
	}
	s := make(Snapshot, 0, len(fields))
	for _, f := range fields {
		if f.num != fieldPlayers {
			continue
		}
		if f.typ != protowire.BytesType {
			return nil, fmt.Errorf("%w: players field has wire type %d", ErrSchemaMismatch, f.typ)
		}
		if len(s) == MaxPlayers {
			return nil, fmt.Errorf("%w: more than %d entities", ErrSchemaMismatch, MaxPlayers)
		}
		e, err := decodeEntity(f.bytes)
		if err != nil {
			return nil, err
		}
		s = append(s, e)
	}
	return s, nil
}

func decodeEntity(b []byte) (Entity, error) {
	var e Entity
	err := walkFields(b, func(f field) error {
		switch f.num {
		case fieldPlayerX, fieldPlayerY:
			if f.typ != protowire.Fixed32Type {
				return fmt.Errorf("%w: coordinate field %d has wire type %d", ErrSchemaMismatch, f.num, f.typ)
			}
			if f.num == fieldPlayerX {
				e.X = math.Float32frombits(f.fixed32)
			} else {
				e.Y = math.Float32frombits(f.fixed32)
			}
		case fieldPlayerColor:
			if f.typ != protowire.VarintType {
				return fmt.Errorf("%w: color field has wire type %d", ErrSchemaMismatch, f.typ)
			}
			if f.varint > math.MaxUint8 || !Color(f.varint).Valid() {
				return fmt.Errorf("%w: unknown color %d", ErrSchemaMismatch, f.varint)
			}
			e.Color = Color(f.varint)
		}
		return nil
	})
	return e, err
}

func commandFromWire(v uint64) (Command, error) {
	if v > math.MaxUint8 || !Command(v).Valid() {
		return 0, fmt.Errorf("%w: unknown command %d", ErrSchemaMismatch, v)
	}
	return Command(v), nil
}

func kindSize(kind uint64) int {
	return protowire.SizeTag(fieldKind) + protowire.SizeVarint(kind)
}

func appendKind(b []byte, kind uint64) []byte {
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	return protowire.AppendVarint(b, kind)
}

type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	bytes   []byte
}

// readMessage splits a root message into its kind and remaining fields.
// Structural errors are ErrMalformedPacket; a missing or mistyped kind is
// ErrSchemaMismatch.
func readMessage(b []byte) (uint64, []field, error) {
	if len(b) == 0 {
		return 0, nil, fmt.Errorf("%w: empty payload", ErrMalformedPacket)
	}
	var (
		kind     uint64
		kindType protowire.Type = -1
		fields   []field
	)
	err := walkFields(b, func(f field) error {
		if f.num == fieldKind {
			kind, kindType = f.varint, f.typ
			return nil
		}
		fields = append(fields, f)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	switch kindType {
	case -1:
		return 0, nil, fmt.Errorf("%w: missing message kind", ErrSchemaMismatch)
	case protowire.VarintType:
	default:
		return 0, nil, fmt.Errorf("%w: kind field has wire type %d", ErrSchemaMismatch, kindType)
	}
	return kind, fields, nil
}

// walkFields calls fn for each field of b in wire order.
func walkFields(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedPacket, protowire.ParseError(n))
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedPacket, num, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
