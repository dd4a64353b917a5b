// Package grpc implements transport.Transport over a real network
// connection using google.golang.org/grpc. Wire messages are encoded with
// google.golang.org/protobuf's low-level protowire primitives directly
// (field-number/tag based, matching BlockId's own "explicit tag bytes, not
// name-based reflection" discipline) rather than through protoc-generated
// types, since the service surface is two simple RPCs.
package grpc

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// fetchBlockRequest is RPC 1's request: the block to retrieve.
type fetchBlockRequest struct {
	BlockIDStr string
}

func (m *fetchBlockRequest) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, m.BlockIDStr)
	return b, nil
}

func (m *fetchBlockRequest) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.New("grpc transport: fetchBlockRequest: bad tag")
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return errors.New("grpc transport: fetchBlockRequest: bad field 1")
			}
			m.BlockIDStr = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.New("grpc transport: fetchBlockRequest: bad field")
			}
			b = b[n:]
		}
	}
	return nil
}

// fetchBlockResponse is RPC 1's response. Found is false when the peer has
// no copy of the requested block.
type fetchBlockResponse struct {
	Found bool
	Bytes []byte
	Size  int64
}

func (m *fetchBlockResponse) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(m.Found))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Bytes)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Size))
	return b, nil
}

func (m *fetchBlockResponse) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.New("grpc transport: fetchBlockResponse: bad tag")
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return errors.New("grpc transport: fetchBlockResponse: bad field 1")
			}
			m.Found = protowire.DecodeBool(v)
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return errors.New("grpc transport: fetchBlockResponse: bad field 2")
			}
			m.Bytes = append([]byte(nil), v...)
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return errors.New("grpc transport: fetchBlockResponse: bad field 3")
			}
			m.Size = int64(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.New("grpc transport: fetchBlockResponse: bad field")
			}
			b = b[n:]
		}
	}
	return nil
}

// uploadBlockRequest is RPC 2's request: blockIDWire is blockid.Encode's
// output, levelFlags packs StorageLevel's five fields into a byte.
type uploadBlockRequest struct {
	BlockIDWire []byte
	Bytes       []byte
	LevelFlags  byte
	Replication uint32
	Tag         string
}

func (m *uploadBlockRequest) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, m.BlockIDWire)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Bytes)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.LevelFlags))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Replication))
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendString(b, m.Tag)
	return b, nil
}

func (m *uploadBlockRequest) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.New("grpc transport: uploadBlockRequest: bad tag")
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return errors.New("grpc transport: uploadBlockRequest: bad field 1")
			}
			m.BlockIDWire = append([]byte(nil), v...)
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return errors.New("grpc transport: uploadBlockRequest: bad field 2")
			}
			m.Bytes = append([]byte(nil), v...)
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return errors.New("grpc transport: uploadBlockRequest: bad field 3")
			}
			m.LevelFlags = byte(v)
			b = b[n:]
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return errors.New("grpc transport: uploadBlockRequest: bad field 4")
			}
			m.Replication = uint32(v)
			b = b[n:]
		case num == 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return errors.New("grpc transport: uploadBlockRequest: bad field 5")
			}
			m.Tag = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.New("grpc transport: uploadBlockRequest: bad field")
			}
			b = b[n:]
		}
	}
	return nil
}

// uploadBlockResponse is RPC 2's (empty) response.
type uploadBlockResponse struct{}

func (m *uploadBlockResponse) Marshal() ([]byte, error) { return nil, nil }
func (m *uploadBlockResponse) Unmarshal(b []byte) error  { return nil }

// levelFlags bit positions within uploadBlockRequest.LevelFlags.
const (
	flagUseDisk = 1 << iota
	flagUseMemory
	flagUseOffHeap
	flagDeserialized
)

func encodeLevelFlags(useDisk, useMemory, useOffHeap, deserialized bool) byte {
	var f byte
	if useDisk {
		f |= flagUseDisk
	}
	if useMemory {
		f |= flagUseMemory
	}
	if useOffHeap {
		f |= flagUseOffHeap
	}
	if deserialized {
		f |= flagDeserialized
	}
	return f
}

func decodeLevelFlags(f byte) (useDisk, useMemory, useOffHeap, deserialized bool) {
	return f&flagUseDisk != 0, f&flagUseMemory != 0, f&flagUseOffHeap != 0, f&flagDeserialized != 0
}
