package blockid

import (
	"bytes"
	"errors"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Tag bytes identifying each BlockId variant on the wire. BlockId is a
// closed sum type serialized via explicit tag bytes rather than name-based
// reflection.
const (
	tagRDD uint32 = iota
	tagShuffle
	tagBroadcast
	tagTaskResult
	tagTempLocal
	tagStream
)

// ErrUnknownTag is returned by Decode when the wire form carries an
// unrecognized variant tag.
var ErrUnknownTag = errors.New("blockid: unknown wire tag")

// wireRDD etc. are the tagged XDR structs each variant marshals through.
// go-xdr encodes exported struct fields in declaration order.
type wireRDD struct {
	RDDID     int32
	Partition int32
}

type wireShuffle struct {
	ShuffleID int32
	MapID     int32
	ReduceID  int32
}

type wireBroadcast struct {
	BroadcastID int32
	Field       string
}

type wireTaskResult struct {
	TaskID int64
}

type wireTempLocal struct {
	ID string
}

type wireStream struct {
	StreamID int32
	UniqueID int64
}

// Encode writes the tagged binary wire form of id: a uint32 tag followed by
// the XDR encoding of the variant's fields.
func Encode(id BlockId) ([]byte, error) {
	var buf bytes.Buffer

	tag, payload, err := tagAndPayload(id)
	if err != nil {
		return nil, err
	}
	if _, err := xdr.Marshal(&buf, tag); err != nil {
		return nil, fmt.Errorf("blockid: encode tag: %w", err)
	}
	if _, err := xdr.Marshal(&buf, payload); err != nil {
		return nil, fmt.Errorf("blockid: encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

func tagAndPayload(id BlockId) (uint32, any, error) {
	switch v := id.(type) {
	case RDDBlockId:
		return tagRDD, &wireRDD{RDDID: int32(v.RDDID), Partition: int32(v.Partition)}, nil
	case ShuffleBlockId:
		return tagShuffle, &wireShuffle{ShuffleID: int32(v.ShuffleID), MapID: int32(v.MapID), ReduceID: int32(v.ReduceID)}, nil
	case BroadcastBlockId:
		return tagBroadcast, &wireBroadcast{BroadcastID: int32(v.BroadcastID), Field: v.Field}, nil
	case TaskResultBlockId:
		return tagTaskResult, &wireTaskResult{TaskID: v.TaskID}, nil
	case TempLocalBlockId:
		return tagTempLocal, &wireTempLocal{ID: v.ID}, nil
	case StreamBlockId:
		return tagStream, &wireStream{StreamID: int32(v.StreamID), UniqueID: v.UniqueID}, nil
	default:
		return 0, nil, fmt.Errorf("blockid: unencodable type %T", id)
	}
}

// Decode parses the tagged binary wire form produced by Encode.
func Decode(data []byte) (BlockId, error) {
	r := bytes.NewReader(data)

	var tag uint32
	if _, err := xdr.Unmarshal(r, &tag); err != nil {
		return nil, fmt.Errorf("blockid: decode tag: %w", err)
	}

	switch tag {
	case tagRDD:
		var w wireRDD
		if _, err := xdr.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("blockid: decode rdd: %w", err)
		}
		return RDDBlockId{RDDID: int(w.RDDID), Partition: int(w.Partition)}, nil

	case tagShuffle:
		var w wireShuffle
		if _, err := xdr.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("blockid: decode shuffle: %w", err)
		}
		return ShuffleBlockId{ShuffleID: int(w.ShuffleID), MapID: int(w.MapID), ReduceID: int(w.ReduceID)}, nil

	case tagBroadcast:
		var w wireBroadcast
		if _, err := xdr.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("blockid: decode broadcast: %w", err)
		}
		return BroadcastBlockId{BroadcastID: int(w.BroadcastID), Field: w.Field}, nil

	case tagTaskResult:
		var w wireTaskResult
		if _, err := xdr.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("blockid: decode taskresult: %w", err)
		}
		return TaskResultBlockId{TaskID: w.TaskID}, nil

	case tagTempLocal:
		var w wireTempLocal
		if _, err := xdr.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("blockid: decode templocal: %w", err)
		}
		return TempLocalBlockId{ID: w.ID}, nil

	case tagStream:
		var w wireStream
		if _, err := xdr.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("blockid: decode stream: %w", err)
		}
		return StreamBlockId{StreamID: int(w.StreamID), UniqueID: w.UniqueID}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
}
