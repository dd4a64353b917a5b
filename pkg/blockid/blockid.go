// Package blockid implements BlockId and StorageLevel, the typed identifiers
// and placement policies that every other BlockManager component addresses
// blocks by.
package blockid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidName is returned when a canonical BlockId string cannot be parsed.
var ErrInvalidName = errors.New("blockid: invalid name")

// BlockId is the closed sum type identifying a block. Implementations are
// RDDBlockId, ShuffleBlockId, BroadcastBlockId, TaskResultBlockId,
// TempLocalBlockId and StreamBlockId.
type BlockId interface {
	// Name returns the canonical textual form, e.g. "rdd_12_3".
	Name() string

	// IsShuffle reports whether reads of this block bypass the lock manager.
	IsShuffle() bool
}

// RDDBlockId addresses a partition of a cached RDD.
type RDDBlockId struct {
	RDDID     int
	Partition int
}

func (b RDDBlockId) Name() string    { return fmt.Sprintf("rdd_%d_%d", b.RDDID, b.Partition) }
func (b RDDBlockId) IsShuffle() bool { return false }

// ShuffleBlockId addresses a single map-reduce pair of a shuffle stage.
type ShuffleBlockId struct {
	ShuffleID int
	MapID     int
	ReduceID  int
}

func (b ShuffleBlockId) Name() string {
	return fmt.Sprintf("shuffle_%d_%d_%d", b.ShuffleID, b.MapID, b.ReduceID)
}
func (b ShuffleBlockId) IsShuffle() bool { return true }

// BroadcastBlockId addresses a broadcast variable, optionally a named field
// of it (e.g. its piece index when split for transfer).
type BroadcastBlockId struct {
	BroadcastID int
	Field       string
}

func (b BroadcastBlockId) Name() string {
	if b.Field == "" {
		return fmt.Sprintf("broadcast_%d", b.BroadcastID)
	}
	return fmt.Sprintf("broadcast_%d_%s", b.BroadcastID, b.Field)
}
func (b BroadcastBlockId) IsShuffle() bool { return false }

// TaskResultBlockId addresses the (possibly oversize) serialized result of a
// single task, shipped back to the driver out of band.
type TaskResultBlockId struct {
	TaskID int64
}

func (b TaskResultBlockId) Name() string    { return fmt.Sprintf("taskresult_%d", b.TaskID) }
func (b TaskResultBlockId) IsShuffle() bool { return false }

// TempLocalBlockId addresses ephemeral scratch data private to this node,
// never reported to the master.
type TempLocalBlockId struct {
	ID string
}

func (b TempLocalBlockId) Name() string    { return fmt.Sprintf("temp_local_%s", b.ID) }
func (b TempLocalBlockId) IsShuffle() bool { return false }

// StreamBlockId addresses a block belonging to a receiver stream.
type StreamBlockId struct {
	StreamID int
	UniqueID int64
}

func (b StreamBlockId) Name() string {
	return fmt.Sprintf("input-%d-%d", b.StreamID, b.UniqueID)
}
func (b StreamBlockId) IsShuffle() bool { return false }

// Parse reconstructs a BlockId from its canonical textual form.
func Parse(name string) (BlockId, error) {
	parts := strings.Split(name, "_")
	switch {
	case strings.HasPrefix(name, "rdd_") && len(parts) == 3:
		rddID, err1 := strconv.Atoi(parts[1])
		partition, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		return RDDBlockId{RDDID: rddID, Partition: partition}, nil

	case strings.HasPrefix(name, "shuffle_") && len(parts) == 4:
		shuffleID, err1 := strconv.Atoi(parts[1])
		mapID, err2 := strconv.Atoi(parts[2])
		reduceID, err3 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		return ShuffleBlockId{ShuffleID: shuffleID, MapID: mapID, ReduceID: reduceID}, nil

	case strings.HasPrefix(name, "broadcast_") && len(parts) >= 2:
		broadcastID, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		field := ""
		if len(parts) > 2 {
			field = strings.Join(parts[2:], "_")
		}
		return BroadcastBlockId{BroadcastID: broadcastID, Field: field}, nil

	case strings.HasPrefix(name, "taskresult_") && len(parts) == 2:
		taskID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		return TaskResultBlockId{TaskID: taskID}, nil

	case strings.HasPrefix(name, "temp_local_"):
		return TempLocalBlockId{ID: strings.TrimPrefix(name, "temp_local_")}, nil

	case strings.HasPrefix(name, "input-") && len(parts) >= 1:
		segs := strings.Split(name, "-")
		if len(segs) != 3 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		streamID, err1 := strconv.Atoi(segs[1])
		uniqueID, err2 := strconv.ParseInt(segs[2], 10, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		return StreamBlockId{StreamID: streamID, UniqueID: uniqueID}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
}
