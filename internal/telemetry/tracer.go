package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for BlockManager operations.
const (
	AttrBlockID        = "block.id"
	AttrBlockType      = "block.type" // rdd, shuffle, broadcast, taskresult, templocal, stream
	AttrStorageLevel   = "block.storage_level"
	AttrPeerID         = "peer.id"
	AttrTaskID         = "task.id"
	AttrOperation      = "bm.operation"
	AttrMemSize        = "block.mem_size"
	AttrDiskSize       = "block.disk_size"
	AttrReplication    = "block.replication"
	AttrPeersTargeted  = "replicate.peers_targeted"
	AttrPeersAchieved  = "replicate.peers_achieved"
	AttrFailureCount   = "retry.failure_count"
	AttrAttempt        = "retry.attempt"
	AttrLocationCount  = "fetch.location_count"
	AttrCacheHit       = "store.hit"
	AttrStoreTier      = "store.tier" // memory, disk
)

// Span names for BlockManager operations.
const (
	SpanPut        = "blockmgr.put"
	SpanGet        = "blockmgr.get"
	SpanGetLocal   = "blockmgr.get_local"
	SpanGetRemote  = "blockmgr.get_remote"
	SpanEvict      = "blockmgr.evict"
	SpanReplicate  = "replication.replicate"
	SpanFetch      = "remotefetch.fetch"
	SpanLockRead   = "blockinfo.lock_read"
	SpanLockWrite  = "blockinfo.lock_write"
	SpanReportStat = "blockmgr.report_status"
)

// BlockID returns an attribute for a canonical BlockId string.
func BlockID(id string) attribute.KeyValue {
	return attribute.String(AttrBlockID, id)
}

// BlockType returns an attribute for the BlockId variant.
func BlockType(t string) attribute.KeyValue {
	return attribute.String(AttrBlockType, t)
}

// StorageLevel returns an attribute for a canonical StorageLevel string.
func StorageLevel(level string) attribute.KeyValue {
	return attribute.String(AttrStorageLevel, level)
}

// PeerID returns an attribute for a remote BlockManagerId string.
func PeerID(id string) attribute.KeyValue {
	return attribute.String(AttrPeerID, id)
}

// TaskID returns an attribute for a task identifier.
func TaskID(id string) attribute.KeyValue {
	return attribute.String(AttrTaskID, id)
}

// Operation returns an attribute for the sub-operation name.
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// MemSize returns an attribute for bytes resident in the memory tier.
func MemSize(n int64) attribute.KeyValue {
	return attribute.Int64(AttrMemSize, n)
}

// DiskSize returns an attribute for bytes resident in the disk tier.
func DiskSize(n int64) attribute.KeyValue {
	return attribute.Int64(AttrDiskSize, n)
}

// Replication returns an attribute for the requested replication factor.
func Replication(n int) attribute.KeyValue {
	return attribute.Int(AttrReplication, n)
}

// PeersTargeted returns an attribute for the number of peers targeted for replication.
func PeersTargeted(n int) attribute.KeyValue {
	return attribute.Int(AttrPeersTargeted, n)
}

// PeersAchieved returns an attribute for the number of peers actually replicated to.
func PeersAchieved(n int) attribute.KeyValue {
	return attribute.Int(AttrPeersAchieved, n)
}

// FailureCount returns an attribute for an accumulated failure count.
func FailureCount(n int) attribute.KeyValue {
	return attribute.Int(AttrFailureCount, n)
}

// Attempt returns an attribute for a retry attempt number.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// LocationCount returns an attribute for the number of candidate remote locations.
func LocationCount(n int) attribute.KeyValue {
	return attribute.Int(AttrLocationCount, n)
}

// CacheHit returns an attribute indicating whether a local tier served the block.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// StoreTier returns an attribute naming which tier served or holds a block.
func StoreTier(tier string) attribute.KeyValue {
	return attribute.String(AttrStoreTier, tier)
}

// StartPutSpan starts a span for a block put operation.
func StartPutSpan(ctx context.Context, blockID string, level string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{BlockID(blockID), StorageLevel(level)}, attrs...)
	return StartSpan(ctx, SpanPut, trace.WithAttributes(allAttrs...))
}

// StartGetSpan starts a span for a block get operation.
func StartGetSpan(ctx context.Context, blockID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{BlockID(blockID)}, attrs...)
	return StartSpan(ctx, SpanGet, trace.WithAttributes(allAttrs...))
}

// StartReplicateSpan starts a span for a replication attempt.
func StartReplicateSpan(ctx context.Context, blockID string, targeted int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{BlockID(blockID), PeersTargeted(targeted)}, attrs...)
	return StartSpan(ctx, SpanReplicate, trace.WithAttributes(allAttrs...))
}

// StartFetchSpan starts a span for a remote fetch attempt.
func StartFetchSpan(ctx context.Context, blockID string, locations int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{BlockID(blockID), LocationCount(locations)}, attrs...)
	return StartSpan(ctx, SpanFetch, trace.WithAttributes(allAttrs...))
}

// StartEvictSpan starts a span for a memory eviction.
func StartEvictSpan(ctx context.Context, blockID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{BlockID(blockID)}, attrs...)
	return StartSpan(ctx, SpanEvict, trace.WithAttributes(allAttrs...))
}
