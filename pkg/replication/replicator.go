// Package replication implements peer selection and bounded-retry block
// replication. A Replicator runs replication jobs on a semaphore-bounded
// worker pool so a flood of concurrent puts cannot spawn unbounded
// goroutines.
package replication

import (
	"context"
	"sync"
	"time"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/internal/telemetry"
	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/master"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

// DefaultMaxWorkers bounds concurrent in-flight replication jobs.
const DefaultMaxWorkers = 128

// Config parameterizes a Replicator.
type Config struct {
	// MaxReplicationFailures is the number of per-call upload failures
	// tolerated before a replication job gives up. Default 1.
	MaxReplicationFailures int

	// CachedPeersTTL bounds how long a fetched peer set is reused before a
	// fresh GetPeers call is made.
	CachedPeersTTL time.Duration

	// MaxWorkers bounds concurrent replication jobs.
	MaxWorkers int
}

// DefaultConfig returns the default Replicator configuration.
func DefaultConfig() Config {
	return Config{
		MaxReplicationFailures: 1,
		CachedPeersTTL:         60 * time.Second,
		MaxWorkers:             DefaultMaxWorkers,
	}
}

// Future is returned by ReplicateAsync; Wait blocks until the replication
// job completes and returns the peers successfully replicated to.
type Future struct {
	done  chan struct{}
	peers []blockid.BlockManagerId
}

// Wait blocks until replication completes, returning the peers that
// received a copy. Safe to call more than once.
func (f *Future) Wait() []blockid.BlockManagerId {
	<-f.done
	return f.peers
}

// Replicator drives peer selection and bounded-retry uploads for a single
// BlockManager node.
type Replicator struct {
	self      blockid.BlockManagerId
	master    master.Master
	transport transport.Transport
	policy    Policy
	cfg       Config

	sem chan struct{}

	mu          sync.Mutex
	peerCache   []blockid.BlockManagerId
	peerCacheAt time.Time
}

// New returns a Replicator representing self, using m to discover peers and
// t to upload to them. A nil policy defaults to RandomTopologyAwarePolicy.
func New(self blockid.BlockManagerId, m master.Master, t transport.Transport, policy Policy, cfg Config) *Replicator {
	if policy == nil {
		policy = RandomTopologyAwarePolicy{}
	}
	if cfg.MaxReplicationFailures <= 0 {
		cfg.MaxReplicationFailures = 1
	}
	if cfg.CachedPeersTTL <= 0 {
		cfg.CachedPeersTTL = 60 * time.Second
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	return &Replicator{
		self:      self,
		master:    m,
		transport: t,
		policy:    policy,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxWorkers),
	}
}

// ReplicateAsync launches a replication job for id's data on the worker
// pool and returns a Future once the job has started; it blocks while
// MaxWorkers jobs are already in flight. level.Replication-1 peers
// (excluding existingReplicas and self) are targeted.
func (r *Replicator) ReplicateAsync(ctx context.Context, id blockid.BlockId, data []byte, level blockid.StorageLevel, tag string, existingReplicas []blockid.BlockManagerId) *Future {
	fut := &Future{done: make(chan struct{})}

	r.sem <- struct{}{}
	go func() {
		defer func() {
			<-r.sem
			close(fut.done)
		}()
		fut.peers = r.replicateSync(ctx, id, data, level, tag, existingReplicas)
	}()
	return fut
}

func excludeKnown(candidates []blockid.BlockManagerId, excluded map[string]bool) []blockid.BlockManagerId {
	out := make([]blockid.BlockManagerId, 0, len(candidates))
	for _, c := range candidates {
		if !excluded[c.ExecutorID] {
			out = append(out, c)
		}
	}
	return out
}

func (r *Replicator) replicateSync(ctx context.Context, id blockid.BlockId, data []byte, level blockid.StorageLevel, tag string, existingReplicas []blockid.BlockManagerId) []blockid.BlockManagerId {
	target := int(level.Replication) - 1
	if target <= 0 {
		return nil
	}

	ctx, span := telemetry.StartReplicateSpan(ctx, id.Name(), target)
	defer span.End()

	excluded := make(map[string]bool, len(existingReplicas)+1)
	excluded[r.self.ExecutorID] = true
	for _, p := range existingReplicas {
		excluded[p.ExecutorID] = true
	}

	var achieved []blockid.BlockManagerId
	numFailures := 0
	forceRefresh := false
	defer func() { span.SetAttributes(telemetry.PeersAchieved(len(achieved))) }()

	for len(achieved) < target {
		peers, err := r.peerSet(ctx, forceRefresh)
		forceRefresh = false
		if err != nil {
			logger.WarnCtx(ctx, "replication: peer set unavailable", logger.BlockID(id.Name()), "error", err)
			break
		}

		candidates := excludeKnown(peers, excluded)
		if len(candidates) == 0 {
			break
		}

		picked := r.policy.Prioritize(r.self, candidates, target-len(achieved))
		if len(picked) == 0 {
			break
		}

		progressed := false
		for _, peer := range picked {
			if len(achieved) >= target {
				break
			}

			buf := transport.ManagedBuffer{Bytes: data, Size: int64(len(data))}
			err := r.transport.UploadBlockSync(ctx, peer.Host, peer.Port, peer.ExecutorID, id, buf, level, tag)
			if err != nil {
				numFailures++
				excluded[peer.ExecutorID] = true
				forceRefresh = true
				logger.WarnCtx(ctx, "replication: upload to peer failed",
					logger.BlockID(id.Name()), logger.PeerID(peer.String()), "error", err)
				if numFailures > r.cfg.MaxReplicationFailures {
					logger.WarnCtx(ctx, "replication: giving up after too many failures",
						logger.BlockID(id.Name()), "achieved", len(achieved), "target", target)
					return achieved
				}
				continue
			}

			excluded[peer.ExecutorID] = true
			achieved = append(achieved, peer)
			progressed = true
		}
		if !progressed && !forceRefresh {
			break
		}
	}

	if len(achieved) < target {
		logger.WarnCtx(ctx, "replication: fewer peers replicated to than target",
			logger.BlockID(id.Name()), "achieved", len(achieved), "target", target)
	}
	return achieved
}

// peerSet returns the current peer set, refreshing from the master if
// forceRefresh is set or the cache has exceeded CachedPeersTTL.
func (r *Replicator) peerSet(ctx context.Context, forceRefresh bool) ([]blockid.BlockManagerId, error) {
	r.mu.Lock()
	if !forceRefresh && r.peerCache != nil && time.Since(r.peerCacheAt) < r.cfg.CachedPeersTTL {
		peers := r.peerCache
		r.mu.Unlock()
		return peers, nil
	}
	r.mu.Unlock()

	peers, err := r.master.GetPeers(ctx, r.self)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.peerCache = peers
	r.peerCacheAt = time.Now()
	r.mu.Unlock()
	return peers, nil
}
