// Package remotefetch implements location-ordered retrieval of a block's
// bytes from whichever peers the master reports as holding a copy.
package remotefetch

import (
	"context"
	"errors"
	"math/rand"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/internal/telemetry"
	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/master"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

// ErrBlockUnknown is returned when the master has no record of the block at
// any location.
var ErrBlockUnknown = errors.New("remotefetch: block has no known locations")

// ErrAllLocationsFailed is returned once the total failure budget across all
// locations is exhausted without a successful fetch.
var ErrAllLocationsFailed = errors.New("remotefetch: exhausted all locations")

// DefaultMaxFailuresBeforeLocationRefresh matches the reference config.
const DefaultMaxFailuresBeforeLocationRefresh = 5

// DefaultMaxRemoteBlockSizeFetchToMem is the threshold above which a fetch
// response is spilled to a temp file instead of buffered in memory.
const DefaultMaxRemoteBlockSizeFetchToMem = 200 * 1024 * 1024

// Config parameterizes a Fetcher.
type Config struct {
	MaxFailuresBeforeLocationRefresh int
	MaxRemoteBlockSizeFetchToMem     int64
}

// DefaultConfig returns the default Fetcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxFailuresBeforeLocationRefresh: DefaultMaxFailuresBeforeLocationRefresh,
		MaxRemoteBlockSizeFetchToMem:     DefaultMaxRemoteBlockSizeFetchToMem,
	}
}

// Fetcher retrieves block bytes from remote peers on behalf of a local
// BlockManager.
type Fetcher struct {
	self      blockid.BlockManagerId
	master    master.Master
	transport transport.Transport
	tempFiles transport.TempFileAllocator
	cfg       Config
}

// New returns a Fetcher representing self. tempFiles may be nil; if so,
// oversize responses are still requested as fully in-memory.
func New(self blockid.BlockManagerId, m master.Master, t transport.Transport, tempFiles transport.TempFileAllocator, cfg Config) *Fetcher {
	if cfg.MaxFailuresBeforeLocationRefresh <= 0 {
		cfg.MaxFailuresBeforeLocationRefresh = DefaultMaxFailuresBeforeLocationRefresh
	}
	if cfg.MaxRemoteBlockSizeFetchToMem <= 0 {
		cfg.MaxRemoteBlockSizeFetchToMem = DefaultMaxRemoteBlockSizeFetchToMem
	}
	return &Fetcher{self: self, master: m, transport: t, tempFiles: tempFiles, cfg: cfg}
}

// FetchRemoteBytes retrieves id's bytes from whichever peer serves them
// first.
func (f *Fetcher) FetchRemoteBytes(ctx context.Context, id blockid.BlockId) (transport.ManagedBuffer, error) {
	locations, status, ok, err := f.master.GetLocationsAndStatus(ctx, id)
	if err != nil {
		return transport.ManagedBuffer{}, err
	}
	if !ok || len(locations) == 0 {
		return transport.ManagedBuffer{}, ErrBlockUnknown
	}

	ctx, span := telemetry.StartFetchSpan(ctx, id.Name(), len(locations))
	defer span.End()

	blockSize := status.DiskSize
	if status.MemSize > blockSize {
		blockSize = status.MemSize
	}

	var tempFileAllocator transport.TempFileAllocator
	if blockSize > f.cfg.MaxRemoteBlockSizeFetchToMem {
		tempFileAllocator = f.tempFiles
	}

	ordered := f.sortByAffinity(locations)

	// failures counts fetch attempts since the last refresh (or since the
	// start, before any refresh). Once it crosses the threshold, a refresh
	// is attempted. This budget is deliberately independent of len(ordered):
	// tying it to len(ordered) makes the threshold unreachable whenever
	// MaxFailuresBeforeLocationRefresh exceeds 1, since a round-robin pass
	// over all locations accumulates exactly one failure per location.
	// refreshed allows exactly one refresh per call. If the refreshed
	// location set also exhausts its budget, the call gives up rather than
	// refreshing forever against a master that keeps returning the same
	// stale set.
	failures := 0
	idx := 0
	refreshed := false
	defer func() { span.SetAttributes(telemetry.FailureCount(failures)) }()

	for {
		if len(ordered) == 0 {
			return transport.ManagedBuffer{}, ErrAllLocationsFailed
		}
		loc := ordered[idx%len(ordered)]

		buf, err := f.transport.FetchBlockSync(ctx, loc.Host, loc.Port, loc.ExecutorID, id.Name(), tempFileAllocator)
		if err == nil {
			return buf, nil
		}

		failures++
		logger.WarnCtx(ctx, "remotefetch: fetch from location failed",
			logger.BlockID(id.Name()), logger.PeerID(loc.String()), "error", err)

		if failures >= f.cfg.MaxFailuresBeforeLocationRefresh {
			if refreshed {
				return transport.ManagedBuffer{}, ErrAllLocationsFailed
			}
			fresh, refreshErr := f.master.GetLocations(ctx, id)
			if refreshErr != nil || len(fresh) == 0 {
				return transport.ManagedBuffer{}, ErrAllLocationsFailed
			}
			ordered = f.sortByAffinity(fresh)
			failures = 0
			idx = 0
			refreshed = true
			continue
		}

		idx++
	}
}

// sortByAffinity orders candidates same-host first, then same-rack, then
// everyone else, randomizing within each tier.
func (f *Fetcher) sortByAffinity(candidates []blockid.BlockManagerId) []blockid.BlockManagerId {
	sameHost := make([]blockid.BlockManagerId, 0, len(candidates))
	sameRack := make([]blockid.BlockManagerId, 0, len(candidates))
	other := make([]blockid.BlockManagerId, 0, len(candidates))

	for _, c := range candidates {
		switch {
		case c.Host == f.self.Host:
			sameHost = append(sameHost, c)
		case f.self.TopologyInfo != "" && c.TopologyInfo == f.self.TopologyInfo:
			sameRack = append(sameRack, c)
		default:
			other = append(other, c)
		}
	}
	rand.Shuffle(len(sameHost), func(i, j int) { sameHost[i], sameHost[j] = sameHost[j], sameHost[i] })
	rand.Shuffle(len(sameRack), func(i, j int) { sameRack[i], sameRack[j] = sameRack[j], sameRack[i] })
	rand.Shuffle(len(other), func(i, j int) { other[i], other[j] = other[j], other[i] })

	out := make([]blockid.BlockManagerId, 0, len(candidates))
	out = append(out, sameHost...)
	out = append(out, sameRack...)
	out = append(out, other...)
	return out
}
