package replication

import (
	"math/rand"

	"github.com/blockmgr/blockmanager/pkg/blockid"
)

// Policy prioritizes replication candidates. Prioritize returns at most
// numToPick of candidates, ordered by preference; the caller uploads to them
// in the returned order.
type Policy interface {
	Prioritize(self blockid.BlockManagerId, candidates []blockid.BlockManagerId, numToPick int) []blockid.BlockManagerId
}

// RandomTopologyAwarePolicy scores peers sharing self's TopologyInfo (same
// rack/zone) above peers that don't, randomizing within each tier. This is
// the default policy.
type RandomTopologyAwarePolicy struct{}

// Prioritize implements Policy.
func (RandomTopologyAwarePolicy) Prioritize(self blockid.BlockManagerId, candidates []blockid.BlockManagerId, numToPick int) []blockid.BlockManagerId {
	if numToPick <= 0 || len(candidates) == 0 {
		return nil
	}

	sameRack := make([]blockid.BlockManagerId, 0, len(candidates))
	other := make([]blockid.BlockManagerId, 0, len(candidates))
	for _, c := range candidates {
		if self.TopologyInfo != "" && c.TopologyInfo == self.TopologyInfo {
			sameRack = append(sameRack, c)
		} else {
			other = append(other, c)
		}
	}
	rand.Shuffle(len(sameRack), func(i, j int) { sameRack[i], sameRack[j] = sameRack[j], sameRack[i] })
	rand.Shuffle(len(other), func(i, j int) { other[i], other[j] = other[j], other[i] })

	ordered := append(sameRack, other...)
	if numToPick > len(ordered) {
		numToPick = len(ordered)
	}
	return ordered[:numToPick]
}
