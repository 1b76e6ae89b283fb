package main

import (
	"fmt"
	"github.com/qubic/go-crowdsensing/business/domain/campaign"
	"hash/fnv"
	"time"
)

const (
	selectorLeastAssigned = "least-assigned"
	selectorHash          = "hash"
)

// newSelector builds the configured verifier selector. Without a seed the
// least-assigned selector is seeded from the clock and the hash selector
// from nothing.
func newSelector(name, seed string) (campaign.Selector, error) {
	switch name {
	case selectorLeastAssigned:
		return campaign.NewLeastAssignedSelector(seedValue(seed)), nil
	case selectorHash:
		return campaign.NewHashSelector(seed), nil
	default:
		return nil, fmt.Errorf("unknown selector [%s], expected [%s] or [%s]", name, selectorLeastAssigned, selectorHash)
	}
}

func seedValue(seed string) uint64 {
	if seed == "" {
		return uint64(time.Now().UnixNano())
	}
	h := fnv.New64a()
	h.Write([]byte(seed))
	return h.Sum64()
}
