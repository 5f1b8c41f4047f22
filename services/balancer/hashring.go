package balancer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Arashek/ADE-stable-1.0-sub004/models"
)

// hashRing maps request keys to instances with consistent hashing.
//
// Each instance contributes N virtual nodes hashed from "{id}:{i}" using
// xxhash64, a stable hash independent of process and platform, so the
// same key maps to the same instance across runs. Keys resolve to the
// first ring position with hash >= key hash, wrapping to the start of
// the ring.
type hashRing struct {
	hashes    []uint64
	owners    map[uint64]*models.Instance
	signature string
}

// buildRing constructs a sorted ring from the candidates with the given
// virtual node count per instance
func buildRing(candidates []*models.Instance, replicas int) *hashRing {
	r := &hashRing{
		hashes:    make([]uint64, 0, len(candidates)*replicas),
		owners:    make(map[uint64]*models.Instance, len(candidates)*replicas),
		signature: ringSignature(candidates),
	}
	for _, inst := range candidates {
		for i := 0; i < replicas; i++ {
			h := xxhash.Sum64String(inst.ID + ":" + strconv.Itoa(i))
			if _, taken := r.owners[h]; taken {
				continue
			}
			r.hashes = append(r.hashes, h)
			r.owners[h] = inst
		}
	}
	sort.Slice(r.hashes, func(i, j int) bool { return r.hashes[i] < r.hashes[j] })
	return r
}

// lookup returns the instance owning the key, or nil for an empty ring
func (r *hashRing) lookup(key string) *models.Instance {
	if len(r.hashes) == 0 {
		return nil
	}
	h := xxhash.Sum64String(key)
	idx := sort.Search(len(r.hashes), func(i int) bool {
		return r.hashes[i] >= h
	})
	if idx == len(r.hashes) {
		idx = 0
	}
	return r.owners[r.hashes[idx]]
}

// ringSignature derives a topology fingerprint from the candidate ids.
// Two candidate sets with the same ids produce the same signature, so the
// cached ring survives reordering but not membership changes.
func ringSignature(candidates []*models.Instance) string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
