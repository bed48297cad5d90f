package ballot

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
)

// ─── Seen-Voter Filter ──────────────────────────────────────────────────────
// Probabilistic "has this user already voted on this scenario" check used to
// skip the last-vote pointer read on the hot path. Answers:
//   - No  → definitely not seen by this process, skip the read
//   - Yes → possibly seen, fall through to the pointer read
//
// Only an optimization: the set-if-not-exists claim stays authoritative, so
// a cold filter after restart can never admit a duplicate.

// seenExpectedVoters sizes the filter for one scenario's worth of voters.
const seenExpectedVoters = 10_000

// seenFPRate is the target false positive rate; a false positive only costs
// one extra store read.
const seenFPRate = 0.001

type seenFilter struct {
	mu      sync.RWMutex
	bits    []uint64
	numBits uint
	numHash uint
}

// newSeenFilter sizes the filter with the standard optimal-bit formulas:
//
//	m = -(n * ln(p)) / (ln(2)^2)
//	k = (m/n) * ln(2)
func newSeenFilter() *seenFilter {
	n := float64(seenExpectedVoters)
	m := uint(math.Ceil(-(n * math.Log(seenFPRate)) / (math.Log(2) * math.Log(2))))
	k := uint(math.Ceil(float64(m) / n * math.Log(2)))

	return &seenFilter{
		bits:    make([]uint64, (m+63)/64),
		numBits: m,
		numHash: k,
	}
}

func (f *seenFilter) add(scenarioID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h1, h2 := baseHashes(scenarioID, userID)
	for i := uint(0); i < f.numHash; i++ {
		pos := f.nthHash(h1, h2, i)
		f.bits[pos/64] |= 1 << (pos % 64)
	}
}

// seen reports whether the pair might have been added. False is definitive.
func (f *seenFilter) seen(scenarioID, userID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h1, h2 := baseHashes(scenarioID, userID)
	for i := uint(0); i < f.numHash; i++ {
		pos := f.nthHash(h1, h2, i)
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// baseHashes derives two independent 32-bit hashes; nthHash extends them to
// k positions by double hashing (Kirsch-Mitzenmacher).
func baseHashes(scenarioID, userID string) (uint32, uint32) {
	sum := sha256.Sum256([]byte(scenarioID + ":" + userID))
	return binary.BigEndian.Uint32(sum[0:4]), binary.BigEndian.Uint32(sum[4:8])
}

func (f *seenFilter) nthHash(h1, h2 uint32, i uint) uint {
	return uint((uint64(h1) + uint64(i)*uint64(h2)) % uint64(f.numBits))
}
