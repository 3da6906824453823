package gen

import (
	"sort"

	"qaforge/types"

	"github.com/google/uuid"
)

// DefaultYieldThreshold separates "low coverage" chunks (fewer saved cases
// per attempt) from the rest when prioritization is on.
const DefaultYieldThreshold = 0.7

// SelectRemaining returns the chunks that still need generation under the
// given settings hash: all chunks minus those with a matching run. With
// prioritize set, chunks whose historical yield (under any settings) sits
// below the threshold come first; never-attempted chunks keep their neutral
// position after them. Chunk index is the stable tie-break throughout.
//
// An empty result is the normal "nothing left to do" state, not an error.
func SelectRemaining(chunks []types.Chunk, runs []types.GenerationRun, settingsHash string, prioritize bool, yieldThreshold float64) []types.Chunk {
	if yieldThreshold <= 0 {
		yieldThreshold = DefaultYieldThreshold
	}

	processed := make(map[uuid.UUID]struct{})
	for _, r := range runs {
		if r.SettingsHash == settingsHash {
			processed[r.ChunkID] = struct{}{}
		}
	}

	remaining := make([]types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := processed[c.ID]; !ok {
			remaining = append(remaining, c)
		}
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].Index < remaining[j].Index
	})

	if !prioritize || len(remaining) < 2 {
		return remaining
	}

	lowYield := lowYieldChunks(runs, yieldThreshold)

	// Stable partition: low-yield chunks move to the front, everything else
	// keeps its chunk-index order.
	sort.SliceStable(remaining, func(i, j int) bool {
		_, li := lowYield[remaining[i].ID]
		_, lj := lowYield[remaining[j].ID]
		return li && !lj
	})

	return remaining
}

// lowYieldChunks marks chunks whose attempts so far, under any settings,
// saved fewer cases per call than the threshold.
func lowYieldChunks(runs []types.GenerationRun, threshold float64) map[uuid.UUID]struct{} {
	attempts := make(map[uuid.UUID]int)
	saved := make(map[uuid.UUID]int)
	for _, r := range runs {
		attempts[r.ChunkID]++
		saved[r.ChunkID] += r.Saved
	}

	low := make(map[uuid.UUID]struct{})
	for chunkID, n := range attempts {
		if n == 0 {
			continue
		}
		if float64(saved[chunkID])/float64(n) < threshold {
			low[chunkID] = struct{}{}
		}
	}
	return low
}
