// Package reassembly orders a fragment cluster into a single
// reconstructed file, extending the tail greedily and rescuing orphan
// fragments after repeated rejection, per spec §4.7. New code: the
// teacher's carver.go never chains fragments together at all.
package reassembly

import (
	"github.com/shubham/ghostrecover/internal/fragment"
)

const (
	tailExtensionMinMatch = 0.5
	orphanRescuePenalty   = 0.5
	maxRejections         = 3
	gapPenalty            = 0.8
	signatureBonus        = 1.1
	cycleCheckDepth       = 10
)

// Result is a reassembled sequence of fragments plus its confidence
// and whether any gap was left unfilled.
type Result struct {
	FragmentIDs []uint64
	HasGap      bool
	Confidence  float64
}

// Reassemble orders every fragment in ids (drawn from the catalog)
// into one chain: start with the fragment carrying a signature if one
// exists, then repeatedly extend the tail with the best-matching
// unused fragment, falling back to orphan rescue after three
// consecutive rejections.
func Reassemble(cat *fragment.Catalog, ids []uint64) Result {
	if len(ids) == 0 {
		return Result{}
	}

	remaining := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		remaining[id] = true
	}

	start := pickStart(cat, ids)
	delete(remaining, start)

	chain := []uint64{start}
	var matchScores []float64
	hasGap := false
	rejections := 0

	used := map[uint64]bool{start: true}
	tail, _ := cat.Get(start)
	for len(remaining) > 0 {
		bestID, bestScore, ok := bestMatch(cat, tail, remaining)
		if ok && bestScore > tailExtensionMinMatch && !reentersUsed(cat, bestID, tail.ID, used, cycleCheckDepth) {
			chain = append(chain, bestID)
			matchScores = append(matchScores, bestScore)
			delete(remaining, bestID)
			used[bestID] = true
			tail, _ = cat.Get(bestID)
			rejections = 0
			continue
		}

		rejections++
		if rejections < maxRejections {
			hasGap = true
			continue
		}

		// Orphan rescue: pick the unused fragment with the highest
		// combined temporal/spatial proximity to any already-placed
		// fragment, downweighted to 0.5 (spec §4.7).
		rescueID, rescueScore, ok := bestProximityToAny(cat, chain, remaining)
		if !ok {
			break
		}
		chain = append(chain, rescueID)
		matchScores = append(matchScores, rescueScore*orphanRescuePenalty)
		delete(remaining, rescueID)
		used[rescueID] = true
		tail, _ = cat.Get(rescueID)
		hasGap = true
		rejections = 0
	}

	return Result{
		FragmentIDs: chain,
		HasGap:      hasGap || len(remaining) > 0,
		Confidence:  confidence(matchScores, cat, start, hasGap || len(remaining) > 0),
	}
}

func pickStart(cat *fragment.Catalog, ids []uint64) uint64 {
	for _, id := range ids {
		f, ok := cat.Get(id)
		if ok && f.Signature != "" {
			return id
		}
	}
	return ids[0]
}

func bestMatch(cat *fragment.Catalog, tail fragment.Fragment, remaining map[uint64]bool) (uint64, float64, bool) {
	var bestID uint64
	bestScore := -1.0
	found := false
	for id := range remaining {
		cand, ok := cat.Get(id)
		if !ok {
			continue
		}
		score := fragment.MatchScore(tail, cand)
		if score > bestScore {
			bestScore = score
			bestID = id
			found = true
		}
	}
	return bestID, bestScore, found
}

// reentersUsed walks candidate's own forced best-match chain (against
// the whole catalog, not just the remaining pool) up to depth steps:
// if that hypothetical continuation would loop back into a fragment
// already placed in the chain, the candidate is rejected (spec §4.7
// guard 1, cycle avoidance). Each step skips the fragment it was
// reached from, so the symmetric back-link to the tail (from) does not
// count as a re-entry.
func reentersUsed(cat *fragment.Catalog, candidate, from uint64, used map[uint64]bool, depth int) bool {
	seen := map[uint64]bool{candidate: true}
	prev := from
	cur := candidate
	for i := 0; i < depth; i++ {
		curFrag, ok := cat.Get(cur)
		if !ok {
			return false
		}
		next, nextScore, found := bestMatchAll(cat, curFrag, cur, prev)
		if !found || nextScore <= tailExtensionMinMatch {
			return false
		}
		if used[next] {
			return true
		}
		if seen[next] {
			return false // the lookahead chain cycles on itself, not on `used`
		}
		seen[next] = true
		prev = cur
		cur = next
	}
	return false
}

func bestMatchAll(cat *fragment.Catalog, from fragment.Fragment, excludeIDs ...uint64) (uint64, float64, bool) {
	var bestID uint64
	bestScore := -1.0
	found := false
	for _, id := range cat.All() {
		if containsID(excludeIDs, id) {
			continue
		}
		cand, ok := cat.Get(id)
		if !ok {
			continue
		}
		score := fragment.MatchScore(from, cand)
		if score > bestScore {
			bestScore = score
			bestID = id
			found = true
		}
	}
	return bestID, bestScore, found
}

func containsID(ids []uint64, id uint64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func bestProximityToAny(cat *fragment.Catalog, placed []uint64, remaining map[uint64]bool) (uint64, float64, bool) {
	var bestID uint64
	bestScore := -1.0
	found := false
	for id := range remaining {
		cand, ok := cat.Get(id)
		if !ok {
			continue
		}
		for _, placedID := range placed {
			anchor, ok := cat.Get(placedID)
			if !ok {
				continue
			}
			score := fragment.MatchScore(anchor, cand)
			if score > bestScore {
				bestScore = score
				bestID = id
				found = true
			}
		}
	}
	return bestID, bestScore, found
}

func confidence(matchScores []float64, cat *fragment.Catalog, startID uint64, hasGap bool) float64 {
	if len(matchScores) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, s := range matchScores {
		sum += s
	}
	avg := sum / float64(len(matchScores))

	if hasGap {
		avg *= gapPenalty
	}
	if start, ok := cat.Get(startID); ok && start.Signature != "" {
		avg *= signatureBonus
	}
	if avg > 1.0 {
		avg = 1.0
	}
	if avg < 0 {
		avg = 0
	}
	return avg
}
