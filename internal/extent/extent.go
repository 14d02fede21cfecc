// Package extent selects a reconstruction strategy for a deleted file
// and extends/merges its block ranges. The strategy-selection pattern
// is grounded on the teacher's carveMode/scanOnly dual-path branching
// in cmd/recover/main.go, generalized from a single binary switch to
// spec §4.8's five-way priority order.
package extent

import (
	"sort"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/shubham/ghostrecover/internal/fragment"
	"github.com/shubham/ghostrecover/internal/model"
)

// Strategy names the reconstruction approach chosen for a file.
type Strategy string

const (
	StrategyFragmentAssembly Strategy = "fragment_assembly"
	StrategySignatureBased   Strategy = "signature_based"
	StrategyPatternBased     Strategy = "pattern_based"
	StrategySequential       Strategy = "sequential"
	StrategyHybrid           Strategy = "hybrid"
)

const largeFileThreshold = 1 << 20 // 1 MiB

// SelectStrategy implements spec §4.8's priority order: FragmentAssembly
// if the catalog holds candidate fragments for this file, else
// SignatureBased if the mime is known, else PatternBased for files
// over 1 MiB, else Sequential.
func SelectStrategy(catalogNonEmpty bool, mimeKnown bool, fileSize uint64) Strategy {
	switch {
	case catalogNonEmpty:
		return StrategyFragmentAssembly
	case mimeKnown:
		return StrategySignatureBased
	case fileSize > largeFileThreshold:
		return StrategyPatternBased
	default:
		return StrategySequential
	}
}

// isNonDataBlock classifies a block as non-data: all zero, or a single
// repeated byte value (a fill pattern), matching spec §4.8's
// sequential-extension stop condition.
func isNonDataBlock(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	first := b[0]
	for _, v := range b {
		if v != first {
			return false
		}
	}
	return true
}

// ExtendSequential probes forward one block at a time from the end of
// the last range in ranges, stopping at the first non-data block, and
// capping total extension at 2x the original block count.
func ExtendSequential(src blocksource.Source, ranges []model.BlockRange, blockSize int64) []model.BlockRange {
	if len(ranges) == 0 || blockSize <= 0 {
		return ranges
	}
	var originalBlocks uint64
	for _, r := range ranges {
		originalBlocks += r.Count
	}
	maxExtra := originalBlocks

	last := &ranges[len(ranges)-1]
	var extended uint64
	offset := int64(last.Start+last.Count) * blockSize

	for extended < maxExtra {
		if offset+blockSize > src.Size() {
			break
		}
		buf, err := src.Read(offset, blockSize)
		if err != nil || isNonDataBlock(buf) {
			break
		}
		last.Count++
		extended++
		offset += blockSize
	}
	return ranges
}

// MergeRanges sorts block ranges by start and merges adjacent or
// overlapping ones (contiguity within 1 block), per spec §4.8 and §8
// invariant 5 (idempotent: merging an already-merged set is a no-op).
func MergeRanges(ranges []model.BlockRange) []model.BlockRange {
	if len(ranges) == 0 {
		return ranges
	}
	sorted := append([]model.BlockRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []model.BlockRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.Start+last.Count+1 {
			end := r.Start + r.Count
			lastEnd := last.Start + last.Count
			if end > lastEnd {
				last.Count = end - last.Start
			}
			last.Allocated = last.Allocated || r.Allocated
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// BuildFromFragments constructs block ranges covering every fragment
// in a reassembled chain, in chain order (FragmentAssembly strategy).
func BuildFromFragments(cat *fragment.Catalog, chain []uint64, blockSize int64) []model.BlockRange {
	var ranges []model.BlockRange
	for _, id := range chain {
		f, ok := cat.Get(id)
		if !ok || f.StartOffset < 0 || f.Size <= 0 {
			continue
		}
		startBlock := uint64(f.StartOffset / blockSize)
		countBlocks := uint64((f.Size + blockSize - 1) / blockSize)
		if countBlocks == 0 {
			countBlocks = 1
		}
		ranges = append(ranges, model.BlockRange{Start: startBlock, Count: countBlocks, Allocated: true})
	}
	return MergeRanges(ranges)
}
