// Package partial assembles a segment map for a file from catalogued
// fragments and judges whether the partially-recovered result is
// usable, per spec §4.8. New code grounded on the same strategy
// reasoning as internal/extent.
package partial

import (
	"sort"

	"github.com/shubham/ghostrecover/internal/fragment"
)

const spatialProximity = 1 << 20 // +/- 1 MiB

// Segment is one placed span within the target file's own coordinate
// space (post start_offset-mod-size normalization).
type Segment struct {
	Start int64
	End   int64 // exclusive
}

// Gap is an uncovered span in the segment map.
type Gap struct {
	Start    int64
	End      int64
	Critical bool // offset < 4096
}

// Map is the assembled coverage for a file: merged segments, flagged
// gaps, and overall completeness in [0,1].
type Map struct {
	Segments     []Segment
	Gaps         []Gap
	Completeness float64
}

// CandidateFragments collects fragment ids from the catalog that might
// belong to a file of the given mime/size, via (a) mime match, (b)
// size range [0, fileSize], (c) spatial proximity (+/-1MiB) to any of
// existingExtentStarts.
func CandidateFragments(cat *fragment.Catalog, mime string, fileSize int64, existingExtentStarts []int64) []uint64 {
	seen := map[uint64]bool{}
	var out []uint64

	add := func(id uint64) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, id := range cat.ByMime(mime) {
		add(id)
	}

	for _, id := range cat.All() {
		f, ok := cat.Get(id)
		if !ok {
			continue
		}
		if f.Size >= 0 && f.Size <= fileSize {
			add(id)
			continue
		}
		for _, anchor := range existingExtentStarts {
			d := f.StartOffset - anchor
			if d < 0 {
				d = -d
			}
			if d <= spatialProximity {
				add(id)
				break
			}
		}
	}
	return out
}

// BuildSegmentMap places each candidate fragment at
// start_offset mod file.size, truncates to file size, sorts, and
// merges overlaps, computing total coverage completeness.
func BuildSegmentMap(cat *fragment.Catalog, fragmentIDs []uint64, fileSize int64) Map {
	if fileSize <= 0 {
		return Map{}
	}

	var raw []Segment
	for _, id := range fragmentIDs {
		f, ok := cat.Get(id)
		if !ok {
			continue
		}
		start := f.StartOffset % fileSize
		end := start + f.Size
		if end > fileSize {
			end = fileSize
		}
		if end > start {
			raw = append(raw, Segment{Start: start, End: end})
		}
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].Start < raw[j].Start })

	var merged []Segment
	for _, s := range raw {
		if len(merged) > 0 && s.Start <= merged[len(merged)-1].End {
			if s.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}

	var gaps []Gap
	cursor := int64(0)
	var covered int64
	for _, s := range merged {
		if s.Start > cursor {
			gaps = append(gaps, Gap{Start: cursor, End: s.Start, Critical: cursor < 4096})
		}
		covered += s.End - s.Start
		cursor = s.End
	}
	if cursor < fileSize {
		gaps = append(gaps, Gap{Start: cursor, End: fileSize, Critical: cursor < 4096})
	}

	return Map{
		Segments:     merged,
		Gaps:         gaps,
		Completeness: float64(covered) / float64(fileSize),
	}
}

// usabilityThreshold maps a mime type to its minimum completeness
// (spec §4.8's table).
func usabilityThreshold(mime string) float64 {
	switch mime {
	case "text/plain", "text/html", "text/csv":
		return 0.5
	case "image/jpeg", "image/png", "image/gif":
		return 0.6
	case "application/zip", "application/x-executable":
		return 0.95
	case "":
		return 0.8 // unknown mime
	default:
		return 0.7
	}
}

// IsUsable applies spec §4.8's type-specific thresholds and the
// critical-gap override: a file with any gap whose offset < 4096 is
// unusable regardless of type, unless completeness >= 0.9. Images
// additionally require no gap with offset < 4096 at all, even above
// 0.9 completeness, since that image-specific rule has no override
// clause of its own.
func IsUsable(mime string, m Map) bool {
	hasCriticalGap := false
	for _, g := range m.Gaps {
		if g.Critical {
			hasCriticalGap = true
			break
		}
	}

	threshold := usabilityThreshold(mime)
	if m.Completeness < threshold {
		return false
	}

	switch mime {
	case "image/jpeg", "image/png", "image/gif":
		return !hasCriticalGap
	}

	if hasCriticalGap && m.Completeness < 0.9 {
		return false
	}
	return true
}
