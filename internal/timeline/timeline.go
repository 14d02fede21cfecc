// Package timeline derives an event stream from recovered files'
// timestamps and flags bulk/selective deletion patterns. New code,
// built against spec §4.1/§8 scenario E5 since the teacher has no
// timeline concept at all.
package timeline

import (
	"sort"
	"time"

	"github.com/shubham/ghostrecover/internal/model"
)

// clusterGap is the maximum gap between consecutive deletion
// timestamps for them to be considered part of the same burst.
const clusterGap = 5 * time.Second

const (
	bulkDeletionMinFiles = 5
	bulkDeletionConfidence      = 0.9
	selectiveDeletionConfidence = 0.5
)

// PatternType names a detected deletion pattern.
type PatternType string

const (
	PatternBulkDeletion      PatternType = "bulk_deletion"
	PatternSelectiveDeletion PatternType = "selective_deletion"
)

// Pattern is one detected deletion burst.
type Pattern struct {
	Type          PatternType
	Confidence    float64
	AffectedFiles []uint64
	Start, End    time.Time
}

// BuildEvents derives a TimelineEntry for every timestamp a file
// carries (created/modified/deleted), sorted ascending.
func BuildEvents(files []model.DeletedFile) []model.TimelineEntry {
	var events []model.TimelineEntry
	for _, f := range files {
		if f.Metadata.Created != nil {
			events = append(events, model.TimelineEntry{Timestamp: *f.Metadata.Created, EventType: model.TimelineCreated, FileID: f.ID})
		}
		if f.Metadata.Modified != nil {
			events = append(events, model.TimelineEntry{Timestamp: *f.Metadata.Modified, EventType: model.TimelineModified, FileID: f.ID})
		}
		if f.DeletionTime != nil {
			events = append(events, model.TimelineEntry{Timestamp: *f.DeletionTime, EventType: model.TimelineDeleted, FileID: f.ID})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	return events
}

// DetectPatterns clusters deletion events by gap and classifies each
// burst as BulkDeletion (>=5 files) or SelectiveDeletion (2-4 files);
// isolated single deletions are not reported as a pattern.
func DetectPatterns(events []model.TimelineEntry) []Pattern {
	var deletions []model.TimelineEntry
	for _, e := range events {
		if e.EventType == model.TimelineDeleted {
			deletions = append(deletions, e)
		}
	}
	sort.Slice(deletions, func(i, j int) bool { return deletions[i].Timestamp.Before(deletions[j].Timestamp) })

	var patterns []Pattern
	var run []model.TimelineEntry

	flush := func() {
		if len(run) < 2 {
			run = nil
			return
		}
		ids := make([]uint64, len(run))
		for i, e := range run {
			ids[i] = e.FileID
		}
		typ := PatternSelectiveDeletion
		conf := selectiveDeletionConfidence
		if len(run) >= bulkDeletionMinFiles {
			typ = PatternBulkDeletion
			conf = bulkDeletionConfidence
		}
		patterns = append(patterns, Pattern{
			Type:          typ,
			Confidence:    conf,
			AffectedFiles: ids,
			Start:         run[0].Timestamp,
			End:           run[len(run)-1].Timestamp,
		})
		run = nil
	}

	for i, e := range deletions {
		if i > 0 && e.Timestamp.Sub(deletions[i-1].Timestamp) > clusterGap {
			flush()
		}
		run = append(run, e)
	}
	flush()

	return patterns
}

// Stats summarizes a timeline for reporting.
type Stats struct {
	TotalEvents     int
	DeletionEvents  int
	CreationEvents  int
	EarliestEvent   time.Time
	LatestEvent     time.Time
}

// ComputeStats summarizes the event stream.
func ComputeStats(events []model.TimelineEntry) Stats {
	var s Stats
	s.TotalEvents = len(events)
	for i, e := range events {
		switch e.EventType {
		case model.TimelineDeleted:
			s.DeletionEvents++
		case model.TimelineCreated:
			s.CreationEvents++
		}
		if i == 0 {
			s.EarliestEvent = e.Timestamp
			s.LatestEvent = e.Timestamp
			continue
		}
		if e.Timestamp.Before(s.EarliestEvent) {
			s.EarliestEvent = e.Timestamp
		}
		if e.Timestamp.After(s.LatestEvent) {
			s.LatestEvent = e.Timestamp
		}
	}
	return s
}
