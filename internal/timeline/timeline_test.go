package timeline

import (
	"testing"
	"time"

	"github.com/shubham/ghostrecover/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDetectPatternsBulkDeletion matches spec scenario E5: 50 files
// deleted 2s apart produce >=50 events and a BulkDeletion pattern with
// confidence 0.9 and at least 5 affected files.
func TestDetectPatternsBulkDeletion(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var files []model.DeletedFile
	for i := 0; i < 50; i++ {
		dt := base.Add(time.Duration(i) * 2 * time.Second)
		files = append(files, model.DeletedFile{ID: uint64(i + 1), DeletionTime: &dt})
	}

	events := BuildEvents(files)
	require.GreaterOrEqual(t, len(events), 50)

	patterns := DetectPatterns(events)
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternBulkDeletion, patterns[0].Type)
	assert.Equal(t, 0.9, patterns[0].Confidence)
	assert.GreaterOrEqual(t, len(patterns[0].AffectedFiles), 5)
}

func TestDetectPatternsSelectiveDeletion(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := base
	t2 := base.Add(time.Second)
	files := []model.DeletedFile{
		{ID: 1, DeletionTime: &t1},
		{ID: 2, DeletionTime: &t2},
	}
	patterns := DetectPatterns(BuildEvents(files))
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternSelectiveDeletion, patterns[0].Type)
}

func TestDetectPatternsIsolatedDeletionNotAPattern(t *testing.T) {
	t1 := time.Now()
	files := []model.DeletedFile{{ID: 1, DeletionTime: &t1}}
	patterns := DetectPatterns(BuildEvents(files))
	assert.Empty(t, patterns)
}

func TestDetectPatternsLargeGapSplitsBursts(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var files []model.DeletedFile
	for i := 0; i < 6; i++ {
		dt := base.Add(time.Duration(i) * time.Second)
		files = append(files, model.DeletedFile{ID: uint64(i + 1), DeletionTime: &dt})
	}
	later := base.Add(time.Hour)
	for i := 0; i < 6; i++ {
		dt := later.Add(time.Duration(i) * time.Second)
		files = append(files, model.DeletedFile{ID: uint64(i + 100), DeletionTime: &dt})
	}

	patterns := DetectPatterns(BuildEvents(files))
	require.Len(t, patterns, 2)
	for _, p := range patterns {
		assert.Equal(t, PatternBulkDeletion, p.Type)
	}
}
