package confidence

import (
	"testing"
	"time"

	"github.com/shubham/ghostrecover/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestScoreRecentCompleteFileScoresHigh(t *testing.T) {
	now := time.Now()
	modified := now.Add(-10 * time.Minute)
	mime := "text/plain"
	ext := "txt"
	perms := uint32(0o644)

	file := model.DeletedFile{
		Size:         4096,
		Confidence:   0,
		DeletionTime: &modified,
		Metadata: model.FileMetadata{
			MimeType:    &mime,
			Extension:   &ext,
			Permissions: &perms,
			Created:     &modified,
			Modified:    &modified,
		},
	}

	score := Score(Input{
		File:            file,
		AllocatedBlocks: 0,
		TotalBlocks:     1,
		BlockSize:       4096,
		Signature:       SignatureMatch,
		FSSpecificScore: 0.9,
	}, Context{
		ScanTime:    now,
		FSIntegrity: 1.0,
		Activity:    ActivityLow,
		TotalFiles:  10,
	})

	assert.Greater(t, score, 0.7)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScoreDominanceNeverLowersExistingPrior(t *testing.T) {
	file := model.DeletedFile{Confidence: 0.95}
	score := Score(Input{File: file, Signature: SignatureNone}, Context{
		FSIntegrity: 0.1,
		Activity:    ActivityHigh,
	})
	assert.Equal(t, float64(file.Confidence), score)
}

func TestScoreManyFilesAppliesPenalty(t *testing.T) {
	file := model.DeletedFile{Confidence: 0}
	ctxFew := Context{FSIntegrity: 1.0, Activity: ActivityLow, TotalFiles: 5}
	ctxMany := Context{FSIntegrity: 1.0, Activity: ActivityLow, TotalFiles: 20_000}

	in := Input{File: file, TotalBlocks: 1, BlockSize: 4096, FSSpecificScore: 0.8, Signature: SignatureMatch}
	few := Score(in, ctxFew)
	many := Score(in, ctxMany)
	assert.Less(t, many, few)
}

// TestScoreUsesDeletionTimeNotModifiedTime guards against regressing
// to the file's last-modified timestamp: holding Modified fixed and
// only varying DeletionTime must move the score, since recency is a
// function of how long ago the file was deleted, not last written.
func TestScoreUsesDeletionTimeNotModifiedTime(t *testing.T) {
	now := time.Now()
	sharedModified := now.Add(-time.Minute)
	recentDeletion := now.Add(-time.Minute)
	oldDeletion := now.Add(-400 * 24 * time.Hour)

	ctx := Context{ScanTime: now, FSIntegrity: 1.0, Activity: ActivityLow}
	in := Input{TotalBlocks: 1, BlockSize: 4096, FSSpecificScore: 0.5, Signature: SignatureNone}

	in.File = model.DeletedFile{DeletionTime: &recentDeletion, Metadata: model.FileMetadata{Modified: &sharedModified}}
	recentScore := Score(in, ctx)

	in.File = model.DeletedFile{DeletionTime: &oldDeletion, Metadata: model.FileMetadata{Modified: &sharedModified}}
	oldScore := Score(in, ctx)

	assert.Greater(t, recentScore, oldScore)
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	file := model.DeletedFile{Confidence: 0}
	score := Score(Input{File: file, FSSpecificScore: 1.0, Signature: SignatureMatch, TotalBlocks: 1, BlockSize: 1}, Context{
		FSIntegrity: 2.0, // out-of-range input still clamps
		Activity:    ActivityLow,
	})
	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.0)
}
