// Package confidence implements the weighted-factor recovery
// confidence scorer: a mixture of time recency, metadata completeness,
// block integrity, signature match, size consistency, and FS-specific
// sub-scores, modified by global context and clamped to [0,1]. Grounded
// on original_source/.../recovery/confidence.rs (factor list, weights,
// global modifiers), with the FS-specific sub-score concretized per
// spec §4.9 instead of that file's 0.5 placeholder.
package confidence

import (
	"time"

	"github.com/shubham/ghostrecover/internal/model"
)

// Activity is the filesystem's recent write/delete activity level,
// used to temper confidence in a busy filesystem where more of a
// deleted file's original blocks are likely to have been overwritten.
type Activity int

const (
	ActivityLow Activity = iota
	ActivityMedium
	ActivityHigh
)

func (a Activity) multiplier() float64 {
	switch a {
	case ActivityLow:
		return 1.0
	case ActivityMedium:
		return 0.8
	case ActivityHigh:
		return 0.6
	default:
		return 1.0
	}
}

// Context is the scan-wide state the scorer needs beyond the file
// itself (spec §4.9).
type Context struct {
	Fsid        model.Fsid
	ScanTime    time.Time
	FSIntegrity float64 // in [0,1]
	TotalFiles  int
	Activity    Activity
}

const (
	weightTimeRecency           = 0.25
	weightMetadataCompleteness  = 0.15
	weightBlockIntegrity        = 0.20
	weightSignatureMatch        = 0.15
	weightSizeConsistency       = 0.10
	weightFSSpecific            = 0.15
	manyFilesPenaltyThreshold   = 10_000
	manyFilesPenaltyMultiplier  = 0.9
)

func timeRecencyScore(deletionTime *time.Time, now time.Time) float64 {
	if deletionTime == nil {
		return 0.3
	}
	age := now.Sub(*deletionTime)
	switch {
	case age < time.Hour:
		return 1.0
	case age < 24*time.Hour:
		return 0.9
	case age < 7*24*time.Hour:
		return 0.8
	case age < 30*24*time.Hour:
		return 0.6
	case age < 90*24*time.Hour:
		return 0.4
	case age < 365*24*time.Hour:
		return 0.2
	default:
		return 0.1
	}
}

func metadataCompletenessScore(meta model.FileMetadata) float64 {
	present, total := meta.CompletenessFields()
	if total == 0 {
		return 0
	}
	return float64(present) / float64(total)
}

func blockIntegrityScore(allocated, total int64) float64 {
	if total == 0 {
		return 0
	}
	return 1 - float64(allocated)/float64(total)
}

// SignatureVerdict is the result of comparing a recovered file's
// declared mime/extension against the signature table.
type SignatureVerdict int

const (
	SignatureNone SignatureVerdict = iota
	SignatureExtOnly
	SignatureMimeOnly
	SignatureMismatch
	SignatureMatch
)

func signatureMatchScore(v SignatureVerdict) float64 {
	switch v {
	case SignatureMatch:
		return 0.9
	case SignatureMismatch:
		return 0.3
	case SignatureMimeOnly:
		return 0.6
	case SignatureExtOnly:
		return 0.5
	default:
		return 0.2
	}
}

func sizeConsistencyScore(declaredSize int64, blockCount int64, blockSize int64) float64 {
	estimated := blockCount * blockSize
	if declaredSize == 0 && estimated == 0 {
		return 0.5
	}
	if declaredSize == 0 || estimated == 0 {
		return 0.2
	}
	small, large := declaredSize, estimated
	if small > large {
		small, large = large, small
	}
	return float64(small) / float64(large)
}

// FSSpecificScorer computes the per-filesystem structural sub-score
// (structure checks, checksum presence, chain validity) — each parser
// package supplies its own implementation since the checks differ per
// on-disk format.
type FSSpecificScorer func(f model.DeletedFile) float64

// Input bundles everything Score needs about one candidate file.
type Input struct {
	File             model.DeletedFile
	AllocatedBlocks  int64
	TotalBlocks      int64
	BlockSize        int64
	Signature        SignatureVerdict
	FSSpecificScore  float64 // from an FSSpecificScorer, precomputed by the caller
}

// Score computes the recovery confidence for one file within a scan
// context, then applies score dominance against the file's existing
// (filesystem-derived) prior confidence: the result is
// max(prior, computed), never lower than what the FS parser already
// established.
func Score(in Input, ctx Context) float64 {
	recency := timeRecencyScore(in.File.DeletionTime, ctx.ScanTime)
	metadata := metadataCompletenessScore(in.File.Metadata)
	blocks := blockIntegrityScore(in.AllocatedBlocks, in.TotalBlocks)
	signature := signatureMatchScore(in.Signature)
	size := sizeConsistencyScore(int64(in.File.Size), in.TotalBlocks, in.BlockSize)
	fsSpecific := in.FSSpecificScore

	weighted := weightTimeRecency*recency +
		weightMetadataCompleteness*metadata +
		weightBlockIntegrity*blocks +
		weightSignatureMatch*signature +
		weightSizeConsistency*size +
		weightFSSpecific*fsSpecific

	weighted *= ctx.FSIntegrity
	weighted *= ctx.Activity.multiplier()
	if ctx.TotalFiles > manyFilesPenaltyThreshold {
		weighted *= manyFilesPenaltyMultiplier
	}

	if weighted > 1.0 {
		weighted = 1.0
	}
	if weighted < 0 {
		weighted = 0
	}

	prior := float64(in.File.Confidence)
	if weighted > prior {
		return weighted
	}
	return prior
}
