package fragment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogInsertAssignsMonotonicIDs(t *testing.T) {
	c := NewCatalog()
	id1 := c.Insert(Fragment{Size: 10, StartOffset: 100})
	id2 := c.Insert(Fragment{Size: 20, StartOffset: 50})
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.Equal(t, 2, c.Len())
}

func TestCatalogByOffsetOrdering(t *testing.T) {
	c := NewCatalog()
	c.Insert(Fragment{StartOffset: 300})
	c.Insert(Fragment{StartOffset: 100})
	c.Insert(Fragment{StartOffset: 200})

	ids := c.All()
	require.Len(t, ids, 3)
	var offsets []int64
	for _, id := range ids {
		f, ok := c.Get(id)
		require.True(t, ok)
		offsets = append(offsets, f.StartOffset)
	}
	assert.Equal(t, []int64{100, 200, 300}, offsets)
}

func TestCatalogRemoveAtomic(t *testing.T) {
	c := NewCatalog()
	id := c.Insert(Fragment{Signature: "image/jpeg", Size: 10, StartOffset: 5})
	c.Remove(id)

	_, ok := c.Get(id)
	assert.False(t, ok)
	assert.Empty(t, c.ByMime("image/jpeg"))
	assert.Empty(t, c.All())
}

func TestMatchScoreIdenticalFragmentsScoresHigh(t *testing.T) {
	now := time.Now()
	a := Fragment{ContentHash: 12345, Size: 1000, Signature: "image/jpeg", StartOffset: 0, TemporalHint: &now}
	b := Fragment{ContentHash: 12345, Size: 1000, Signature: "image/jpeg", StartOffset: 4096, TemporalHint: &now}
	score := MatchScore(a, b)
	assert.Greater(t, score, 0.9)
}

func TestMatchScoreUnrelatedFragmentsScoresLow(t *testing.T) {
	a := Fragment{ContentHash: 0x0000000000000000, Size: 10, Signature: "image/jpeg", StartOffset: 0}
	b := Fragment{ContentHash: 0xFFFFFFFFFFFFFFFF, Size: 10_000_000, Signature: "application/pdf", StartOffset: 50_000_000}
	score := MatchScore(a, b)
	assert.Less(t, score, 0.3)
}

// TestStructuralScoreIsAdditiveNotEquality guards the spec §4.7
// formula: mime-equal and size-close are two independent half-point
// signals, not a single all-or-nothing signature-equality check.
func TestStructuralScoreIsAdditiveNotEquality(t *testing.T) {
	sameSigDifferentSize := structuralScore(
		Fragment{Signature: "image/jpeg", Size: 100},
		Fragment{Signature: "image/jpeg", Size: 100_000},
	)
	assert.Equal(t, 0.5, sameSigDifferentSize)

	differentSigSameSize := structuralScore(
		Fragment{Signature: "image/jpeg", Size: 1000},
		Fragment{Signature: "application/pdf", Size: 1000},
	)
	assert.Equal(t, 0.5, differentSigSameSize)

	sameSigSameSize := structuralScore(
		Fragment{Signature: "image/jpeg", Size: 1000},
		Fragment{Signature: "image/jpeg", Size: 1000},
	)
	assert.Equal(t, 1.0, sameSigSameSize)

	neitherSignalShared := structuralScore(
		Fragment{Signature: "image/jpeg", Size: 100},
		Fragment{Signature: "application/pdf", Size: 100_000},
	)
	assert.Equal(t, 0.0, neitherSignalShared)
}

func TestContentHashStableOverFirstKiB(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	h1 := ContentHash(data)
	data[2000] = 0xFF // beyond the first KiB, should not affect the hash
	h2 := ContentHash(data)
	assert.Equal(t, h1, h2)
}

func TestClusterFragmentsGreedy(t *testing.T) {
	c := NewCatalog()
	now := time.Now()
	c.Insert(Fragment{ContentHash: 1, Size: 1000, Signature: "image/jpeg", StartOffset: 0, TemporalHint: &now})
	c.Insert(Fragment{ContentHash: 1, Size: 1000, Signature: "image/jpeg", StartOffset: 4096, TemporalHint: &now})
	c.Insert(Fragment{ContentHash: 0xDEAD, Size: 999_999, Signature: "application/pdf", StartOffset: 90_000_000})

	clusters := ClusterFragments(c, 0.6)
	require.Len(t, clusters, 2)
	sizes := []int{len(clusters[0].FragmentIDs), len(clusters[1].FragmentIDs)}
	assert.Contains(t, sizes, 2)
	assert.Contains(t, sizes, 1)
}
