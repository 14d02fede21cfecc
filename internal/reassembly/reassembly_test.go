package reassembly

import (
	"testing"
	"time"

	"github.com/shubham/ghostrecover/internal/fragment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReassembleJPEGFragments matches spec scenario E3: three JPEG
// fragments (header, middle, trailer) placed in spatial order with
// identical temporal hints reassemble into one chain covering all
// three, with confidence >= 0.3.
func TestReassembleJPEGFragments(t *testing.T) {
	cat := fragment.NewCatalog()
	now := time.Now()

	header := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	mid := []byte("mid-payload-bytes")
	trailer := []byte{0xFF, 0xD9}

	idHeader := cat.Insert(fragment.Fragment{
		StartOffset: 0, Size: int64(len(header)), Signature: "image/jpeg",
		ContentHash: fragment.ContentHash(header), TemporalHint: &now, Data: header,
	})
	cat.Insert(fragment.Fragment{
		StartOffset: 4096, Size: int64(len(mid)),
		ContentHash: fragment.ContentHash(mid), TemporalHint: &now, Data: mid,
	})
	cat.Insert(fragment.Fragment{
		StartOffset: 8192, Size: int64(len(trailer)),
		ContentHash: fragment.ContentHash(trailer), TemporalHint: &now, Data: trailer,
	})

	result := Reassemble(cat, cat.All())
	require.Len(t, result.FragmentIDs, 3)
	assert.Equal(t, idHeader, result.FragmentIDs[0])
	assert.GreaterOrEqual(t, result.Confidence, 0.3)
}

func TestReassembleEmptyClusterYieldsEmptyResult(t *testing.T) {
	cat := fragment.NewCatalog()
	result := Reassemble(cat, nil)
	assert.Empty(t, result.FragmentIDs)
	assert.False(t, result.HasGap)
}

func TestReassembleSingleFragmentNoGapFullConfidence(t *testing.T) {
	cat := fragment.NewCatalog()
	id := cat.Insert(fragment.Fragment{StartOffset: 0, Size: 10, Signature: "text/plain"})
	result := Reassemble(cat, []uint64{id})
	assert.Equal(t, []uint64{id}, result.FragmentIDs)
	assert.False(t, result.HasGap)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestReassembleDisjointFragmentsFlagsGap(t *testing.T) {
	cat := fragment.NewCatalog()
	cat.Insert(fragment.Fragment{StartOffset: 0, Size: 10, ContentHash: 0x00, Signature: "image/jpeg"})
	cat.Insert(fragment.Fragment{StartOffset: 90_000_000, Size: 10_000_000, ContentHash: 0xFFFFFFFFFFFFFFFF, Signature: "application/pdf"})

	result := Reassemble(cat, cat.All())
	assert.True(t, result.HasGap)
}

// TestReassembleRescuesAfterRepeatedRejections covers the orphan-rescue
// branch directly: a poorly-matching second fragment must still be
// consumed via bestProximityToAny after three consecutive rejections,
// not dropped the moment the first greedy extension fails.
func TestReassembleRescuesAfterRepeatedRejections(t *testing.T) {
	cat := fragment.NewCatalog()
	idHeader := cat.Insert(fragment.Fragment{StartOffset: 0, Size: 10, ContentHash: 0x00, Signature: "image/jpeg"})
	idOrphan := cat.Insert(fragment.Fragment{StartOffset: 90_000_000, Size: 10_000_000, ContentHash: 0xFFFFFFFFFFFFFFFF, Signature: "application/pdf"})

	result := Reassemble(cat, cat.All())
	require.Len(t, result.FragmentIDs, 2)
	assert.ElementsMatch(t, []uint64{idHeader, idOrphan}, result.FragmentIDs)
	assert.True(t, result.HasGap)
}
