package exfat

import (
	"encoding/binary"
	"testing"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBootSector() []byte {
	data := make([]byte, 512)
	copy(data[3:11], bootSignature)
	binary.LittleEndian.PutUint32(data[80:84], 8)    // fat_offset (sectors)
	binary.LittleEndian.PutUint32(data[84:88], 1)    // fat_length (sectors)
	binary.LittleEndian.PutUint32(data[88:92], 4)    // cluster_heap_offset (sectors) -> 2048 bytes
	binary.LittleEndian.PutUint32(data[92:96], 100)  // cluster_count
	binary.LittleEndian.PutUint32(data[96:100], 5)   // root_cluster
	data[108] = 9                                    // bytes/sector shift -> 512
	data[109] = 3                                     // sectors/cluster shift -> 8 sectors/cluster
	return data
}

// TestReadBootSector matches spec scenario E2's boot sector layout:
// bytes/sector=512, sectors/cluster=8, cluster_heap_offset=2048,
// root_cluster=5.
func TestReadBootSector(t *testing.T) {
	src := blocksource.NewMemSource(buildBootSector())
	bs, err := ReadBootSector(src)
	require.NoError(t, err)
	assert.EqualValues(t, 512, bs.BytesPerSector)
	assert.EqualValues(t, 4096, bs.BytesPerCluster)
	assert.EqualValues(t, 5, bs.RootCluster)
	assert.EqualValues(t, 2048, int64(bs.ClusterHeapOffset)*int64(bs.BytesPerSector))
}

func TestReadBootSectorBadSignature(t *testing.T) {
	src := blocksource.NewMemSource(make([]byte, 512))
	_, err := ReadBootSector(src)
	require.Error(t, err)
}

// TestFATChainTerminatesAndDetectsCycles covers invariant 4: chain
// traversal must terminate even on a cyclic FAT.
func TestFATChainTerminatesAndDetectsCycles(t *testing.T) {
	entries := make([]byte, 16*4)
	binary.LittleEndian.PutUint32(entries[2*4:], 3) // cluster 2 -> 3
	binary.LittleEndian.PutUint32(entries[3*4:], 2) // cluster 3 -> 2 (cycle)
	fat := &FAT{entries: decodeU32(entries)}

	chain := fat.Chain(2)
	assert.Equal(t, []uint32{2, 3}, chain)
}

func decodeU32(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// TestParseDirectoryClusterFileEntrySet matches spec scenario E2: a
// live File/Stream/Filename entry set naming "hello.txt" with
// first_cluster=5 and data_length=13.
func TestParseDirectoryClusterFileEntrySet(t *testing.T) {
	data := make([]byte, 3*32)

	// File entry: secondary count 2 (stream + 1 filename entry).
	data[0] = entryTypeFile
	data[1] = 2

	// Stream entry.
	stream := data[32:64]
	stream[0] = entryTypeStream
	binary.LittleEndian.PutUint32(stream[20:24], 5)  // first cluster
	binary.LittleEndian.PutUint64(stream[24:32], 13) // data length

	// Filename entry: "hello.txt" fits in one 15-UTF16-unit chunk.
	fn := data[64:96]
	fn[0] = entryTypeFilename
	name := "hello.txt"
	for i, r := range name {
		binary.LittleEndian.PutUint16(fn[2+i*2:], uint16(r))
	}

	sets := ParseDirectoryCluster(data)
	require.Len(t, sets, 1)
	assert.Equal(t, "hello.txt", sets[0].Name)
	assert.EqualValues(t, 5, sets[0].FirstCluster)
	assert.EqualValues(t, 13, sets[0].DataLength)
	assert.False(t, sets[0].IsDeleted)
}

// TestParseDirectoryClusterDeletedEntrySet exercises the 0x05/0x40/0x41
// deleted variants alongside a live entry in the same cluster.
func TestParseDirectoryClusterDeletedEntrySet(t *testing.T) {
	data := make([]byte, 3*32)
	data[0] = entryTypeFileDeleted
	data[1] = 2

	stream := data[32:64]
	stream[0] = entryTypeStreamDeleted
	binary.LittleEndian.PutUint32(stream[20:24], 9)
	binary.LittleEndian.PutUint64(stream[24:32], 42)

	fn := data[64:96]
	fn[0] = entryTypeFilenameDeleted
	name := "gone.bin"
	for i, r := range name {
		binary.LittleEndian.PutUint16(fn[2+i*2:], uint16(r))
	}

	sets := ParseDirectoryCluster(data)
	require.Len(t, sets, 1)
	assert.True(t, sets[0].IsDeleted)
	assert.Equal(t, "gone.bin", sets[0].Name)
	assert.EqualValues(t, 9, sets[0].FirstCluster)
}

func TestChainToByteRangesCoalescesAdjacent(t *testing.T) {
	bs := &BootSector{ClusterHeapOffset: 4, BytesPerSector: 512, BytesPerCluster: 4096}
	ranges := bs.ChainToByteRanges([]uint32{2, 3, 5})
	require.Len(t, ranges, 2)
	assert.EqualValues(t, 2048, ranges[0].Start)
	assert.EqualValues(t, 8192, ranges[0].Count) // clusters 2,3 merged
	assert.EqualValues(t, 2048+3*4096, ranges[1].Start)
}

func TestFindOrphanClustersSkipsReferencedAndFree(t *testing.T) {
	entries := make([]uint32, 10)
	for i := range entries {
		entries[i] = 2 // allocated-looking, not free/reserved/EOC
	}
	entries[4] = clusterFree
	fat := &FAT{entries: entries}
	referenced := map[uint32]bool{3: true}

	orphans := FindOrphanClusters(fat, referenced, 8, 0)
	assert.NotContains(t, orphans, uint32(3))
	assert.NotContains(t, orphans, uint32(4))
	assert.Contains(t, orphans, uint32(2))
}
