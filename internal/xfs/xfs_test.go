package xfs

import (
	"encoding/binary"
	"testing"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroSource(n int) *blocksource.MemSource {
	return blocksource.NewMemSource(make([]byte, n))
}

// TestParseDirectoryBlockV3 matches spec scenario E4: a v3 directory
// block with header owner=123 and one record {inode=456,
// name="test.txt", ftype=regular} must yield exactly one DirEntry.
func TestParseDirectoryBlockV3(t *testing.T) {
	data := make([]byte, 48+24)
	binary.BigEndian.PutUint32(data[0:4], DirBlockMagicV3)
	binary.BigEndian.PutUint64(data[16:24], 123) // owner/parent inode

	rec := data[48:]
	binary.BigEndian.PutUint64(rec[0:8], 456)
	rec[8] = 8 // namelen
	copy(rec[9:17], "test.txt")
	rec[17] = 1 // ftype = regular

	entries, err := ParseDirectoryBlock(data, 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 456, entries[0].Inode)
	assert.EqualValues(t, 123, entries[0].ParentInode)
	assert.Equal(t, "test.txt", entries[0].Name)
}

func TestParseDirectoryBlockBadMagic(t *testing.T) {
	data := make([]byte, 32)
	_, err := ParseDirectoryBlock(data, 3)
	require.Error(t, err)
}

func TestReadSuperblockBadMagic(t *testing.T) {
	src := zeroSource(512)
	_, err := ReadSuperblock(src)
	require.Error(t, err)
}
