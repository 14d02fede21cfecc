package btrfs

import (
	"encoding/binary"
	"testing"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSuperblockBadMagic(t *testing.T) {
	src := blocksource.NewMemSource(make([]byte, SuperblockOffset+4096))
	_, err := ReadSuperblock(src)
	require.Error(t, err)
}

func TestReadSuperblockMagic(t *testing.T) {
	data := make([]byte, SuperblockOffset+4096)
	copy(data[SuperblockOffset+MagicOffset:], Magic)
	binary.LittleEndian.PutUint64(data[SuperblockOffset+104:], 256) // root tree
	src := blocksource.NewMemSource(data)

	sb, err := ReadSuperblock(src)
	require.NoError(t, err)
	assert.EqualValues(t, 256, sb.RootTree)
	assert.EqualValues(t, 16384, sb.NodeSize)
}

func TestParseLeafDirItem(t *testing.T) {
	const nodeSize = 4096
	data := make([]byte, nodeSize)

	// Header: level 0 (leaf), 1 item.
	binary.LittleEndian.PutUint32(data[96:100], 1)
	data[100] = 0

	// Item 0 key + offset/size.
	itemOff := headerSize
	binary.LittleEndian.PutUint64(data[itemOff:], FSTreeObjectID)
	data[itemOff+8] = DirItemKey
	binary.LittleEndian.PutUint64(data[itemOff+9:], 0)
	dataOffset := uint32(itemSize) // payload right after the one item header
	dirItem := buildDirItem(t, 456, "test.txt", 1)
	binary.LittleEndian.PutUint32(data[itemOff+17:], dataOffset)
	binary.LittleEndian.PutUint32(data[itemOff+21:], uint32(len(dirItem)))

	payloadStart := headerSize + int(dataOffset)
	copy(data[payloadStart:], dirItem)

	leaf, err := ParseLeaf(data)
	require.NoError(t, err)
	require.Len(t, leaf.Items, 1)
	require.Contains(t, leaf.DirItems, 0)
	assert.Equal(t, "test.txt", leaf.DirItems[0].Name)
	assert.EqualValues(t, 456, leaf.DirItems[0].Location.ObjectID)
}

func buildDirItem(t *testing.T, locationObjectID uint64, name string, ftype uint8) []byte {
	t.Helper()
	b := make([]byte, 30+len(name))
	binary.LittleEndian.PutUint64(b[0:8], locationObjectID)
	b[8] = InodeItemKey
	binary.LittleEndian.PutUint64(b[9:17], 0)
	binary.LittleEndian.PutUint16(b[27:29], uint16(len(name)))
	b[29] = ftype
	copy(b[30:], name)
	return b
}
