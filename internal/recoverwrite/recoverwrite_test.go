package recoverwrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/shubham/ghostrecover/internal/model"
)

func TestOutputNameUsesOriginalPathBaseName(t *testing.T) {
	p := "docs/report.pdf"
	file := model.DeletedFile{ID: 7, OriginalPath: &p}
	assert.Equal(t, "report.pdf", OutputName(file))
}

func TestOutputNameFallsBackToRecoveredFileWithExtension(t *testing.T) {
	ext := "jpg"
	file := model.DeletedFile{ID: 42, Metadata: model.FileMetadata{Extension: &ext}}
	assert.Equal(t, "recovered_file_42.jpg", OutputName(file))
}

func TestWriteByteUnitExfatFullRead(t *testing.T) {
	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte(i)
	}
	src := blocksource.NewMemSource(data)
	file := model.DeletedFile{
		ID:   1,
		Size: 8192,
		DataBlocks: []model.BlockRange{
			{Start: 0, Count: 4096},
			{Start: 4096, Count: 4096},
		},
	}

	dir := t.TempDir()
	res, err := Write(src, file, dir, model.UnitByte, 0)
	require.NoError(t, err)
	assert.False(t, res.Partial)
	assert.EqualValues(t, 8192, res.BytesWritten)

	written, err := os.ReadFile(filepath.Join(dir, "recovered_file_1"))
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestWriteBlockUnitXFSMultipliesByBlockSize(t *testing.T) {
	data := make([]byte, 8192)
	src := blocksource.NewMemSource(data)
	file := model.DeletedFile{
		ID:         2,
		Size:       4096,
		DataBlocks: []model.BlockRange{{Start: 1, Count: 1}},
	}

	dir := t.TempDir()
	res, err := Write(src, file, dir, model.UnitBlock, 4096)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, res.BytesWritten)
}

func TestWritePartialWhenSourceRunsOut(t *testing.T) {
	data := make([]byte, 2048)
	src := blocksource.NewMemSource(data)
	file := model.DeletedFile{
		ID:         3,
		Size:       8192,
		DataBlocks: []model.BlockRange{{Start: 0, Count: 8192}},
	}

	dir := t.TempDir()
	res, err := Write(src, file, dir, model.UnitByte, 0)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.EqualValues(t, 2048, res.BytesWritten)
}

func TestWriteDirectoryCreatesDir(t *testing.T) {
	src := blocksource.NewMemSource(nil)
	name := "subdir"
	file := model.DeletedFile{ID: 4, OriginalPath: &name, FileType: model.FileTypeDirectory}

	dir := t.TempDir()
	res, err := Write(src, file, dir, model.UnitByte, 0)
	require.NoError(t, err)
	info, err := os.Stat(res.OutputPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
