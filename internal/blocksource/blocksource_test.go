package blocksource

import (
	"testing"

	"github.com/shubham/ghostrecover/internal/ghosterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSourceRead(t *testing.T) {
	src := NewMemSource([]byte("hello, world!"))
	require.EqualValues(t, 13, src.Size())

	b, err := src.Read(0, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestMemSourceOutOfRange(t *testing.T) {
	src := NewMemSource([]byte("short"))
	_, err := src.Read(0, 100)
	require.Error(t, err)

	var gerr *ghosterr.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ghosterr.KindOutOfRange, gerr.Kind())
}

func TestMemSourceNegativeOffset(t *testing.T) {
	src := NewMemSource([]byte("short"))
	_, err := src.Read(-1, 1)
	require.Error(t, err)
}
