package sessionstore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shubham/ghostrecover/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFileStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := NewJSONFileStore(t.TempDir())
	require.NoError(t, err)

	session := model.RecoverySession{
		ID:         uuid.New(),
		Fsid:       model.FsidExFAT,
		DevicePath: "/dev/loop0",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Stage:      "Complete",
	}
	require.NoError(t, store.Save(session))

	loaded, err := store.Load(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, session.DevicePath, loaded.DevicePath)
}

func TestJSONFileStoreList(t *testing.T) {
	store, err := NewJSONFileStore(t.TempDir())
	require.NoError(t, err)

	s1 := model.RecoverySession{ID: uuid.New()}
	s2 := model.RecoverySession{ID: uuid.New()}
	require.NoError(t, store.Save(s1))
	require.NoError(t, store.Save(s2))

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestJSONFileStoreLoadMissing(t *testing.T) {
	store, err := NewJSONFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Load(uuid.New())
	assert.Error(t, err)
}
