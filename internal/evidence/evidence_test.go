package evidence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shubham/ghostrecover/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogAppendMonotonicIDs(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenAuditLog(filepath.Join(dir, "audit.jsonl"))
	require.NoError(t, err)
	defer log.Close()

	sessionID := uuid.New()
	e1, err := log.Append(sessionID, model.EventSessionStarted, "started", nil)
	require.NoError(t, err)
	e2, err := log.Append(sessionID, model.EventFileRecovered, "recovered", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), e1.ID)
	assert.Equal(t, uint64(2), e2.ID)
}

func TestAuditLogDurableAcrossFlush(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	log, err := OpenAuditLog(path)
	require.NoError(t, err)

	sessionID := uuid.New()
	_, err = log.Append(sessionID, model.EventWarning, "careful", nil)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "careful")
}

func TestHashFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello, world!"), 0o644))

	digest, size, err := HashFile(path, AlgorithmSHA256)
	require.NoError(t, err)
	assert.EqualValues(t, 13, size)
	assert.Len(t, digest, 64) // sha256 hex digest length
}

func TestManifestVerifyDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("original contents"), 0o644))

	m := NewManifest("manifest-1", AlgorithmSHA256)
	require.NoError(t, m.AddFile(path))

	result, err := m.Verify(path)
	require.NoError(t, err)
	assert.Equal(t, Verified, result)

	require.NoError(t, os.WriteFile(path, []byte("tampered contents!"), 0o644))
	result, err = m.Verify(path)
	require.NoError(t, err)
	assert.Equal(t, Corrupted, result)
}

func TestManifestVerifyNoReference(t *testing.T) {
	m := NewManifest("manifest-1", AlgorithmSHA256)
	result, err := m.Verify("/never/added")
	require.NoError(t, err)
	assert.Equal(t, NoReference, result)
}
