// Package evidence writes the two artifacts a recovery session must
// produce for chain-of-custody purposes: an append-only audit log and
// a content-hash manifest. New code, grounded in shape on
// original_source/.../forensics/audit.rs and on mtlog-audit's
// append-only WAL discipline (one writer, a single serialized mutation
// point, flush after every write) — expressed here with plain
// encoding/json and os.File, since mtlog-audit's actual WAL is a
// segment/replication system built for a very different scale problem.
package evidence

import (
	"bufio"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shubham/ghostrecover/internal/ghosterr"
	"github.com/shubham/ghostrecover/internal/model"
)

const hashChunkSize = 8 * 1024

// AuditLog is an append-only, single-writer JSONL audit trail.
// Assigning ids and writing are serialized through mu, matching spec
// §5's "exactly one writer at a time" contract for shared mutable
// state.
type AuditLog struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	nextID  uint64
	entries []model.AuditEntry // in-memory copy, copied out by Snapshot under mu
}

// OpenAuditLog creates (or truncates) audit.jsonl at path.
func OpenAuditLog(path string) (*AuditLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, ghosterr.Wrap(ghosterr.KindIO, "open audit log", err)
	}
	return &AuditLog{file: f, writer: bufio.NewWriter(f)}, nil
}

// Append assigns the next strictly-increasing id, writes the entry as
// one JSON line, and flushes immediately.
func (l *AuditLog) Append(sessionID uuid.UUID, eventType model.AuditEventType, message string, metadata map[string]string) (model.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	entry := model.AuditEntry{
		ID:        l.nextID,
		Timestamp: auditNow(),
		EventType: eventType,
		SessionID: sessionID,
		Message:   message,
		Metadata:  metadata,
		Severity:  model.DefaultSeverity(eventType),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return entry, ghosterr.Wrap(ghosterr.KindIO, "marshal audit entry", err)
	}
	if _, err := l.writer.Write(line); err != nil {
		return entry, ghosterr.Wrap(ghosterr.KindIO, "write audit entry", err)
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return entry, ghosterr.Wrap(ghosterr.KindIO, "write audit entry", err)
	}
	if err := l.writer.Flush(); err != nil {
		return entry, ghosterr.Wrap(ghosterr.KindIO, "flush audit log", err)
	}

	l.entries = append(l.entries, entry)
	return entry, nil
}

// auditNow is split out so tests can't accidentally depend on wall
// clock ordering across runs; production always uses time.Now.
var auditNow = time.Now

// Snapshot returns a copy of every entry appended so far. It holds the
// log's lock while copying; the returned slice is the caller's own.
func (l *AuditLog) Snapshot() []model.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.AuditEntry(nil), l.entries...)
}

// Close flushes and closes the underlying file.
func (l *AuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// ExportJSON writes every entry as a pretty-printed JSON array to path.
func (l *AuditLog) ExportJSON(path string) error {
	entries := l.Snapshot()
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return ghosterr.Wrap(ghosterr.KindIO, "marshal audit export", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ghosterr.Wrap(ghosterr.KindIO, "write audit export", err)
	}
	return nil
}

// ExportCSV writes every entry as an escaped-comma CSV to path.
func (l *AuditLog) ExportCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return ghosterr.Wrap(ghosterr.KindIO, "create audit csv", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"id", "timestamp", "event_type", "session_id", "message", "severity"}); err != nil {
		return ghosterr.Wrap(ghosterr.KindIO, "write audit csv header", err)
	}
	for _, e := range l.Snapshot() {
		row := []string{
			fmt.Sprint(e.ID),
			e.Timestamp.Format(time.RFC3339),
			string(e.EventType),
			e.SessionID.String(),
			e.Message,
			e.Severity.String(),
		}
		if err := w.Write(row); err != nil {
			return ghosterr.Wrap(ghosterr.KindIO, "write audit csv row", err)
		}
	}
	return nil
}

// Algorithm selects the hash function used for a manifest entry.
type Algorithm string

const (
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"
)

func newHasher(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case AlgorithmMD5:
		return md5.New(), nil
	case AlgorithmSHA1:
		return sha1.New(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	case AlgorithmSHA256, "":
		return sha256.New(), nil
	default:
		return nil, ghosterr.New(ghosterr.KindParse, "unknown hash algorithm: "+string(alg))
	}
}

// HashFile streams path in 8KiB chunks through the chosen algorithm,
// returning the hex digest and byte count.
func HashFile(path string, alg Algorithm) (hexDigest string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, ghosterr.Wrap(ghosterr.KindIO, "open file for hashing", err)
	}
	defer f.Close()

	h, err := newHasher(alg)
	if err != nil {
		return "", 0, err
	}
	buf := make([]byte, hashChunkSize)
	n, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return "", 0, ghosterr.Wrap(ghosterr.KindIO, "stream file for hashing", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Manifest accumulates per-file hashes and is written once at session
// end.
type Manifest struct {
	data model.HashManifest
}

// NewManifest starts a manifest using the given algorithm (defaulting
// to SHA-256).
func NewManifest(manifestID string, alg Algorithm) *Manifest {
	if alg == "" {
		alg = AlgorithmSHA256
	}
	return &Manifest{data: model.HashManifest{
		ManifestID: manifestID,
		CreatedAt:  auditNow(),
		Algorithm:  string(alg),
		Files:      map[string]model.FileHash{},
	}}
}

// AddFile hashes path and records the result under that path.
func (m *Manifest) AddFile(path string) error {
	digest, size, err := HashFile(path, Algorithm(m.data.Algorithm))
	if err != nil {
		return err
	}
	m.data.Files[path] = model.FileHash{
		Algorithm:    m.data.Algorithm,
		HexHash:      digest,
		Size:         uint64(size),
		CalculatedAt: auditNow(),
	}
	return nil
}

// WriteJSON serializes the manifest once, to path.
func (m *Manifest) WriteJSON(path string) error {
	data, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return ghosterr.Wrap(ghosterr.KindIO, "marshal hash manifest", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ghosterr.Wrap(ghosterr.KindIO, "write hash manifest", err)
	}
	return nil
}

// VerifyResult is the outcome of re-hashing a path against its
// manifest entry.
type VerifyResult int

const (
	Verified VerifyResult = iota
	Corrupted
	NoReference
)

// Verify re-hashes path and compares it against the manifest's stored
// entry.
func (m *Manifest) Verify(path string) (VerifyResult, error) {
	entry, ok := m.data.Files[path]
	if !ok {
		return NoReference, nil
	}
	digest, _, err := HashFile(path, Algorithm(entry.Algorithm))
	if err != nil {
		return NoReference, err
	}
	if digest == entry.HexHash {
		return Verified, nil
	}
	return Corrupted, nil
}
