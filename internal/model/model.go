// Package model holds the domain types shared by every recovery
// component: the filesystem-agnostic record of a deleted file, its
// block ranges, and the session/manifest/audit envelopes that wrap a
// scan. Individual parsers (xfs, btrfs, exfat) populate these types;
// nothing downstream needs to know which filesystem produced them.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Fsid identifies which on-disk format a session or candidate came from.
type Fsid int

const (
	FsidXFS Fsid = iota
	FsidBtrfs
	FsidExFAT
)

func (f Fsid) String() string {
	switch f {
	case FsidXFS:
		return "XFS"
	case FsidBtrfs:
		return "Btrfs"
	case FsidExFAT:
		return "exFAT"
	default:
		return "Unknown"
	}
}

// Ino is a 64-bit identifier: the inode number for XFS/Btrfs, or the
// first cluster for exFAT. Stored uniformly across filesystems.
type Ino = uint64

// RangeUnit disambiguates whether a BlockRange's Start/Count are in
// block units or byte units. XFS and Btrfs are block-addressed;
// exFAT's chain-to-range conversion materializes byte offsets. This
// makes explicit what spec.md's design notes flagged as an implicit
// convention (see DESIGN.md, Open Question #2).
type RangeUnit int

const (
	UnitBlock RangeUnit = iota
	UnitByte
)

// BlockRange is a contiguous span of storage backing a file's data.
// Count must be > 0.
type BlockRange struct {
	Start     uint64
	Count     uint64
	Allocated bool
}

// Unit resolves the interpretation of a BlockRange that belongs to a
// file on the given filesystem.
func Unit(fs Fsid) RangeUnit {
	if fs == FsidExFAT {
		return UnitByte
	}
	return UnitBlock
}

// FileType enumerates the recoverable entry kinds.
type FileType int

const (
	FileTypeRegular FileType = iota
	FileTypeDirectory
	FileTypeSymlink
	FileTypeUnknown
)

// FileMetadata carries whatever ambient attributes a parser could
// recover about a file; every field is optional because deleted
// entries are frequently missing some of them.
type FileMetadata struct {
	MimeType    *string
	Extension   *string
	Permissions *uint32
	OwnerUID    *uint32
	OwnerGID    *uint32
	Created     *time.Time
	Modified    *time.Time
	Accessed    *time.Time
	Xattrs      map[string][]byte
}

// CompletenessFields reports how many of the well-known optional
// fields are present, and how many fields are tracked in total —
// used by the confidence scorer's metadata-completeness factor.
func (m FileMetadata) CompletenessFields() (present, total int) {
	total = 6
	if m.MimeType != nil {
		present++
	}
	if m.Extension != nil {
		present++
	}
	if m.Permissions != nil {
		present++
	}
	if m.Created != nil {
		present++
	}
	if m.Modified != nil {
		present++
	}
	if len(m.Xattrs) > 0 {
		present++
	}
	return present, total
}

// DeletedFile is the central recovery record: a candidate file
// reconstructed from orphaned or deleted on-disk structures.
type DeletedFile struct {
	ID            uint64
	Ino           Ino
	OriginalPath  *string
	Size          uint64
	DeletionTime  *time.Time
	Confidence    float32
	FileType      FileType
	DataBlocks    []BlockRange
	IsRecoverable bool
	Metadata      FileMetadata
	FsMetadata    any
	Fsid          Fsid
}

// ClampConfidence clamps Confidence into [0,1].
func (f *DeletedFile) ClampConfidence() {
	if f.Confidence < 0 {
		f.Confidence = 0
	}
	if f.Confidence > 1 {
		f.Confidence = 1
	}
}

// Fragment is a detected span of potentially file-bearing bytes,
// catalogued for later reassembly. Immutable after insertion into a
// FragmentCatalog.
type Fragment struct {
	ID           uint64
	StartOffset  int64
	Size         int64
	Signature    *string // mime type, if a signature matched
	ContentHash  uint64  // FNV-1a over the first 1KiB
	ParentHint   *uint64
	TemporalHint *time.Time
	Confidence   float32
	BlockNumber  int64
	Data         []byte
}

// RecoverySession is the full record of one scan-and-recovery
// invocation against one image. Immutable once returned by the
// orchestrator.
type RecoverySession struct {
	ID                   uuid.UUID
	Fsid                 Fsid
	DevicePath           string
	CreatedAt            time.Time
	ScanResults          []DeletedFile
	TotalScanned         uint64
	ConfidenceThreshold  float32
	Metadata             SessionMetadata
	Stage                string
}

// SessionMetadata carries size/duration bookkeeping about a session.
type SessionMetadata struct {
	DeviceSize       uint64
	FilesystemSize   uint64
	BlockSize        uint32
	ScanDurationMs    uint64
	FilesFound       uint32
	RecoverableFiles uint32
}

// AuditSeverity classifies an AuditEntry.
type AuditSeverity int

const (
	SeverityInfo AuditSeverity = iota
	SeverityWarning
	SeverityError
)

func (s AuditSeverity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// AuditEventType enumerates audit log events.
type AuditEventType string

const (
	EventSessionStarted  AuditEventType = "session_started"
	EventStageCompleted  AuditEventType = "stage_completed"
	EventFileRecovered   AuditEventType = "file_recovered"
	EventFileFailed      AuditEventType = "file_failed"
	EventWarning         AuditEventType = "warning"
	EventSessionComplete AuditEventType = "session_complete"
	EventCancelled       AuditEventType = "cancelled"
)

// DefaultSeverity derives the severity implied by an event type unless
// the caller overrides it explicitly.
func DefaultSeverity(t AuditEventType) AuditSeverity {
	switch t {
	case EventFileFailed, EventCancelled:
		return SeverityError
	case EventWarning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ID        uint64
	Timestamp time.Time
	EventType AuditEventType
	SessionID uuid.UUID
	User      *string
	Message   string
	Metadata  map[string]string
	Severity  AuditSeverity
}

// FileHash is one entry in a HashManifest.
type FileHash struct {
	Algorithm     string
	HexHash       string
	Size          uint64
	CalculatedAt  time.Time
}

// HashManifest is the chain-of-custody record of content hashes for
// every file written to a recovery output directory.
type HashManifest struct {
	ManifestID string
	CreatedAt  time.Time
	Algorithm  string
	Files      map[string]FileHash
}

// TimelineEventType enumerates timeline entries.
type TimelineEventType string

const (
	TimelineCreated   TimelineEventType = "created"
	TimelineModified  TimelineEventType = "modified"
	TimelineDeleted   TimelineEventType = "deleted"
	TimelineRecovered TimelineEventType = "recovered"
)

// TimelineEntry is one event derived from a file's timestamps.
type TimelineEntry struct {
	Timestamp   time.Time
	EventType   TimelineEventType
	FileID      uint64
	Description string
}
