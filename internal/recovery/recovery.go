// Package recovery drives one recovery session end-to-end through the
// Init → AnalyzeFS → DirScan → InodeScan → SignatureScan →
// MetadataEnhance → ScoreAll → FinalFilter → Complete state machine,
// generalizing the teacher's fat32.Recover/ntfs.Recover/carver.Recover
// free functions (each a detect → scan → print → optionally-write
// sequence) into one state machine that drives all three parsers
// uniformly.
package recovery

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/shubham/ghostrecover/internal/btrfs"
	"github.com/shubham/ghostrecover/internal/confidence"
	"github.com/shubham/ghostrecover/internal/config"
	"github.com/shubham/ghostrecover/internal/dirtree"
	"github.com/shubham/ghostrecover/internal/evidence"
	"github.com/shubham/ghostrecover/internal/exfat"
	"github.com/shubham/ghostrecover/internal/fragment"
	"github.com/shubham/ghostrecover/internal/ghosterr"
	"github.com/shubham/ghostrecover/internal/model"
	"github.com/shubham/ghostrecover/internal/signature"
	"github.com/shubham/ghostrecover/internal/xfs"
)

// Stage names the orchestrator's state machine positions.
type Stage string

const (
	StageInit             Stage = "Init"
	StageAnalyzeFS        Stage = "AnalyzeFS"
	StageDirScan          Stage = "DirScan"
	StageInodeScan        Stage = "InodeScan"
	StageSignatureScan    Stage = "SignatureScan"
	StageMetadataEnhance  Stage = "MetadataEnhance"
	StageScoreAll         Stage = "ScoreAll"
	StageFinalFilter      Stage = "FinalFilter"
	StageComplete         Stage = "Complete"
	StageCancelled        Stage = "Cancelled"
	StageInvalidFileSystem Stage = "InvalidFileSystem"
)

// Progress is the advisory progress report passed to a caller's
// callback; dropping an event must never affect correctness (spec
// §4.10).
type Progress struct {
	Stage            Stage
	Percent          float64
	FilesFound       int
	BytesProcessed   int64
	ETA              *time.Duration
	CurrentOperation string
}

// ProgressFunc is the orchestrator's progress callback contract.
type ProgressFunc func(Progress)

// CancelToken is polled at stage boundaries and between SignatureScan
// chunks.
type CancelToken interface {
	Cancelled() bool
}

const signatureScanChunkSize = 1 << 20 // 1 MiB
const signatureMatchThreshold = 0.7

// Engine runs recovery sessions against one image source.
type Engine struct {
	src      blocksource.Source
	cfg      config.RecoveryConfig
	log      *zap.SugaredLogger
	audit    *evidence.AuditLog
	catalog  *fragment.Catalog
	progress ProgressFunc
	cancel   CancelToken
}

// New builds an Engine. log may be nil (defaults to a no-op logger,
// matching the teacher's "logger optional" stance); audit may be nil
// if the caller doesn't want an audit trail for this session.
func New(src blocksource.Source, cfg config.RecoveryConfig, log *zap.SugaredLogger, audit *evidence.AuditLog) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		src:     src,
		cfg:     cfg,
		log:     log,
		audit:   audit,
		catalog: fragment.NewCatalog(),
	}
}

// SetProgress installs a progress callback.
func (e *Engine) SetProgress(f ProgressFunc) { e.progress = f }

// SetCancelToken installs a cancellation token, polled at stage
// boundaries and between SignatureScan chunks.
func (e *Engine) SetCancelToken(t CancelToken) { e.cancel = t }

func (e *Engine) report(p Progress) {
	if e.progress != nil {
		e.progress(p)
	}
}

func (e *Engine) cancelled() bool {
	return e.cancel != nil && e.cancel.Cancelled()
}

func (e *Engine) logAudit(sessionID uuid.UUID, eventType model.AuditEventType, message string) {
	if e.audit == nil {
		return
	}
	if _, err := e.audit.Append(sessionID, eventType, message, nil); err != nil {
		e.log.Warnw("audit append failed", "error", err)
	}
}

// fsDriver abstracts what each of xfs/btrfs/exfat contributes: a dir
// scan producing parent-lookups, an inode/cluster scan producing
// candidate files, and a block size for range math.
type fsDriver interface {
	BlockSize() int64
	ScanDirectories() (dirtree.Node, error)
	ScanCandidates() ([]model.DeletedFile, error)
	// FSSpecificScore computes the per-format structural sub-score
	// (chain/structure/checksum checks only this driver can make)
	// for confidence.Input.FSSpecificScore.
	FSSpecificScore(model.DeletedFile) float64
}

// Run executes the full state machine for one device path/fsid and
// returns the resulting session. AnalyzeFS failure is the only
// terminal, non-recoverable stage; every later stage catches and logs
// its own errors and proceeds with partial results (spec §4.10).
func (e *Engine) Run(fsid model.Fsid, devicePath string) (model.RecoverySession, error) {
	sessionID := uuid.New()
	started := time.Now()
	session := model.RecoverySession{
		ID:                  sessionID,
		Fsid:                fsid,
		DevicePath:          devicePath,
		CreatedAt:           started,
		ConfidenceThreshold: float32(e.cfg.MinConfidenceThreshold),
		Stage:               string(StageInit),
	}
	e.logAudit(sessionID, model.EventSessionStarted, "recovery session started")

	driver, err := e.buildDriver(fsid)
	if err != nil {
		session.Stage = string(StageInvalidFileSystem)
		e.logAudit(sessionID, model.EventFileFailed, "filesystem analysis failed: "+err.Error())
		return session, err
	}
	e.report(Progress{Stage: StageAnalyzeFS, Percent: 5, CurrentOperation: "superblock parsed"})

	if e.cancelled() {
		return e.cancelSession(session)
	}

	var files []model.DeletedFile

	session.Stage = string(StageDirScan)
	dirNodes, err := driver.ScanDirectories()
	if err != nil {
		e.log.Warnw("directory scan failed, continuing with partial results", "error", err)
	}
	e.report(Progress{Stage: StageDirScan, Percent: 20})
	if e.cancelled() {
		return e.cancelSession(session)
	}

	session.Stage = string(StageInodeScan)
	candidates, err := driver.ScanCandidates()
	if err != nil {
		e.log.Warnw("inode/cluster scan failed, continuing with partial results", "error", err)
	} else {
		files = append(files, candidates...)
	}
	e.report(Progress{Stage: StageInodeScan, Percent: 40, FilesFound: len(files)})
	if e.cancelled() {
		return e.cancelSession(session)
	}

	if dirNodes != nil {
		recon := dirtree.New(dirNodes)
		for i := range files {
			p := recon.ReconstructPath(files[i].Ino)
			files[i].OriginalPath = &p
		}
	}

	session.Stage = string(StageSignatureScan)
	sigFiles, bytesProcessed := e.signatureScan(fsid)
	files = append(files, sigFiles...)
	// Ids are handed out once every discovery stage has run, in
	// discovery order, so they increase monotonically within a session.
	for i := range files {
		files[i].ID = uint64(i + 1)
	}
	e.report(Progress{Stage: StageSignatureScan, Percent: 60, FilesFound: len(files), BytesProcessed: bytesProcessed})
	if e.cancelled() {
		return e.cancelSession(session)
	}

	session.Stage = string(StageMetadataEnhance)
	// Metadata enhancement is per-FS-driver enrichment; the base
	// engine leaves FileMetadata as the scan produced it, since
	// xfs/btrfs/exfat already populate what each format exposes.
	e.report(Progress{Stage: StageMetadataEnhance, Percent: 75, FilesFound: len(files)})
	if e.cancelled() {
		return e.cancelSession(session)
	}

	session.Stage = string(StageScoreAll)
	ctx := confidence.Context{
		Fsid:        fsid,
		ScanTime:    started,
		FSIntegrity: 1.0,
		TotalFiles:  len(files),
		Activity:    confidence.ActivityLow,
	}
	blockSize := driver.BlockSize()
	session.Metadata.BlockSize = uint32(blockSize)
	unit := model.Unit(fsid)
	for i := range files {
		var allocated, total int64
		for _, r := range files[i].DataBlocks {
			total += int64(r.Count)
			if r.Allocated {
				allocated += int64(r.Count)
			}
		}
		score := confidence.Score(confidence.Input{
			File:            files[i],
			AllocatedBlocks: allocated,
			TotalBlocks:     total,
			BlockSize:       blockSize,
			Signature:       e.signatureVerdict(files[i], unit, blockSize),
			FSSpecificScore: driver.FSSpecificScore(files[i]),
		}, ctx)
		files[i].Confidence = float32(score)
		files[i].ClampConfidence()
	}
	e.report(Progress{Stage: StageScoreAll, Percent: 90, FilesFound: len(files)})
	if e.cancelled() {
		return e.cancelSession(session)
	}

	session.Stage = string(StageFinalFilter)
	files = finalFilter(files, float64(e.cfg.MinConfidenceThreshold))
	e.report(Progress{Stage: StageFinalFilter, Percent: 95, FilesFound: len(files)})

	session.ScanResults = files
	session.TotalScanned = uint64(len(files))
	session.Stage = string(StageComplete)
	session.Metadata.ScanDurationMs = uint64(time.Since(started).Milliseconds())
	session.Metadata.FilesFound = uint32(len(files))

	e.logAudit(sessionID, model.EventSessionComplete, "recovery session complete")
	return session, nil
}

func (e *Engine) cancelSession(session model.RecoverySession) (model.RecoverySession, error) {
	session.Stage = string(StageCancelled)
	e.logAudit(session.ID, model.EventCancelled, "recovery session cancelled")
	return session, nil
}

// finalFilter retains only files at or above the threshold, sorted
// descending by confidence (spec §4.10).
func finalFilter(files []model.DeletedFile, threshold float64) []model.DeletedFile {
	var kept []model.DeletedFile
	for _, f := range files {
		if float64(f.Confidence) >= threshold {
			kept = append(kept, f)
		}
	}
	// Stable insertion sort, matching signature.Detect's tie-break
	// discipline elsewhere in this engine: deterministic ordering on
	// equal confidence rather than sort.Slice's unspecified tie order.
	for i := 1; i < len(kept); i++ {
		j := i
		for j > 0 && kept[j-1].Confidence < kept[j].Confidence {
			kept[j-1], kept[j] = kept[j], kept[j-1]
			j--
		}
	}
	return kept
}

const signatureVerdictProbeBytes = 64

// signatureVerdict reads the start of a candidate's first data range
// and checks it against the signature table, cross-referencing any
// mime/extension the driver already populated so the confidence
// scorer sees an actual verdict instead of a fixed placeholder.
func (e *Engine) signatureVerdict(f model.DeletedFile, unit model.RangeUnit, blockSize int64) confidence.SignatureVerdict {
	if len(f.DataBlocks) == 0 {
		return confidence.SignatureNone
	}
	offset, length := rangeToBytes(f.DataBlocks[0], unit, blockSize)
	if length > signatureVerdictProbeBytes {
		length = signatureVerdictProbeBytes
	}
	if length <= 0 {
		return confidence.SignatureNone
	}
	data, err := e.src.Read(offset, length)
	if err != nil || len(data) == 0 {
		return confidence.SignatureNone
	}

	matches := signature.Detect(data, len(data))
	if len(matches) == 0 {
		return confidence.SignatureNone
	}
	best := matches[0]

	var declaredMime, declaredExt string
	if f.Metadata.MimeType != nil {
		declaredMime = *f.Metadata.MimeType
	}
	if f.Metadata.Extension != nil {
		declaredExt = *f.Metadata.Extension
	}

	switch {
	case declaredMime != "":
		if declaredMime == best.Pattern.Mime {
			return confidence.SignatureMatch
		}
		return confidence.SignatureMismatch
	case declaredExt != "":
		for _, ext := range best.Pattern.Extensions {
			if ext == declaredExt {
				return confidence.SignatureExtOnly
			}
		}
		return confidence.SignatureMismatch
	default:
		return confidence.SignatureMimeOnly
	}
}

// rangeToBytes translates a BlockRange into a byte offset/length,
// matching recoverwrite's own translation for the same RangeUnit.
func rangeToBytes(r model.BlockRange, unit model.RangeUnit, blockSize int64) (offset, length int64) {
	if unit == model.UnitByte {
		return int64(r.Start), int64(r.Count)
	}
	return int64(r.Start) * blockSize, int64(r.Count) * blockSize
}

// signatureScan iterates the entire image in 1MiB chunks, keeping
// matches above the threshold as single-BlockRange candidate files and
// collapsing duplicates at the same start offset with the same mime.
func (e *Engine) signatureScan(fsid model.Fsid) ([]model.DeletedFile, int64) {
	var out []model.DeletedFile
	seen := map[string]bool{}
	var processed int64
	size := e.src.Size()

	for offset := int64(0); offset < size; offset += signatureScanChunkSize {
		if e.cancelled() {
			break
		}
		length := int64(signatureScanChunkSize)
		if offset+length > size {
			length = size - offset
		}
		chunk, err := e.src.Read(offset, length)
		if err != nil {
			e.log.Warnw("signature scan chunk read failed", "offset", offset, "error", err)
			continue
		}
		processed += int64(len(chunk))

		matches := signature.Detect(chunk, len(chunk))
		for _, m := range matches {
			if m.Confidence <= signatureMatchThreshold {
				continue
			}
			key := dedupeKey(offset, m.Pattern.Mime)
			if seen[key] {
				continue
			}
			seen[key] = true

			mime := m.Pattern.Mime
			out = append(out, model.DeletedFile{
				Size:          uint64(len(chunk)),
				Confidence:    m.Confidence,
				FileType:      model.FileTypeRegular,
				IsRecoverable: true,
				DataBlocks:    []model.BlockRange{{Start: uint64(offset), Count: uint64(len(chunk)), Allocated: true}},
				Metadata:      model.FileMetadata{MimeType: &mime},
				Fsid:          fsid,
			})
		}
	}
	return out, processed
}

func dedupeKey(offset int64, mime string) string {
	return mime + ":" + strconv.FormatInt(offset, 10)
}

// buildDriver parses the superblock for fsid and returns the matching
// fsDriver, or an InvalidFileSystem error (the only terminal failure
// in the state machine).
func (e *Engine) buildDriver(fsid model.Fsid) (fsDriver, error) {
	switch fsid {
	case model.FsidXFS:
		p, err := xfs.NewParser(e.src)
		if err != nil {
			return nil, err
		}
		return &xfsDriver{src: e.src, parser: p, cfg: e.cfg}, nil
	case model.FsidBtrfs:
		sb, err := btrfs.ReadSuperblock(e.src)
		if err != nil {
			return nil, err
		}
		return &btrfsDriver{src: e.src, sb: sb}, nil
	case model.FsidExFAT:
		bs, err := exfat.ReadBootSector(e.src)
		if err != nil {
			return nil, err
		}
		fat, err := exfat.LoadFAT(e.src, bs)
		if err != nil {
			return nil, err
		}
		return &exfatDriver{src: e.src, bs: bs, fat: fat, cfg: e.cfg}, nil
	default:
		return nil, ghosterr.New(ghosterr.KindInvalidFS, "unknown filesystem identifier")
	}
}
