// Package recoverwrite writes a DeletedFile's bytes out to disk,
// generalizing the teacher's fat32.Parser.RecoverFile/ntfs.Parser.RecoverFile
// (os.Create + cluster-by-cluster os.File.Write, one entry per output
// file) from a single FAT-chain walk into the BlockRange list every
// filesystem driver already produces, and from a bare byte count into
// the FileRecovered/partial_ audit trail spec §4.12 asks for.
package recoverwrite

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/shubham/ghostrecover/internal/evidence"
	"github.com/shubham/ghostrecover/internal/ghosterr"
	"github.com/shubham/ghostrecover/internal/model"

	"github.com/google/uuid"
)

// Result reports what actually landed on disk for one file.
type Result struct {
	OutputPath   string
	BytesWritten uint64
	Partial      bool
}

// OutputName picks the destination file name: the original path's
// base name if known, else recovered_file_{id}{.ext} using the
// signature-detected mime's extension when present (spec §4.12).
func OutputName(file model.DeletedFile) string {
	if file.OriginalPath != nil && *file.OriginalPath != "" {
		return filepath.Base(*file.OriginalPath)
	}
	ext := ""
	if file.Metadata.Extension != nil && *file.Metadata.Extension != "" {
		ext = "." + *file.Metadata.Extension
	}
	return "recovered_file_" + strconv.FormatUint(file.ID, 10) + ext
}

// blockSource is the minimal read contract recoverwrite needs; it
// matches blocksource.Source without importing it directly, so the
// package stays usable against any reader with the same shape.
type blockSource interface {
	Read(offset, length int64) ([]byte, error)
	Size() int64
}

// Write streams file's data, in BlockRange order, into dir/OutputName,
// translating each range into a byte offset according to unit (block
// units for XFS/Btrfs at blockSize, byte units for exFAT where
// blockSize is ignored). A short read from src stops the write early
// rather than failing the whole file — spec §4.12's "partial_" prefix
// exists precisely because on-disk data can run out mid-file.
func Write(src blockSource, file model.DeletedFile, dir string, unit model.RangeUnit, blockSize int64) (Result, error) {
	if file.FileType == model.FileTypeDirectory {
		path := filepath.Join(dir, OutputName(file))
		if err := os.MkdirAll(path, 0o755); err != nil {
			return Result{}, ghosterr.Wrap(ghosterr.KindIO, "create recovered directory", err)
		}
		return Result{OutputPath: path}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, ghosterr.Wrap(ghosterr.KindIO, "create output dir", err)
	}
	outPath := filepath.Join(dir, OutputName(file))
	out, err := os.Create(outPath)
	if err != nil {
		return Result{}, ghosterr.Wrap(ghosterr.KindIO, "create recovered file", err)
	}
	defer out.Close()

	var written uint64
	for _, r := range file.DataBlocks {
		if written >= file.Size {
			break
		}
		offset, length := rangeToBytes(r, unit, blockSize)
		remaining := file.Size - written
		if uint64(length) > remaining {
			length = int64(remaining)
		}
		if length <= 0 {
			continue
		}
		if offset >= src.Size() {
			break // source ends before this range: stop, report what was written
		}
		if offset+length > src.Size() {
			length = src.Size() - offset
		}
		data, err := src.Read(offset, length)
		if err != nil {
			break // short read: stop here, report what was written
		}
		n, err := out.Write(data)
		written += uint64(n)
		if err != nil {
			break
		}
		if int64(n) < length {
			break
		}
	}

	if file.Metadata.Permissions != nil {
		_ = os.Chmod(outPath, os.FileMode(*file.Metadata.Permissions))
	}

	return Result{OutputPath: outPath, BytesWritten: written, Partial: written < file.Size}, nil
}

func rangeToBytes(r model.BlockRange, unit model.RangeUnit, blockSize int64) (offset, length int64) {
	if unit == model.UnitByte {
		return int64(r.Start), int64(r.Count)
	}
	return int64(r.Start) * blockSize, int64(r.Count) * blockSize
}

// LogResult emits the FileRecovered audit entry for one write,
// prefixing the message with partial_ when the file came up short.
func LogResult(audit *evidence.AuditLog, sessionID uuid.UUID, file model.DeletedFile, res Result) {
	if audit == nil {
		return
	}
	message := "FileRecovered: " + res.OutputPath
	if res.Partial {
		message = "partial_FileRecovered: " + res.OutputPath
	}
	_, _ = audit.Append(sessionID, model.EventFileRecovered, message, map[string]string{
		"bytes_written": strconv.FormatUint(res.BytesWritten, 10),
		"file_size":     strconv.FormatUint(file.Size, 10),
	})
}
