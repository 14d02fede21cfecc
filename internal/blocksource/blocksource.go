// Package blocksource provides a read-only, random-access byte view
// over a forensic image, generalizing the teacher's internal/disk
// reader (os.File + ReadAt) into the Source interface every parser
// depends on. Implementations never write; bounded reads past the end
// of the image return a ghosterr OutOfRange instead of a short read.
package blocksource

import (
	"fmt"
	"io"
	"os"

	"github.com/shubham/ghostrecover/internal/ghosterr"
)

// Source is a read-only, random-access byte view with a known total
// size. Read returns a borrowed slice valid until the next Read call on
// the same Source's internal buffer unless the implementation copies.
type Source interface {
	Size() int64
	Read(offset, length int64) ([]byte, error)
	Close() error
}

// FileSource backs a Source with a plain os.File, the way the teacher's
// disk.Reader does. It works uniformly across platforms (unlike an
// mmap-backed source, which needs OS-specific syscalls), so it is the
// default for both regular image files and block devices.
type FileSource struct {
	file *os.File
	size int64
}

// Open mirrors disk.Open: stats the file for its size, falling back to
// seek-to-end for block devices that report size 0 via Stat.
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ghosterr.Wrap(ghosterr.KindIO, "open image", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ghosterr.Wrap(ghosterr.KindIO, "stat image", err)
	}

	size := stat.Size()
	if size == 0 {
		size, err = f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return nil, ghosterr.Wrap(ghosterr.KindIO, "determine image size", err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, ghosterr.Wrap(ghosterr.KindIO, "rewind image", err)
		}
	}

	return &FileSource{file: f, size: size}, nil
}

func (s *FileSource) Size() int64 { return s.size }

func (s *FileSource) Read(offset, length int64) ([]byte, error) {
	if length < 0 || offset < 0 || offset+length > s.size {
		return nil, ghosterr.OutOfRange(offset, length, s.size)
	}
	buf := make([]byte, length)
	n, err := s.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, ghosterr.Wrap(ghosterr.KindIO, fmt.Sprintf("read %d bytes at %d", length, offset), err)
	}
	return buf[:n], nil
}

func (s *FileSource) Close() error { return s.file.Close() }

// MemSource backs a Source with an in-memory byte slice — used by
// tests to build synthetic images without touching the filesystem.
type MemSource struct {
	data []byte
}

func NewMemSource(data []byte) *MemSource {
	return &MemSource{data: data}
}

func (m *MemSource) Size() int64 { return int64(len(m.data)) }

func (m *MemSource) Read(offset, length int64) ([]byte, error) {
	if length < 0 || offset < 0 || offset+length > int64(len(m.data)) {
		return nil, ghosterr.OutOfRange(offset, length, int64(len(m.data)))
	}
	return m.data[offset : offset+length], nil
}

func (m *MemSource) Close() error { return nil }
