// Package exfat parses exFAT boot sector, FAT table, cluster chains,
// and directory entry sets — including deleted entry-set variants and
// orphan cluster chains. It generalizes the teacher's
// internal/fat32.Parser (FAT table load, cluster-chain walk, directory
// scan, LFN-style multi-entry names) from FAT32's single-entry
// short/long-name scheme to exFAT's three-entry File/Stream/Filename
// sets, per spec §4.5.
package exfat

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/shubham/ghostrecover/internal/ghosterr"
)

const (
	bootSignature = "EXFAT   "

	// FAT entry semantics (spec §4.5).
	clusterFree      = 0x00000000
	clusterReserved  = 0x00000001
	clusterBadMin    = 0xFFFFFFF7
	clusterEOCMin    = 0xFFFFFFF8

	// Directory entry types.
	entryTypeFile         = 0x85
	entryTypeStream       = 0xC0
	entryTypeFilename     = 0xC1
	entryTypeFileDeleted     = 0x05
	entryTypeStreamDeleted   = 0x40
	entryTypeFilenameDeleted = 0x41

	noFatChainFlag = 0x02

	maxDirDepth = 32
)

// BootSector is the subset of fields spec §6 names.
type BootSector struct {
	PartitionOffset    uint64
	VolumeLength       uint64
	FATOffset          uint32
	FATLength          uint32
	ClusterHeapOffset  uint32
	ClusterCount       uint32
	RootCluster        uint32
	BytesPerSectorShift uint8
	SectorsPerClusterShift uint8

	BytesPerSector  uint32
	BytesPerCluster uint32
}

// ReadBootSector parses sector 0, verifying the "EXFAT   " signature.
func ReadBootSector(src blocksource.Source) (*BootSector, error) {
	buf, err := src.Read(0, 512)
	if err != nil {
		return nil, err
	}
	if len(buf) < 120 {
		return nil, ghosterr.New(ghosterr.KindParse, "exfat boot sector truncated")
	}
	if string(buf[3:11]) != bootSignature {
		return nil, ghosterr.New(ghosterr.KindInvalidFS, "exfat signature mismatch")
	}

	bs := &BootSector{
		PartitionOffset:        binary.LittleEndian.Uint64(buf[64:72]),
		VolumeLength:           binary.LittleEndian.Uint64(buf[72:80]),
		FATOffset:              binary.LittleEndian.Uint32(buf[80:84]),
		FATLength:              binary.LittleEndian.Uint32(buf[84:88]),
		ClusterHeapOffset:      binary.LittleEndian.Uint32(buf[88:92]),
		ClusterCount:           binary.LittleEndian.Uint32(buf[92:96]),
		RootCluster:            binary.LittleEndian.Uint32(buf[96:100]),
		BytesPerSectorShift:    buf[108],
		SectorsPerClusterShift: buf[109],
	}
	bs.BytesPerSector = 1 << bs.BytesPerSectorShift
	bs.BytesPerCluster = bs.BytesPerSector << bs.SectorsPerClusterShift
	return bs, nil
}

// ClusterOffset returns the byte offset of the given cluster's first
// byte (clusters are numbered from 2, as in FAT32).
func (bs *BootSector) ClusterOffset(cluster uint32) int64 {
	heapOffsetBytes := int64(bs.ClusterHeapOffset) * int64(bs.BytesPerSector)
	return heapOffsetBytes + int64(cluster-2)*int64(bs.BytesPerCluster)
}

// FAT is the fully loaded allocation table.
type FAT struct {
	entries []uint32
}

// LoadFAT reads the FAT table in full.
func LoadFAT(src blocksource.Source, bs *BootSector) (*FAT, error) {
	fatStart := int64(bs.FATOffset) * int64(bs.BytesPerSector)
	fatLen := int64(bs.FATLength) * int64(bs.BytesPerSector)
	buf, err := src.Read(fatStart, fatLen)
	if err != nil {
		return nil, err
	}
	entries := make([]uint32, len(buf)/4)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return &FAT{entries: entries}, nil
}

func (f *FAT) at(cluster uint32) uint32 {
	if int(cluster) >= len(f.entries) {
		return clusterEOCMin
	}
	return f.entries[cluster]
}

// Chain follows the FAT links for cluster, with a visited-set cycle
// detector, terminating at EOC/bad/free (spec §4.5, §8 invariant 4).
func (f *FAT) Chain(start uint32) []uint32 {
	var chain []uint32
	visited := make(map[uint32]bool)
	c := start
	for c >= 2 && c < clusterBadMin {
		if visited[c] {
			break
		}
		visited[c] = true
		chain = append(chain, c)
		if len(chain) > len(f.entries) {
			break // absolute backstop even if the visited-set were bypassed
		}
		c = f.at(c)
	}
	return chain
}

// ChainNoFat returns a synthetic contiguous chain of n clusters
// starting at start, used when the NoFatChain flag is set on a Stream
// extension entry (the file's data is contiguous and doesn't follow
// FAT links at all).
func ChainNoFat(start uint32, n uint32) []uint32 {
	chain := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		chain = append(chain, start+i)
	}
	return chain
}

// ByteRange is a contiguous span, used before translation into the
// model.BlockRange the rest of the engine consumes.
type ByteRange struct {
	Start int64
	Count int64
}

// ChainToByteRanges converts a cluster chain into coalesced byte
// ranges (spec §4.5): adjacent clusters merge into one contiguous run.
func (bs *BootSector) ChainToByteRanges(chain []uint32) []ByteRange {
	var out []ByteRange
	for _, c := range chain {
		off := bs.ClusterOffset(c)
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Start+last.Count == off {
				last.Count += int64(bs.BytesPerCluster)
				continue
			}
		}
		out = append(out, ByteRange{Start: off, Count: int64(bs.BytesPerCluster)})
	}
	return out
}

// DirEntrySet is one decoded File/Stream/Filename entry group,
// deleted or live.
type DirEntrySet struct {
	Name         string
	FirstCluster uint32
	DataLength   uint64
	NoFatChain   bool
	IsDeleted    bool
	IsDirectory  bool
}

const fileAttrDirectory = 0x10

// ParseDirectoryCluster decodes a single cluster's worth of 32-byte
// directory records into entry sets. Deleted variants
// ({0x05,0x40,0x41}) decode exactly like their live counterparts
// ({0x85,0xC0,0xC1}) — the high bit (0x80, "in use") is the only
// difference — so both are handled by the same state machine.
func ParseDirectoryCluster(data []byte) []DirEntrySet {
	const recSize = 32
	var out []DirEntrySet

	var pending *DirEntrySet
	var nameParts []string
	var wantFilenameEntries int

	flush := func() {
		if pending != nil {
			pending.Name = joinName(nameParts)
			out = append(out, *pending)
		}
		pending = nil
		nameParts = nil
		wantFilenameEntries = 0
	}

	for off := 0; off+recSize <= len(data); off += recSize {
		rec := data[off : off+recSize]
		entryType := rec[0]
		switch entryType {
		case entryTypeFile, entryTypeFileDeleted:
			flush()
			deleted := entryType == entryTypeFileDeleted
			secondaryCount := int(rec[1])
			attrs := binary.LittleEndian.Uint16(rec[4:6])
			pending = &DirEntrySet{
				IsDeleted:   deleted,
				IsDirectory: attrs&fileAttrDirectory != 0,
			}
			wantFilenameEntries = secondaryCount - 1
			if wantFilenameEntries < 0 {
				wantFilenameEntries = 0
			}

		case entryTypeStream, entryTypeStreamDeleted:
			if pending == nil {
				continue
			}
			flags := rec[1]
			pending.NoFatChain = flags&noFatChainFlag != 0
			pending.FirstCluster = binary.LittleEndian.Uint32(rec[20:24])
			pending.DataLength = binary.LittleEndian.Uint64(rec[24:32])

		case entryTypeFilename, entryTypeFilenameDeleted:
			if pending == nil {
				continue
			}
			nameParts = append(nameParts, decodeFilenameChunk(rec[2:32]))
			if len(nameParts) >= wantFilenameEntries {
				// Entry set complete once every expected filename
				// fragment has been consumed; next record starts a
				// new set (or is end-of-directory).
			}

		case 0x00:
			flush()
			return out

		default:
			// Volume label, allocation bitmap, up-case table, or any
			// entry type this recovery path doesn't need.
			continue
		}
	}
	flush()
	return out
}

func decodeFilenameChunk(b []byte) string {
	units := make([]uint16, 0, 15)
	for i := 0; i+2 <= len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

func joinName(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}

// WalkDirectory recursively scans cluster chains for directory entry
// sets, depth-capped at maxDirDepth to guarantee termination on a
// cyclic or malicious directory tree (spec §4.5/§4.6).
func WalkDirectory(src blocksource.Source, bs *BootSector, fat *FAT, startCluster uint32, depth int, visit func(entry DirEntrySet, parentCluster uint32)) {
	if depth > maxDirDepth {
		return
	}
	chain := fat.Chain(startCluster)
	for _, cluster := range chain {
		off := bs.ClusterOffset(cluster)
		data, err := src.Read(off, int64(bs.BytesPerCluster))
		if err != nil {
			continue
		}
		entries := ParseDirectoryCluster(data)
		for _, e := range entries {
			visit(e, startCluster)
			if !e.IsDeleted && e.IsDirectory && e.FirstCluster >= 2 {
				WalkDirectory(src, bs, fat, e.FirstCluster, depth+1, visit)
			}
		}
	}
}

// FindOrphanClusters returns every allocated cluster (per the FAT)
// that was never visited by WalkDirectory, each the start of a
// candidate orphan chain. The scan is bounded by
// min(cluster_count, maxClusters) — a pragmatic guard, not a
// contractual limit (spec §9).
func FindOrphanClusters(fat *FAT, referenced map[uint32]bool, clusterCount uint32, maxClusters int) []uint32 {
	limit := int(clusterCount)
	if maxClusters > 0 && maxClusters < limit {
		limit = maxClusters
	}
	var orphans []uint32
	for c := uint32(2); int(c) < limit+2; c++ {
		if fat.at(c) == clusterFree || fat.at(c) == clusterReserved {
			continue
		}
		if referenced[c] {
			continue
		}
		orphans = append(orphans, c)
	}
	return orphans
}
