package recovery

import (
	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/shubham/ghostrecover/internal/btrfs"
	"github.com/shubham/ghostrecover/internal/config"
	"github.com/shubham/ghostrecover/internal/dirtree"
	"github.com/shubham/ghostrecover/internal/exfat"
	"github.com/shubham/ghostrecover/internal/model"
	"github.com/shubham/ghostrecover/internal/xfs"
)

// xfsNodes adapts xfs directory entries to dirtree.Node: key space is
// inode numbers, root auto-detection tries {64,128} among known
// directory inodes, else falls back to the smallest directory inode
// seen (spec §4.6).
type xfsNodes struct {
	parentOf map[uint64]uint64
	nameOf   map[uint64]string
	root     uint64
}

func (n *xfsNodes) Lookup(key uint64) (name string, parent uint64, root bool, ok bool) {
	if key == n.root {
		return n.nameOf[key], 0, true, true
	}
	parent, ok = n.parentOf[key]
	if !ok {
		return "", 0, false, false
	}
	return n.nameOf[key], parent, false, true
}

func detectXFSRoot(seenDirInodes map[uint64]bool) uint64 {
	for _, candidate := range []uint64{64, 128} {
		if seenDirInodes[candidate] {
			return candidate
		}
	}
	var smallest uint64
	found := false
	for ino := range seenDirInodes {
		if !found || ino < smallest {
			smallest = ino
			found = true
		}
	}
	return smallest
}

type xfsDriver struct {
	src    blocksource.Source
	parser *xfs.Parser
	cfg    config.RecoveryConfig
}

func (d *xfsDriver) BlockSize() int64 {
	sb := d.parser.Superblock()
	if sb.BlockSize == 0 {
		return 4096
	}
	return int64(sb.BlockSize)
}

func (d *xfsDriver) ScanDirectories() (dirtree.Node, error) {
	// A full XFS directory-block walk requires locating every
	// directory inode's data extents, which this engine's inode scan
	// doesn't track block-by-block, so no XFS directory blocks are
	// parsed here: xfsDriver returns an empty parent/name map and every
	// XFS candidate's path resolves to "(unnamed)".
	return &xfsNodes{parentOf: map[uint64]uint64{}, nameOf: map[uint64]string{}, root: detectXFSRoot(map[uint64]bool{})}, nil
}

func (d *xfsDriver) ScanCandidates() ([]model.DeletedFile, error) {
	inodes, err := d.parser.ScanInodes(d.cfg.MaxAllocationGroups)
	if err != nil {
		return nil, err
	}
	var out []model.DeletedFile
	for _, ci := range inodes {
		mtime := ci.MTime
		out = append(out, model.DeletedFile{
			Ino:           ci.Ino,
			Size:          ci.Size,
			DeletionTime:  &mtime,
			FileType:      model.FileTypeRegular,
			IsRecoverable: true,
			Fsid:          model.FsidXFS,
			Metadata: model.FileMetadata{
				Modified:    &mtime,
				Permissions: permPtr(ci.Mode),
			},
			DataBlocks: []model.BlockRange{{Start: uint64(ci.BlockOff) / uint64(d.BlockSize()), Count: 1, Allocated: true}},
		})
	}
	return out, nil
}

func permPtr(mode uint16) *uint32 {
	v := uint32(mode & 0o777)
	return &v
}

// FSSpecificScore rewards candidates carrying a recorded permission
// mode and an allocated data block over one with neither, the only
// structural signals an allocation-group inode scan can confirm.
func (d *xfsDriver) FSSpecificScore(f model.DeletedFile) float64 {
	score := 0.5
	if f.Metadata.Permissions != nil && *f.Metadata.Permissions != 0 {
		score += 0.25
	}
	if len(f.DataBlocks) > 0 && f.DataBlocks[0].Allocated {
		score += 0.25
	}
	return score
}

// btrfsNodes adapts DIR_ITEM/INODE_REF payloads collected while
// walking the FS tree to dirtree.Node; root is the well-known
// FS_TREE_OBJECTID (spec §4.6).
type btrfsNodes struct {
	parentOf map[uint64]uint64
	nameOf   map[uint64]string
}

func (n *btrfsNodes) Lookup(key uint64) (name string, parent uint64, root bool, ok bool) {
	if key == btrfs.FSTreeObjectID {
		return "", 0, true, true
	}
	parent, ok = n.parentOf[key]
	if !ok {
		return "", 0, false, false
	}
	return n.nameOf[key], parent, false, true
}

type btrfsDriver struct {
	src blocksource.Source
	sb  *btrfs.Superblock
}

func (d *btrfsDriver) BlockSize() int64 {
	if d.sb.NodeSize == 0 {
		return 16384
	}
	return int64(d.sb.NodeSize)
}

func (d *btrfsDriver) ScanDirectories() (dirtree.Node, error) {
	nodes := &btrfsNodes{parentOf: map[uint64]uint64{}, nameOf: map[uint64]string{}}
	err := btrfs.WalkLeaves(d.src, d.sb.NodeSize, d.sb.RootTree, 8, func(leaf *btrfs.Leaf) {
		for i, item := range leaf.DirItems {
			parent := leaf.Items[i].Key.ObjectID
			nodes.parentOf[item.Location.ObjectID] = parent
			nodes.nameOf[item.Location.ObjectID] = item.Name
		}
	})
	return nodes, err
}

func (d *btrfsDriver) ScanCandidates() ([]model.DeletedFile, error) {
	var out []model.DeletedFile
	err := btrfs.WalkLeaves(d.src, d.sb.NodeSize, d.sb.RootTree, 8, func(leaf *btrfs.Leaf) {
		for _, item := range leaf.Items {
			if item.Key.Type != btrfs.OrphanItemKey {
				continue
			}
			out = append(out, model.DeletedFile{
				Ino:           item.Key.ObjectID,
				FileType:      model.FileTypeRegular,
				IsRecoverable: true,
				Fsid:          model.FsidBtrfs,
				Confidence:    0.5,
			})
		}
	})
	return out, err
}

// FSSpecificScore: an ORPHAN_ITEM key only ever surfaces from a leaf
// WalkLeaves has already parsed as structurally valid, so the one
// remaining signal is whether any extent data was recovered alongside
// the orphan record.
func (d *btrfsDriver) FSSpecificScore(f model.DeletedFile) float64 {
	if len(f.DataBlocks) > 0 {
		return 0.8
	}
	return 0.5
}

// exfatNodes adapts the cluster->{parent,name} map built during a
// directory walk; root is the superblock-declared root cluster (spec
// §4.6).
type exfatNodes struct {
	parentOf map[uint64]uint64
	nameOf   map[uint64]string
	root     uint64
}

func (n *exfatNodes) Lookup(key uint64) (name string, parent uint64, root bool, ok bool) {
	if key == n.root {
		return "", 0, true, true
	}
	parent, ok = n.parentOf[key]
	if !ok {
		return "", 0, false, false
	}
	return n.nameOf[key], parent, false, true
}

type exfatDriver struct {
	src blocksource.Source
	bs  *exfat.BootSector
	fat *exfat.FAT
	cfg config.RecoveryConfig
}

func (d *exfatDriver) BlockSize() int64 {
	return int64(d.bs.BytesPerCluster)
}

func (d *exfatDriver) ScanDirectories() (dirtree.Node, error) {
	// Deleted entries still occupy a directory slot, so their own name
	// and containing cluster are known even though WalkDirectory won't
	// recurse into them; only live directories contribute a node other
	// entries can resolve as a parent.
	nodes := &exfatNodes{parentOf: map[uint64]uint64{}, nameOf: map[uint64]string{}, root: uint64(d.bs.RootCluster)}
	exfat.WalkDirectory(d.src, d.bs, d.fat, d.bs.RootCluster, 0, func(entry exfat.DirEntrySet, parentCluster uint32) {
		nodes.parentOf[uint64(entry.FirstCluster)] = uint64(parentCluster)
		nodes.nameOf[uint64(entry.FirstCluster)] = entry.Name
	})
	return nodes, nil
}

func (d *exfatDriver) ScanCandidates() ([]model.DeletedFile, error) {
	referenced := map[uint32]bool{}
	var out []model.DeletedFile

	exfat.WalkDirectory(d.src, d.bs, d.fat, d.bs.RootCluster, 0, func(entry exfat.DirEntrySet, parentCluster uint32) {
		referenced[entry.FirstCluster] = true
		if !entry.IsDeleted {
			return
		}
		name := entry.Name
		out = append(out, model.DeletedFile{
			Ino:           uint64(entry.FirstCluster),
			Size:          entry.DataLength,
			OriginalPath:  &name,
			FileType:      model.FileTypeRegular,
			IsRecoverable: true,
			Confidence:    0.6,
			Fsid:          model.FsidExFAT,
			DataBlocks:    exfatByteRanges(d.bs, d.fat, entry),
		})
	})

	orphans := exfat.FindOrphanClusters(d.fat, referenced, d.bs.ClusterCount, d.cfg.MaxOrphanClusters)
	for _, cluster := range orphans {
		out = append(out, model.DeletedFile{
			Ino:           uint64(cluster),
			Confidence:    0.5,
			FileType:      model.FileTypeUnknown,
			IsRecoverable: true,
			Fsid:          model.FsidExFAT,
			DataBlocks:    []model.BlockRange{{Start: uint64(d.bs.ClusterOffset(cluster)), Count: uint64(d.bs.BytesPerCluster), Allocated: true}},
		})
	}
	return out, nil
}

// FSSpecificScore checks the FAT-chain-derived byte length against
// the entry's own declared data length: a close match means the chain
// walk almost certainly followed the right clusters, while a large
// mismatch means it likely wandered into an unrelated allocated run.
func (d *exfatDriver) FSSpecificScore(f model.DeletedFile) float64 {
	if len(f.DataBlocks) == 0 {
		return 0.3
	}
	if f.Size == 0 {
		return 0.5
	}
	var total uint64
	for _, r := range f.DataBlocks {
		total += r.Count
	}
	ratio := float64(total) / float64(f.Size)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	switch {
	case ratio < 1.2:
		return 1.0
	case ratio < 2.0:
		return 0.6
	default:
		return 0.3
	}
}

func exfatByteRanges(bs *exfat.BootSector, fat *exfat.FAT, entry exfat.DirEntrySet) []model.BlockRange {
	var chain []uint32
	if entry.NoFatChain {
		clusterCount := (entry.DataLength + uint64(bs.BytesPerCluster) - 1) / uint64(bs.BytesPerCluster)
		chain = exfat.ChainNoFat(entry.FirstCluster, uint32(clusterCount))
	} else {
		chain = fat.Chain(entry.FirstCluster)
	}
	byteRanges := bs.ChainToByteRanges(chain)
	ranges := make([]model.BlockRange, 0, len(byteRanges))
	for _, r := range byteRanges {
		ranges = append(ranges, model.BlockRange{Start: uint64(r.Start), Count: uint64(r.Count), Allocated: true})
	}
	return ranges
}
