// Package dirtree reconstructs full paths for inodes/clusters found
// during a directory scan. It generalizes the teacher's per-filesystem
// inline path-join logic — the filepath.Join(path, name) calls buried
// in fat32.go's directory walk and ntfs.go's reconstructPath — into one
// shared memoized walker, the Reconstructor, over a Node interface, so
// xfs/btrfs/exfat each only need to supply a parent lookup.
package dirtree

import (
	"path/filepath"
)

// maxDepth bounds the walk so a cyclic or adversarial parent chain
// can't recurse forever (mirrors ntfs.go's visited-set guard, but
// capped by depth rather than by revisiting the same node, since here
// a node is identified across filesystems by an opaque key).
const maxDepth = 100

// Node is the parent-lookup contract a filesystem's reconstructor
// implementation must satisfy: given a node key, return its name and
// its parent's key, or ok=false if the node is unknown. A root is
// reported with ok=true and root=true.
type Node interface {
	// Lookup returns the node's own name and its parent's key. root
	// reports whether key is a filesystem root (no further parent).
	Lookup(key uint64) (name string, parent uint64, root bool, ok bool)
}

// Reconstructor walks a filesystem's directory graph to build full
// paths, memoizing already-resolved nodes.
type Reconstructor struct {
	nodes Node
	cache map[uint64]string
}

// New builds a Reconstructor over the given parent-lookup source.
func New(nodes Node) *Reconstructor {
	return &Reconstructor{nodes: nodes, cache: map[uint64]string{}}
}

// ReconstructPath walks key's ancestor chain to build a full path,
// memoizing the result for key. An orphan — a node whose
// parent chain runs out before reaching a known root — resolves to its
// own name as a relative single-component path rather than an error
// (spec §4.6): an unreachable parent is recovery-relevant data, not a
// failure.
func (r *Reconstructor) ReconstructPath(key uint64) string {
	if p, ok := r.cache[key]; ok {
		return p
	}

	var parts []string
	var ownName string
	reachedRoot := false
	visited := make(map[uint64]bool)
	cur := key
	depth := 0

	for depth < maxDepth {
		if visited[cur] {
			break
		}
		visited[cur] = true

		name, parent, isRoot, ok := r.nodes.Lookup(cur)
		if !ok {
			break
		}
		if name != "" && name != "." && name != ".." {
			parts = append([]string{name}, parts...)
			if cur == key {
				ownName = name
			}
		}
		if isRoot {
			reachedRoot = true
			break
		}
		cur = parent
		depth++
	}

	if !reachedRoot {
		parts = nil
		if ownName != "" {
			parts = []string{ownName}
		}
	}
	path := filepath.Join(parts...)
	if path == "" {
		path = "(unnamed)"
	}
	r.cache[key] = path
	return path
}

// Stats summarizes the reconstructor's work, for the orchestrator's
// progress reporting.
type Stats struct {
	Resolved int
	Cached   int
}

// GetFilename returns just the final path component, without walking
// the full ancestor chain, when callers only need the leaf name.
func (r *Reconstructor) GetFilename(key uint64) string {
	name, _, _, ok := r.nodes.Lookup(key)
	if !ok {
		return ""
	}
	return name
}
