// Package search implements the two-tier (lexical + embedding) message
// search index: on-disk layout with atomic schema activation, a filter
// compiler, pluggable embedders, and the fast/final query protocol.
package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SchemaHash identifies the exact set of indexed fields an on-disk index
// was built with, so a schema change can be detected and a rebuild
// triggered instead of serving stale or malformed results.
type SchemaHash string

// ComputeSchemaHash hashes the sorted field list so field reordering in
// code never changes the hash.
func ComputeSchemaHash(fields []string) SchemaHash {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return SchemaHash(hex.EncodeToString(sum[:]))
}

// Short returns the first 12 hex characters, for log lines and directory
// names.
func (h SchemaHash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IndexScope is the granularity an index covers.
type IndexScope int

const (
	ScopeProject IndexScope = iota
	ScopeProduct
	ScopeGlobal
)

func (s IndexScope) String() string {
	switch s {
	case ScopeProject:
		return "project"
	case ScopeProduct:
		return "product"
	case ScopeGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// IndexCheckpoint records how far an index has caught up with the
// relational store, and the schema it was built against.
type IndexCheckpoint struct {
	Schema        SchemaHash `json:"schema_hash"`
	LastMessageID int64      `json:"last_message_id"`
	UpdatedTs     uint64     `json:"updated_ts"`
}

const activeLinkName = "active"

// ActivateIndex atomically swaps the "active" symlink under root to point
// at candidateDir, so concurrent readers either see the old index in full
// or the new one in full, never a half-built directory. candidateDir must
// already be a sibling of the active link (a directory inside root).
func ActivateIndex(root, candidateDir string) error {
	tmp := filepath.Join(root, activeLinkName+".tmp")
	_ = os.Remove(tmp)
	if err := os.Symlink(candidateDir, tmp); err != nil {
		return fmt.Errorf("search: symlink candidate: %w", err)
	}
	target := filepath.Join(root, activeLinkName)
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("search: activate index: %w", err)
	}
	return nil
}

// ActiveIndexPath resolves the currently active index directory under
// root, or "" with ok=false if none has been activated yet.
func ActiveIndexPath(root string) (path string, ok bool) {
	target := filepath.Join(root, activeLinkName)
	resolved, err := os.Readlink(target)
	if err != nil {
		return "", false
	}
	return resolved, true
}

// IsSchemaCompatible reports whether an index built with have can serve
// queries expecting want, without a rebuild.
func IsSchemaCompatible(have, want SchemaHash) bool { return have == want }
