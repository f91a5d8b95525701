// Package pattern implements the glob/literal path-pattern overlap decision
// procedure used by the reservation engine (C1). Two reservations conflict
// when their patterns overlap; the decision is conservative — false
// positives (spurious conflicts) are preferred over false negatives.
package pattern

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

const cacheCapacity = 256

// HasGlobMeta reports whether s contains glob metacharacters.
func HasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// normalize collapses a raw pattern to its canonical form: backslashes
// become forward slashes, repeated slashes collapse, "/./" segments are
// removed, and leading "./"/trailing "/." and surrounding slashes are
// trimmed.
func normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(trimmed))
	prevSlash := false
	for _, ch := range trimmed {
		mapped := ch
		if ch == '\\' {
			mapped = '/'
		}
		if mapped == '/' {
			if !prevSlash {
				b.WriteRune('/')
			}
			prevSlash = true
		} else {
			b.WriteRune(mapped)
			prevSlash = false
		}
	}
	norm := b.String()

	for {
		idx := strings.Index(norm, "/./")
		if idx < 0 {
			break
		}
		norm = norm[:idx] + "/" + norm[idx+3:]
	}

	for strings.HasPrefix(norm, "./") {
		norm = norm[2:]
	}
	norm = strings.TrimSuffix(norm, "/.")
	return strings.Trim(norm, "/")
}

// Normalize exposes the normalization step for callers that need it
// independent of pattern comparison (invariant 4: idempotence).
func Normalize(raw string) string { return normalize(raw) }

func isDirectoryPrefix(prefix, full string) bool {
	if prefix == "" || !strings.HasPrefix(full, prefix) {
		return false
	}
	if len(full) == len(prefix) {
		return false
	}
	return full[len(prefix)] == '/'
}

func firstLiteralSegmentEnd(norm string) (int, bool) {
	end := strings.IndexByte(norm, '/')
	if end < 0 {
		end = len(norm)
	}
	seg := norm[:end]
	if seg == "" || HasGlobMeta(seg) {
		return 0, false
	}
	return end, true
}

// compile builds a glob.Glob with "/" as the sole separator, matching the
// original's literal_separator(true) behavior (a bare "*" never crosses a
// path boundary).
func compile(pat string) (glob.Glob, bool) {
	g, err := glob.Compile(pat, '/')
	if err != nil {
		return nil, false
	}
	return g, true
}

// Compiled is a normalized, pre-compiled pattern ready for repeated overlap
// checks and glob matching.
type Compiled struct {
	norm             string
	matcher          glob.Glob
	isGlob           bool
	litEnd           int
	hasLitSeg        bool
}

// Compile normalizes and compiles raw into a Compiled pattern. Compilation
// failures on a glob pattern are recorded (matcher is nil); such patterns
// only ever overlap with an identical invalid pattern (rule 5).
func Compile(raw string) *Compiled {
	norm := normalize(raw)
	isGlob := HasGlobMeta(norm)
	litEnd, hasLit := firstLiteralSegmentEnd(norm)

	c := &Compiled{norm: norm, isGlob: isGlob, litEnd: litEnd, hasLitSeg: hasLit}
	if isGlob {
		if m, ok := compile(norm); ok {
			c.matcher = m
		}
	}
	return c
}

// Normalized returns the normalized pattern string.
func (c *Compiled) Normalized() string { return c.norm }

// IsGlob reports whether the normalized pattern contains glob metacharacters.
func (c *Compiled) IsGlob() bool { return c.isGlob }

// FirstLiteralSegment returns the first path segment if it contains no glob
// metacharacters, or "" with ok=false (e.g. for "*.rs" or "**").
func (c *Compiled) FirstLiteralSegment() (string, bool) {
	if !c.hasLitSeg {
		return "", false
	}
	return c.norm[:c.litEnd], true
}

// Matches reports whether the pattern matches path (exact literal equality
// for non-glob patterns, compiled glob match otherwise). An uncompilable
// glob never matches.
func (c *Compiled) Matches(path string) bool {
	if c.matcher != nil && c.matcher.Match(path) {
		return true
	}
	return !c.isGlob && c.norm == path
}

// Overlaps implements the overlap decision procedure from spec §4.3.
func (c *Compiled) Overlaps(other *Compiled) bool {
	if c.norm == other.norm {
		return true
	}

	if !c.isGlob && !other.isGlob {
		return isDirectoryPrefix(c.norm, other.norm) || isDirectoryPrefix(other.norm, c.norm)
	}

	if c.matcher != nil && (!other.isGlob || other.matcher != nil) && c.matcher.Match(other.norm) {
		return true
	}
	if other.matcher != nil && (!c.isGlob || c.matcher != nil) && other.matcher.Match(c.norm) {
		return true
	}

	if (c.isGlob && c.matcher == nil) || (other.isGlob && other.matcher == nil) {
		return false
	}

	if c.hasLitSeg && other.hasLitSeg && c.norm[:c.litEnd] != other.norm[:other.litEnd] {
		return false
	}

	return segmentsOverlap(c.norm, other.norm)
}

func segmentsOverlap(p1, p2 string) bool {
	s1 := strings.Split(p1, "/")
	s2 := strings.Split(p2, "/")

	n := len(s1)
	if len(s2) < n {
		n = len(s2)
	}
	for i := 0; i < n; i++ {
		seg1, seg2 := s1[i], s2[i]
		if seg1 == "**" || seg2 == "**" {
			return true
		}
		if !segmentPairOverlaps(seg1, seg2) {
			return false
		}
	}
	// Length mismatch or fully consumed: conservatively assume overlap.
	return true
}

func segmentPairOverlaps(s1, s2 string) bool {
	if s1 == s2 {
		return true
	}
	g1, g2 := HasGlobMeta(s1), HasGlobMeta(s2)

	if g1 && g2 {
		return true // conservative: no regex-intersection engine available
	}
	if g1 {
		m, ok := compile(s1)
		return ok && m.Match(s2)
	}
	if g2 {
		m, ok := compile(s2)
		return ok && m.Match(s1)
	}
	return false
}

// cache is a single-mutex LRU keyed by raw (pre-normalization) pattern
// string; a hit moves the key to the most-recent end. Go has no thread-local storage, so unlike the original's
// per-thread cache this is a single process-wide cache; correctness is
// unaffected since Compiled values are immutable and safe to share.
type cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*Compiled
	order    []string
}

func newCache(capacity int) *cache {
	return &cache{capacity: capacity, entries: make(map[string]*Compiled, capacity)}
}

func (c *cache) getOrInsert(raw string) *Compiled {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.entries[raw]; ok {
		for i, k := range c.order {
			if k == raw {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		c.order = append(c.order, raw)
		return p
	}
	p := Compile(raw)
	if len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[raw] = p
	c.order = append(c.order, raw)
	return p
}

var globalCache = newCache(cacheCapacity)

// Overlaps reports whether two raw glob/literal patterns overlap under
// Agent Mail semantics, using the shared pattern cache.
func Overlaps(left, right string) bool {
	l := globalCache.getOrInsert(left)
	r := globalCache.getOrInsert(right)
	return l.Overlaps(r)
}
