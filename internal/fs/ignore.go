package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ignoreFileName is read from the root of every walk for extra patterns.
const ignoreFileName = ".photonsignore"

// lockFileName matches the lock a running import holds in its target.
const lockFileName = ".photons.lock"

// builtinIgnorePatterns keep a target's own bookkeeping out of a walk when
// source and target overlap. storeFile is the record store's file name; its
// -journal, -wal and -shm companions are covered too. Later rules,
// exceptions included, override them.
func builtinIgnorePatterns(storeFile string) []string {
	patterns := []string{ignoreFileName, lockFileName}
	if storeFile != "" {
		patterns = append(patterns, escapeGlob(storeFile)+"*")
	}
	return patterns
}

// escapeGlob quotes name so it matches only itself, also when it starts
// with '!' or '#'.
func escapeGlob(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(`*?[]\!#`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rule is one parsed ignore line.
type rule struct {
	glob     string
	anchored bool // glob contains '/' and is matched against the whole relative path
	dirOnly  bool // trailing '/': matches directories only
	negate   bool // leading '!': re-includes what earlier rules excluded
}

// IgnoreMatcher decides which entries a walk passes over.
//
// Rules are evaluated in order and the last one that matches decides.
// A rule without '/' is compared with the entry's base name; a rule with
// '/' is compared with the slash-separated path relative to the walk root.
// A trailing '/' limits the rule to directories, so the whole subtree is
// dropped. A leading '!' turns the rule into an exception.
type IgnoreMatcher struct {
	rules []rule
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines, '#' comments and
// globs that filepath.Match rejects are dropped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		r, ok := parseRule(line)
		if ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		r.negate = true
		line = rest
	}
	if rest, ok := strings.CutSuffix(line, "/"); ok {
		r.dirOnly = true
		line = rest
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return rule{}, false
	}
	if _, err := filepath.Match(line, ""); err != nil {
		return rule{}, false
	}

	r.glob = line
	r.anchored = strings.Contains(line, "/")
	return r, true
}

// Match reports whether the entry at rel (relative to the walk root) is
// ignored. isDir tells directory-only rules whether they apply.
func (m *IgnoreMatcher) Match(rel string, isDir bool) bool {
	if rel == "" || len(m.rules) == 0 {
		return false
	}
	slashed := filepath.ToSlash(rel)
	base := filepath.Base(rel)

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.anchored {
			subject = slashed
		}
		if ok, _ := filepath.Match(r.glob, subject); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// ParseIgnoreFile returns the raw lines of an ignore file, or nil when the
// file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file %s: %w", path, err)
	}
	return lines, nil
}
