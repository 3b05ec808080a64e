package photons

import (
	"fmt"
	"iter"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxCollisionAttempts bounds the alternate-name search.
const DefaultMaxCollisionAttempts = 10000

// CollisionResolver picks a free file name when the intended target path is
// already taken. A path is taken when something exists there on disk, when a
// record in the store claims it (disabled records included, their file may
// be gone), or when this resolver already handed it out. Content identity is
// the record store's business, not the resolver's.
type CollisionResolver struct {
	fsmgr       FilesystemManager
	recorded    PathRecorder
	targetRoot  string
	maxAttempts int
	reserved    map[string]struct{}
}

// NewCollisionResolver creates a resolver for paths below targetRoot that
// tries at most maxAttempts alternates. A non-positive maxAttempts selects
// DefaultMaxCollisionAttempts. recorded may be nil, leaving only the disk
// and the resolver's own reservations.
func NewCollisionResolver(fsmgr FilesystemManager, recorded PathRecorder, targetRoot string, maxAttempts int) *CollisionResolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCollisionAttempts
	}
	return &CollisionResolver{
		fsmgr:       fsmgr,
		recorded:    recorded,
		targetRoot:  targetRoot,
		maxAttempts: maxAttempts,
		reserved:    make(map[string]struct{}),
	}
}

// Resolve returns intended if it is not taken, otherwise the first free
// alternate from AlternateNames. Returns ErrCollisionExhausted once
// maxAttempts alternates were all taken.
func (r *CollisionResolver) Resolve(intended string) (string, error) {
	taken, err := r.taken(intended)
	if err != nil {
		return "", err
	}
	if !taken {
		return r.reserve(intended), nil
	}

	attempts := 0
	for candidate := range AlternateNames(intended) {
		if attempts == r.maxAttempts {
			break
		}
		attempts++

		taken, err := r.taken(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return r.reserve(candidate), nil
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrCollisionExhausted, intended, attempts)
}

func (r *CollisionResolver) taken(path string) (bool, error) {
	if _, ok := r.reserved[path]; ok {
		return true, nil
	}
	exists, err := r.fsmgr.Exists(path)
	if err != nil {
		return false, fmt.Errorf("%w: checking %s: %v", ErrIO, path, err)
	}
	if exists || r.recorded == nil {
		return exists, nil
	}

	subfolder, fileName, err := SplitTargetPath(r.targetRoot, path)
	if err != nil {
		return false, err
	}
	recorded, err := r.recorded.PathRecorded(subfolder, fileName)
	if err != nil {
		return false, fmt.Errorf("checking recorded path %s: %w", path, err)
	}
	return recorded, nil
}

func (r *CollisionResolver) reserve(path string) string {
	r.reserved[path] = struct{}{}
	return path
}

// SplitTargetPath splits an absolute path below targetRoot into the
// subfolder and file name a record stores for it.
func SplitTargetPath(targetRoot, path string) (subfolder, fileName string, err error) {
	rel, err := filepath.Rel(targetRoot, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s is not inside target %s", ErrIO, path, targetRoot)
	}
	subfolder, fileName = filepath.Split(rel)
	if subfolder != "" {
		subfolder = filepath.Clean(subfolder)
	}
	return subfolder, fileName, nil
}

// AlternateNames yields name_1.ext, name_2.ext, ... in the directory of path.
// The sequence is infinite and starts over on every range.
func AlternateNames(path string) iter.Seq[string] {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	if stem == "" {
		// dotfile such as ".jpg": keep the whole name as stem
		stem, ext = base, ""
	}

	return func(yield func(string) bool) {
		for n := 1; ; n++ {
			if !yield(filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)) {
				return
			}
		}
	}
}
