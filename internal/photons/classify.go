package photons

import (
	"fmt"
	"strings"
)

// Classification is the outcome of matching a file name against the
// configured import extension.
type Classification int

const (
	Ignored Classification = iota
	Eligible
)

func (c Classification) String() string {
	if c == Eligible {
		return "eligible"
	}
	return "ignored"
}

// NormalizeExtension lowercases ext and ensures it starts with a dot.
// An empty extension is rejected.
func NormalizeExtension(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return "", fmt.Errorf("import extension must not be empty")
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext, nil
}

// Classify reports whether name ends with ext, ignoring case.
// ext is expected in normalized form.
func Classify(name string, ext string) Classification {
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return Eligible
	}
	return Ignored
}
