//go:build !linux

package fs

import (
	"io/fs"
	"time"
)

// accessTime falls back to the modification time where atime is not exposed
// through a portable stat structure.
func accessTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
