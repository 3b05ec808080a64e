//go:build linux

package fs

import (
	"io/fs"
	"syscall"
	"time"
)

// accessTime returns the atime recorded in info, or its mtime when the
// underlying stat data is unavailable.
func accessTime(info fs.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
}
