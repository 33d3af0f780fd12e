//go:build !windows

package main

import (
	"golang.org/x/sys/unix"
)

// checkDiskSpace returns the available disk space in MB for the given
// path, or (0, false) when it cannot be determined. Statfs_t field types
// vary across unix platforms (some signed, some unsigned).
func checkDiskSpace(path string) (uint64, bool) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, false
	}

	bavail := stat.Bavail
	bsize := stat.Bsize
	if bavail < 0 {
		bavail = 0
	}
	if bsize < 0 {
		bsize = 0
	}
	availableBytes := uint64(bavail) * uint64(bsize) //nolint:gosec
	return availableBytes / (1024 * 1024), true
}
