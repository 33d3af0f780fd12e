//go:build windows

package main

// checkDiskSpace is not implemented on Windows; status output simply
// omits the free-space line.
func checkDiskSpace(path string) (uint64, bool) {
	return 0, false
}
