// Package diskspace wraps the statfs syscall used by both the startup
// preflight check and the /health storage report.
package diskspace

import "golang.org/x/sys/unix"

// FreeBytes returns the free space available to an unprivileged user on
// the filesystem containing path.
func FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
