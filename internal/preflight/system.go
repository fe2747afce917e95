package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// MinDiskSpaceBytes is the free space needed for the catalog and caches.
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace checks the free space under path. A path that does not
// exist yet is checked through its nearest existing parent.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	const name = "disk_space"

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingParent(path), &stat); err != nil {
		return fail(name, fmt.Sprintf("failed to check disk space: %v", err), true)
	}

	available := stat.Bavail * uint64(stat.Bsize)
	msg := fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(available))
	if available < MinDiskSpaceBytes {
		return fail(name, msg, true)
	}
	return pass(name, msg, true)
}

// CheckWritePermissions checks that path can be created and written.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	const name = "write_permissions"

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fail(name, fmt.Sprintf("permission denied: %v", err), true)
	}
	f, err := os.CreateTemp(path, ".reelvibe-preflight-*")
	if err != nil {
		return fail(name, fmt.Sprintf("permission denied: %v", err), true)
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	r := pass(name, "OK", true)
	r.Details = path
	return r
}

func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
