//go:build unix

package filesystem

import (
	"os"
	"strconv"
	"syscall"
)

// fileKey returns the device and inode pair for the file, which is stable no
// matter how many symbolic links were followed to reach it.
func fileKey(p string, st os.FileInfo) string {
	if s, ok := st.Sys().(*syscall.Stat_t); ok {
		// The casts are required, field types differ between platforms.
		return strconv.FormatUint(uint64(s.Dev), 10) + ":" + strconv.FormatUint(uint64(s.Ino), 10)
	}
	return canonicalKey(p)
}
