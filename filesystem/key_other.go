//go:build !unix

package filesystem

import "os"

// fileKey falls back to the canonical path of the file on platforms that do
// not expose inode numbers through os.FileInfo.
func fileKey(p string, _ os.FileInfo) string {
	return canonicalKey(p)
}
