package compiler

import "strings"

// ReplaceExtension swaps path's extension for ext (which includes the
// dot). Idempotent: replacing with the same extension twice is the same
// as once.
func ReplaceExtension(path, ext string) string {
	slash := strings.LastIndexAny(path, "/\\")
	dot := strings.LastIndexByte(path, '.')
	if dot > slash {
		return path[:dot] + ext
	}
	return path + ext
}
