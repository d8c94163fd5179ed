// Package stacktrace trims goroutine stack dumps down to the frames of this
// module.
package stacktrace

import "strings"

// InternalPaths returns the "internal/...go:line" locations of a raw stack
// trace as produced by runtime/debug.Stack.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "/") && !strings.Contains(line, ".go:") {
			continue
		}

		_, rest, found := strings.Cut(line, "/internal/")
		if !found {
			continue
		}

		if i := strings.IndexByte(rest, ' '); i >= 0 {
			rest = rest[:i]
		}
		if strings.Contains(rest, ".go:") {
			paths = append(paths, "internal/"+rest)
		}
	}
	return paths
}
