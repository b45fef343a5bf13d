// Package pathutil holds small slash-path predicates shared by the loader
// and the content API.
package pathutil

import "strings"

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// Excluded reports whether a file or directory name is left out of
// collections: drafts start with "_", hidden files with ".".
func Excluded(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}
