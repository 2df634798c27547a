// Package gitignore matches scanned paths against gitignore-style rules so
// the indexing engine skips build output, vendored code, and anything else
// the repo already excludes from version control.
//
// It implements the gitignore pattern syntax documented at:
// https://git-scm.com/docs/gitignore
//
// Supported:
//   - Basic globs (*.log, temp/)
//   - Wildcards (*, ?, **)
//   - Rooted patterns (/build)
//   - Negation (!important.log)
//   - Directory-only patterns (build/)
//   - Nested .gitignore files per subdirectory
//   - Safe for concurrent use
//
// Usage:
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddPattern("/build/")
//
//	if m.Match("error.log", false) {
//	    // skip this file during a scan
//	}
//
// Nested gitignore files are merged relative to where they live:
//
//	m.AddFromFile("/repo/.gitignore", "")
//	m.AddFromFile("/repo/src/.gitignore", "src")
package gitignore
