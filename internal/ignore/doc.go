// Package ignore provides gitignore-syntax pattern matching for
// `.gikignore` files, used during commit to exclude paths from a base.
//
// It implements the gitignore pattern syntax as documented at:
// https://git-scm.com/docs/gitignore
//
// Features:
//   - Basic pattern matching (*.log, temp/)
//   - Wildcard patterns (*, ?, **)
//   - Rooted patterns (/build)
//   - Negation patterns (!important.log)
//   - Directory-only patterns (build/)
//   - Nested .gikignore file support
//   - Thread-safe matching
//
// Usage:
//
//	m := ignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddPattern("/build/")
//
//	if m.Match("error.log", false) {
//	    // Path is ignored
//	}
//
// For nested .gikignore files:
//
//	m.AddFromFile("/path/to/workspace/.gikignore", "")
//	m.AddFromFile("/path/to/workspace/src/.gikignore", "src")
package ignore
