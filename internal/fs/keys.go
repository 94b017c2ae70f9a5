package fs

import "strings"

const (
	pathSeparator = "/"

	// folderSuffix marks directories created by older tools that did not
	// write trailing-slash markers. Read paths honor it, new directories
	// never write it.
	folderSuffix = "_$folder$"

	// maxListingKeys is the page size used when walking the store.
	maxListingKeys = 1000

	// maxObjectSize is the largest object a single upload may produce.
	maxObjectSize int64 = 5 * 1024 * 1024 * 1024
)

// pathToKey maps an absolute path to its object key. The root maps to the
// empty key; every other path drops its leading separator.
func pathToKey(path string) string {
	if path == pathSeparator {
		return ""
	}
	return strings.TrimPrefix(path, pathSeparator)
}

// keyToPath maps an object key back to an absolute path, stripping any
// directory marker decoration first.
func keyToPath(key string) string {
	key = strings.TrimSuffix(key, folderSuffix)
	key = strings.TrimSuffix(key, pathSeparator)
	if key == "" {
		return pathSeparator
	}
	return pathSeparator + key
}

// isAbsolute reports whether path is usable by the filesystem. Only
// absolute paths are accepted.
func isAbsolute(path string) bool {
	return strings.HasPrefix(path, pathSeparator)
}

// normalizePath collapses a trailing separator so "/a/b/" and "/a/b" name
// the same entry. The root is left untouched.
func normalizePath(path string) string {
	if path == pathSeparator {
		return path
	}
	return strings.TrimSuffix(path, pathSeparator)
}

// parentPath returns the parent of path, or "/" when path is the root or a
// first-level entry.
func parentPath(path string) string {
	path = normalizePath(path)
	if path == pathSeparator {
		return pathSeparator
	}
	i := strings.LastIndex(path, pathSeparator)
	if i <= 0 {
		return pathSeparator
	}
	return path[:i]
}

// ancestors returns every ancestor of path from the root down to path
// itself, in root-to-leaf order.
func ancestors(path string) []string {
	path = normalizePath(path)
	if path == pathSeparator {
		return []string{pathSeparator}
	}
	parts := strings.Split(strings.TrimPrefix(path, pathSeparator), pathSeparator)
	out := make([]string, 0, len(parts)+1)
	out = append(out, pathSeparator)
	cur := ""
	for _, part := range parts {
		cur = cur + pathSeparator + part
		out = append(out, cur)
	}
	return out
}

// baseName returns the final component of path.
func baseName(path string) string {
	path = normalizePath(path)
	if path == pathSeparator {
		return pathSeparator
	}
	return path[strings.LastIndex(path, pathSeparator)+1:]
}

// isDescendant reports whether candidate lies strictly below dir.
func isDescendant(dir, candidate string) bool {
	dir = normalizePath(dir)
	candidate = normalizePath(candidate)
	if dir == pathSeparator {
		return candidate != pathSeparator
	}
	return strings.HasPrefix(candidate, dir+pathSeparator)
}
