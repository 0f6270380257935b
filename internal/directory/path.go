package directory

import (
	"path"
	"strings"
)

// Root is the path of the volume root.
const Root = "/"

// Normalize converts a host path (either separator) into the canonical
// slash-separated, rooted, cleaned form. Case is preserved.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// key is the case-insensitive index key for a path.
func key(p string) string {
	return strings.ToUpper(Normalize(p))
}

// Parent returns the parent of a normalized path. The parent of the root is
// the root.
func Parent(p string) string {
	return path.Dir(Normalize(p))
}

// Base returns the last element of a path; the root's base is "/".
func Base(p string) string {
	return path.Base(Normalize(p))
}

// ChildPath constructs a child path from parent + name.
func ChildPath(parent, name string) string {
	parent = Normalize(parent)
	if parent == Root {
		return Root + name
	}
	return parent + "/" + name
}

// isDirectChild reports whether child is exactly one segment below parent.
// Both arguments must be index keys.
func isDirectChild(parentKey, childKey string) bool {
	if childKey == parentKey {
		return false
	}
	return path.Dir(childKey) == parentKey
}
