// Package directory keeps the path-indexed metadata of the mounted volume.
//
// The device answers listing queries only, so every attribute, timestamp
// and size the host asks for is served from this index. Paths compare
// case-insensitively, matching FAT, while entries keep the case they were
// created with.
package directory

import (
	"slices"
	"strings"
	"time"
)

// Directory maps normalized paths to entries. It always contains the root
// folder and never contains an entry whose parent is missing or is a file.
//
// A Directory is not safe for concurrent use.
type Directory struct {
	entries map[string]*Entry
}

// New creates a directory holding only the root folder.
func New(now time.Time) *Directory {
	d := &Directory{entries: make(map[string]*Entry)}
	d.entries[key(Root)] = NewFolder(Root, 0, now)
	return d
}

// Root returns the root folder entry.
func (d *Directory) Root() *Entry {
	return d.entries[key(Root)]
}

// Get returns the entry at p.
func (d *Directory) Get(p string) (*Entry, error) {
	e, ok := d.entries[key(p)]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Insert stores e at p. The parent of p must exist and be a folder. An
// existing entry at p is replaced unless that would orphan its children.
func (d *Directory) Insert(p string, e *Entry) error {
	p = Normalize(p)
	k := key(p)
	if k == key(Root) {
		if !e.IsDir() {
			return ErrInvalidArgument
		}
		e.Path = Root
		d.entries[k] = e
		return nil
	}

	parent, ok := d.entries[key(Parent(p))]
	if !ok {
		return ErrNotFound
	}
	if !parent.IsDir() {
		return ErrNotADirectory
	}
	if old, ok := d.entries[k]; ok && old.IsDir() && !e.IsDir() && d.HasChildren(p) {
		return ErrDirectoryNotEmpty
	}

	e.Path = p
	d.entries[k] = e
	return nil
}

// Remove deletes the entry at p. The root and folders with children cannot
// be removed.
func (d *Directory) Remove(p string) error {
	k := key(p)
	if k == key(Root) {
		return ErrInvalidArgument
	}
	if _, ok := d.entries[k]; !ok {
		return ErrNotFound
	}
	if d.HasChildren(p) {
		return ErrDirectoryNotEmpty
	}
	delete(d.entries, k)
	return nil
}

// ChildrenOf returns the entries exactly one segment below p, in no
// particular order. It scans the whole index; removable media hold few
// entries.
func (d *Directory) ChildrenOf(p string) []*Entry {
	pk := key(p)
	var out []*Entry
	for k, e := range d.entries {
		if isDirectChild(pk, k) {
			out = append(out, e)
		}
	}
	return out
}

// HasChildren reports whether any entry sits directly below p.
func (d *Directory) HasChildren(p string) bool {
	pk := key(p)
	for k := range d.entries {
		if isDirectChild(pk, k) {
			return true
		}
	}
	return false
}

// Len returns the number of entries, root included.
func (d *Directory) Len() int {
	return len(d.entries)
}

// Reset drops every entry except the root.
func (d *Directory) Reset() {
	rk := key(Root)
	for k := range d.entries {
		if k != rk {
			delete(d.entries, k)
		}
	}
}

// List returns the listing of folder p sorted by name (bytewise). Non-root
// folders start with synthetic "." and ".." rows. When marker is non-empty
// only rows after the first row named marker are returned; a marker that
// names no row is an error.
func (d *Directory) List(p, marker string) ([]DirEntry, error) {
	folder, err := d.Get(p)
	if err != nil {
		return nil, err
	}
	if !folder.IsDir() {
		return nil, ErrNotADirectory
	}

	var rows []DirEntry
	if key(folder.Path) != key(Root) {
		parent, err := d.Get(Parent(folder.Path))
		if err != nil {
			return nil, err
		}
		rows = append(rows,
			DirEntry{Name: ".", Info: folder.Info()},
			DirEntry{Name: "..", Info: parent.Info()},
		)
	}
	for _, child := range d.ChildrenOf(folder.Path) {
		rows = append(rows, DirEntry{Name: child.Name(), Info: child.Info()})
	}

	slices.SortFunc(rows, func(a, b DirEntry) int {
		return strings.Compare(a.Name, b.Name)
	})

	if marker == "" {
		return rows, nil
	}
	for i, row := range rows {
		if row.Name == marker {
			return rows[i+1:], nil
		}
	}
	return nil, ErrInvalidArgument
}
