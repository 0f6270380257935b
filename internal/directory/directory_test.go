package directory

import (
	"errors"
	"sort"
	"testing"
	"time"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func buildTree(t *testing.T) *Directory {
	t.Helper()
	d := New(epoch)
	folders := []string{"/GAMES", "/GAMES/OLD", "/docs"}
	files := []string{"/README.TXT", "/b.txt", "/GAMES/DOOM.EXE", "/GAMES/OLD/PONG.COM", "/docs/Notes.txt"}
	for _, p := range folders {
		if err := d.Insert(p, NewFolder(p, 0, epoch)); err != nil {
			t.Fatalf("Insert(%s): %v", p, err)
		}
	}
	for _, p := range files {
		if err := d.Insert(p, NewFile(p, 0, 0, epoch)); err != nil {
			t.Fatalf("Insert(%s): %v", p, err)
		}
	}
	return d
}

func names(rows []DirEntry) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertGetRemove(t *testing.T) {
	d := New(epoch)
	e := NewFile("/a.txt", 0, 0, epoch)
	if err := d.Insert("/a.txt", e); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := d.Get("/a.txt")
	if err != nil || got != e {
		t.Fatalf("Get = %v, %v; want inserted entry", got, err)
	}
	if err := d.Remove("/a.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := d.Get("/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove err = %v, want ErrNotFound", err)
	}
	if err := d.Remove("/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove err = %v, want ErrNotFound", err)
	}
}

func TestCaseInsensitiveLookup(t *testing.T) {
	d := buildTree(t)

	tests := []string{"/readme.txt", "/Readme.Txt", `\README.TXT`, "README.TXT", "/games/old/pong.com"}
	for _, p := range tests {
		if _, err := d.Get(p); err != nil {
			t.Errorf("Get(%q): %v", p, err)
		}
	}

	e, _ := d.Get("/docs/notes.TXT")
	if e.Name() != "Notes.txt" {
		t.Errorf("Name() = %q, want case-preserved Notes.txt", e.Name())
	}
}

func TestInsertRejectsOrphans(t *testing.T) {
	d := buildTree(t)

	if err := d.Insert("/missing/x.txt", NewFile("/missing/x.txt", 0, 0, epoch)); !errors.Is(err, ErrNotFound) {
		t.Errorf("insert under missing parent err = %v, want ErrNotFound", err)
	}
	if err := d.Insert("/b.txt/x", NewFile("/b.txt/x", 0, 0, epoch)); !errors.Is(err, ErrNotADirectory) {
		t.Errorf("insert under file err = %v, want ErrNotADirectory", err)
	}
	if err := d.Insert("/GAMES", NewFile("/GAMES", 0, 0, epoch)); !errors.Is(err, ErrDirectoryNotEmpty) {
		t.Errorf("replacing non-empty folder with file err = %v, want ErrDirectoryNotEmpty", err)
	}
	if err := d.Insert("/", NewFile("/", 0, 0, epoch)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("replacing root with file err = %v, want ErrInvalidArgument", err)
	}
}

func TestRemoveKeepsTreeIntact(t *testing.T) {
	d := buildTree(t)

	if err := d.Remove("/"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Remove(/) err = %v, want ErrInvalidArgument", err)
	}
	if err := d.Remove("/GAMES"); !errors.Is(err, ErrDirectoryNotEmpty) {
		t.Errorf("Remove(/GAMES) err = %v, want ErrDirectoryNotEmpty", err)
	}
	if d.Root() == nil {
		t.Fatal("root vanished")
	}

	// Every non-root entry still has a folder parent.
	for _, e := range d.entries {
		if e.Path == Root {
			continue
		}
		parent, err := d.Get(Parent(e.Path))
		if err != nil || !parent.IsDir() {
			t.Errorf("%s has no folder parent", e.Path)
		}
	}
}

func TestListRoot(t *testing.T) {
	d := buildTree(t)

	rows, err := d.List("/", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"GAMES", "README.TXT", "b.txt", "docs"}
	if got := names(rows); !equalStrings(got, want) {
		t.Errorf("List(/) = %v, want %v", got, want)
	}
}

func TestListSubfolder(t *testing.T) {
	d := buildTree(t)

	rows, err := d.List("/GAMES", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{".", "..", "DOOM.EXE", "OLD"}
	if got := names(rows); !equalStrings(got, want) {
		t.Errorf("List(/GAMES) = %v, want %v (no grandchildren)", got, want)
	}
	if rows[0].Info.Attributes&AttrDirectory == 0 || rows[1].Info.Attributes&AttrDirectory == 0 {
		t.Error("synthetic . and .. rows should carry folder attributes")
	}
}

func TestListIsSortedBytewise(t *testing.T) {
	d := New(epoch)
	// "b" and "B" collide case-insensitively; the second replaces the first.
	for _, n := range []string{"b", "B", "_x", "a", "Z", "10", "9"} {
		p := ChildPath("/", n)
		if err := d.Insert(p, NewFile(p, 0, 0, epoch)); err != nil {
			t.Fatalf("Insert(%s): %v", p, err)
		}
	}
	rows, _ := d.List("/", "")
	got := names(rows)
	if !sort.StringsAreSorted(got) {
		t.Errorf("listing not sorted: %v", got)
	}
}

func TestListMarker(t *testing.T) {
	d := buildTree(t)
	all, _ := d.List("/GAMES", "")

	for i, row := range all {
		rows, err := d.List("/GAMES", row.Name)
		if err != nil {
			t.Fatalf("List with marker %q: %v", row.Name, err)
		}
		if got, want := names(rows), names(all[i+1:]); !equalStrings(got, want) {
			t.Errorf("marker %q: got %v, want %v", row.Name, got, want)
		}
	}

	if _, err := d.List("/GAMES", "NOPE"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown marker err = %v, want ErrInvalidArgument", err)
	}
}

func TestListErrors(t *testing.T) {
	d := buildTree(t)
	if _, err := d.List("/README.TXT", ""); !errors.Is(err, ErrNotADirectory) {
		t.Errorf("List(file) err = %v, want ErrNotADirectory", err)
	}
	if _, err := d.List("/nope", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("List(missing) err = %v, want ErrNotFound", err)
	}
}

func TestReset(t *testing.T) {
	d := buildTree(t)
	d.Reset()
	if d.Len() != 1 || d.Root() == nil {
		t.Errorf("after Reset Len = %d, want only the root", d.Len())
	}
}
