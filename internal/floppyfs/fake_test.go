package floppyfs

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MGerckens/floppyfs/internal/device"
)

type fakeNode struct {
	name    string
	isDir   bool
	content []string
}

// fakeDevice emulates the firmware shell over an in-memory tree. Paths are
// stored in the device's backslash form, keyed case-insensitively.
type fakeDevice struct {
	mu       sync.Mutex
	nodes    map[string]*fakeNode
	sent     []string
	failures map[string]error // by command verb
	usage    []string

	delay    time.Duration
	inflight atomic.Int32
	overlaps atomic.Int32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		nodes:    map[string]*fakeNode{`\`: {name: `\`, isDir: true}},
		failures: map[string]error{},
		usage:    []string{"12345 bytes used, 6789 bytes free"},
	}
}

func fakeKey(p string) string {
	return strings.ToUpper(p)
}

func fakeParent(p string) string {
	d := path.Dir(strings.ReplaceAll(p, `\`, "/"))
	return strings.ReplaceAll(d, "/", `\`)
}

func (d *fakeDevice) addDir(p string) {
	d.nodes[fakeKey(p)] = &fakeNode{name: path.Base(strings.ReplaceAll(p, `\`, "/")), isDir: true}
}

func (d *fakeDevice) addFile(p string, lines ...string) {
	d.nodes[fakeKey(p)] = &fakeNode{name: path.Base(strings.ReplaceAll(p, `\`, "/")), content: lines}
}

func (d *fakeDevice) failWith(verb string, code device.Code) {
	d.failures[verb] = &device.DeviceError{Code: code, Message: code.String()}
}

func (d *fakeDevice) commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

func (d *fakeDevice) Send(command string) ([]string, error) {
	if d.inflight.Add(1) > 1 {
		d.overlaps.Add(1)
	}
	defer d.inflight.Add(-1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, command)

	first, rest, _ := strings.Cut(command, "\n")
	verb, arg, _ := strings.Cut(first, " ")
	if err, ok := d.failures[verb]; ok {
		delete(d.failures, verb)
		return nil, err
	}

	switch verb {
	case "dir":
		if arg == "" {
			arg = `\`
		}
		return d.dir(arg)
	case "fulldir":
		return d.usage, nil
	case "mkdir":
		return nil, d.create(arg, &fakeNode{isDir: true})
	case "write":
		var lines []string
		for _, l := range strings.Split(rest, "\n") {
			if l == "" {
				break
			}
			lines = append(lines, l)
		}
		return nil, d.create(arg, &fakeNode{content: lines})
	case "type":
		n, ok := d.nodes[fakeKey(arg)]
		if !ok || n.isDir {
			return nil, deviceErr(device.CodeNoFile)
		}
		return n.content, nil
	case "del", "rmdir":
		n, ok := d.nodes[fakeKey(arg)]
		if !ok || n.isDir != (verb == "rmdir") {
			return nil, deviceErr(device.CodeNoFile)
		}
		for k := range d.nodes {
			if fakeParent(k) == fakeKey(arg) && k != fakeKey(arg) {
				return nil, deviceErr(device.CodeDenied)
			}
		}
		delete(d.nodes, fakeKey(arg))
		return nil, nil
	}
	return nil, fmt.Errorf("unknown command %q", first)
}

func deviceErr(code device.Code) error {
	return &device.DeviceError{Code: code, Message: code.String()}
}

func (d *fakeDevice) create(p string, n *fakeNode) error {
	if _, ok := d.nodes[fakeKey(p)]; ok {
		return deviceErr(device.CodeExist)
	}
	parent, ok := d.nodes[fakeKey(fakeParent(p))]
	if !ok || !parent.isDir {
		return deviceErr(device.CodeNoPath)
	}
	n.name = path.Base(strings.ReplaceAll(p, `\`, "/"))
	d.nodes[fakeKey(p)] = n
	return nil
}

func (d *fakeDevice) dir(p string) ([]string, error) {
	if n, ok := d.nodes[fakeKey(p)]; !ok || !n.isDir {
		return nil, deviceErr(device.CodeNoPath)
	}
	var out []string
	for k, n := range d.nodes {
		if k == fakeKey(p) || fakeParent(k) != fakeKey(p) {
			continue
		}
		base, ext, _ := strings.Cut(n.name, ".")
		if n.isDir {
			out = append(out, fmt.Sprintf("%-8s %-3s  <DIR>", base, ext))
			continue
		}
		size := 0
		for i, l := range n.content {
			if i > 0 {
				size++
			}
			size += len(l)
		}
		out = append(out, fmt.Sprintf("%-8s %-3s  %d", base, ext, size))
	}
	if len(out) == 0 {
		out = append(out, "No files.")
	}
	return append(out, "1457664 bytes free."), nil
}
