package device

import "strings"

// DevicePath converts a slash-separated filesystem path into the
// backslash form the firmware's FatFs shell expects.
func DevicePath(path string) string {
	p := strings.ReplaceAll(path, "/", `\`)
	if p == "" {
		return `\`
	}
	return p
}

// DirCommand lists one directory. The root is listed with a bare "dir".
func DirCommand(path string) string {
	if path == "" || path == "/" {
		return "dir"
	}
	return "dir " + DevicePath(path)
}

// FullDirCommand lists every file on the disk with a usage trailer.
func FullDirCommand() string {
	return "fulldir"
}

// MkdirCommand creates a directory.
func MkdirCommand(path string) string {
	return "mkdir " + DevicePath(path)
}

// TypeCommand prints a file's content.
func TypeCommand(path string) string {
	return "type " + DevicePath(path)
}

// DelCommand removes a file.
func DelCommand(path string) string {
	return "del " + DevicePath(path)
}

// RmdirCommand removes an empty directory.
func RmdirCommand(path string) string {
	return "rmdir " + DevicePath(path)
}

// WriteCommand (re)creates a file from text lines. The firmware reads lines
// until an empty one, so a nil slice creates an empty file.
func WriteCommand(path string, lines []string) string {
	var b strings.Builder
	b.WriteString("write ")
	b.WriteString(DevicePath(path))
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}
