package device

import (
	"strconv"
	"strings"
)

type lineKind int

const (
	linePayload lineKind = iota
	linePrompt
	lineError
	lineTerminator
)

const errorPrefix = "Error #"

// classifyLine sorts a received line (terminator already stripped) into one
// of the four protocol roles. For error lines it also returns the code and
// message.
func classifyLine(line string) (lineKind, Code, string) {
	if line == "" {
		return lineTerminator, 0, ""
	}
	if isPrompt(line) {
		return linePrompt, 0, ""
	}
	if code, msg, ok := parseErrorLine(line); ok {
		return lineError, code, msg
	}
	return linePayload, 0, ""
}

// isPrompt matches a drive prompt such as "A:>" optionally followed by the
// echoed command.
func isPrompt(line string) bool {
	if len(line) < 3 {
		return false
	}
	c := line[0]
	if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
		return false
	}
	return line[1] == ':' && line[2] == '>'
}

// parseErrorLine matches "Error #<digits>: <text>".
func parseErrorLine(line string) (Code, string, bool) {
	if !strings.HasPrefix(line, errorPrefix) {
		return 0, "", false
	}
	rest := line[len(errorPrefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 || !strings.HasPrefix(rest[end:], ": ") {
		return 0, "", false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, "", false
	}
	return Code(n), rest[end+2:], true
}
