package device

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ListingEntry is one row of a "dir" listing.
type ListingEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

const dirMarker = "<DIR>"

// ParseListing parses the payload of a "dir" command. Rows look like
//
//	README   TXT  1234
//	GAMES         <DIR>
//
// The "No files." notice and the "<N> bytes free." trailer are skipped, as is
// anything else that is not a row.
func ParseListing(lines []string) []ListingEntry {
	var out []ListingEntry
	for _, line := range lines {
		if e, ok := parseListingRow(line); ok {
			out = append(out, e)
		}
	}
	return out
}

func parseListingRow(line string) (ListingEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return ListingEntry{}, false
	}
	last := fields[len(fields)-1]
	name := fields[0]
	if len(fields) == 3 {
		name += "." + fields[1]
	}

	if last == dirMarker {
		return ListingEntry{Name: name, IsDir: true}, true
	}
	size, err := strconv.ParseInt(last, 10, 64)
	if err != nil || size < 0 {
		return ListingEntry{}, false
	}
	return ListingEntry{Name: name, Size: size}, true
}

var (
	usedPattern = regexp.MustCompile(`(\d+) bytes used,`)
	freePattern = regexp.MustCompile(`(\d+) bytes free`)

	// ErrUsageNotFound means a listing carried no used/free byte counts.
	ErrUsageNotFound = errors.New("failed to parse used/free bytes")
)

// ParseUsage scans every line of a "fulldir" payload for the used and free
// byte counts. Both must be present somewhere in the payload.
func ParseUsage(lines []string) (used, free int64, err error) {
	var haveUsed, haveFree bool
	for _, line := range lines {
		if m := usedPattern.FindStringSubmatch(line); m != nil {
			if v, perr := strconv.ParseInt(m[1], 10, 64); perr == nil {
				used, haveUsed = v, true
			}
		}
		if m := freePattern.FindStringSubmatch(line); m != nil {
			if v, perr := strconv.ParseInt(m[1], 10, 64); perr == nil {
				free, haveFree = v, true
			}
		}
	}
	if !haveUsed || !haveFree {
		return 0, 0, ErrUsageNotFound
	}
	return used, free, nil
}
