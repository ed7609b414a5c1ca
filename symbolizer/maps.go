// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package symbolizer // import "go.opentelemetry.io/crashtracker/symbolizer"

import (
	"strconv"
	"strings"

	"go.opentelemetry.io/crashtracker/stringutil"
)

// Mapping is one line of a /proc/<pid>/maps capture.
type Mapping struct {
	Start  uint64
	End    uint64
	Perms  string
	Offset uint64
	Path   string
}

// Executable reports whether the mapping is mapped with execute permission.
func (m Mapping) Executable() bool {
	return strings.Contains(m.Perms, "x")
}

// ParseMaps parses captured /proc/<pid>/maps lines. Unparsable lines are
// skipped: the capture happened inside a crashing process and partial data
// is still worth symbolizing against.
func ParseMaps(lines []string) []Mapping {
	mappings := make([]Mapping, 0, len(lines))
	for _, line := range lines {
		if m, ok := parseMapsLine(line); ok {
			mappings = append(mappings, m)
		}
	}
	return mappings
}

// parseMapsLine parses a single maps line of the form
//
//	00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/dbus-daemon
//
// The path column is optional and may contain spaces.
func parseMapsLine(line string) (Mapping, bool) {
	// address, perms, offset, dev, inode, then optionally the path. The
	// path lands in the remainder field, so spaces in it survive.
	var fields [6]string
	n := stringutil.FieldsN(line, fields[:])
	if n < 5 {
		return Mapping{}, false
	}
	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return Mapping{}, false
	}
	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return Mapping{}, false
	}
	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil || end < start {
		return Mapping{}, false
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Mapping{}, false
	}
	m := Mapping{Start: start, End: end, Perms: fields[1], Offset: offset}
	if n == 6 {
		m.Path = strings.TrimRight(fields[5], " \t")
	}
	return m, true
}

// FindMapping returns the mapping containing addr, if any.
func FindMapping(mappings []Mapping, addr uint64) (Mapping, bool) {
	for _, m := range mappings {
		if addr >= m.Start && addr < m.End {
			return m, true
		}
	}
	return Mapping{}, false
}
