// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package stringutil provides allocation-free string splitting for parsing
// /proc-style whitespace-separated tables.
package stringutil // import "go.opentelemetry.io/crashtracker/stringutil"

var asciiSpace = [256]uint8{'\t': 1, '\n': 1, '\v': 1, '\f': 1, '\r': 1, ' ': 1}

// FieldsN splits s around runs of white space into f, returning the number
// of fields filled. Unlike strings.Fields it does not allocate: callers
// provide f, typically backed by a stack array. If s holds more fields than
// fit, the last element of f receives the unparsed remainder starting at
// its first non-space character, which keeps paths containing spaces intact
// when they are the final column.
func FieldsN(s string, f []string) int {
	n := len(f)
	si := 0
	for i := 0; i < n-1; i++ {
		for si < len(s) && asciiSpace[s[si]] != 0 {
			si++
		}
		fieldStart := si
		for si < len(s) && asciiSpace[s[si]] == 0 {
			si++
		}
		if fieldStart >= si {
			return i
		}
		f[i] = s[fieldStart:si]
	}

	for si < len(s) && asciiSpace[s[si]] != 0 {
		si++
	}
	if si < len(s) {
		f[n-1] = s[si:]
		return n
	}
	return n - 1
}
