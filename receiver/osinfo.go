// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"strconv"

	"golang.org/x/sys/unix"

	"go.opentelemetry.io/crashtracker/crashinfo"
)

// gatherOSInfo describes the host the receiver runs on. The receiver shares
// the host with the crashed process, so describing ourselves describes it.
func gatherOSInfo() crashinfo.OSInfo {
	info := crashinfo.OSInfo{
		Architecture: "unknown",
		Bitness:      strconv.Itoa(strconv.IntSize),
		OSType:       "unknown",
		Version:      "unknown",
	}
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return info
	}
	info.Architecture = unix.ByteSliceToString(uts.Machine[:])
	info.OSType = unix.ByteSliceToString(uts.Sysname[:])
	info.Version = unix.ByteSliceToString(uts.Release[:])
	return info
}
