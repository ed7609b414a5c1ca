// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package crashinfo

// Metadata identifies the instrumented library on whose behalf crashes are
// tracked. It is set once at initialization and travels verbatim through the
// collector into the report.
type Metadata struct {
	LibraryName    string `json:"library_name"`
	LibraryVersion string `json:"library_version"`
	// Family groups reports by language runtime or product line.
	Family string   `json:"family"`
	Tags   []string `json:"tags,omitempty"`
}
