// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config // import "go.opentelemetry.io/crashtracker/config"

import (
	"fmt"
	"net/url"
)

// Endpoint is the upload sink for finished crash reports. It is either an
// http(s) URL that receives the serialized report as a POST, or a file://
// path for local capture, primarily used in testing and offline deployments.
type Endpoint struct {
	URL *url.URL
}

// NewEndpoint parses and validates an endpoint URL.
func NewEndpoint(raw string) (*Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %v", raw, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return nil, fmt.Errorf("endpoint %q has no host", raw)
		}
	case "file":
		if u.Path == "" && u.Host == "" {
			return nil, fmt.Errorf("endpoint %q has no path", raw)
		}
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	return &Endpoint{URL: u}, nil
}

// IsFile reports whether the endpoint writes to the local filesystem.
func (e *Endpoint) IsFile() bool {
	return e.URL.Scheme == "file"
}

// FilePath returns the local path for a file:// endpoint. URLs of the form
// file://relative/path keep the authority component as part of the path.
func (e *Endpoint) FilePath() string {
	if e.URL.Host != "" {
		return e.URL.Host + e.URL.Path
	}
	return e.URL.Path
}

func (e *Endpoint) String() string {
	return e.URL.String()
}

// MarshalText implements encoding.TextMarshaler so endpoints embed naturally
// in the JSON configuration section of the wire protocol.
func (e *Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.URL.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Endpoint) UnmarshalText(text []byte) error {
	parsed, err := NewEndpoint(string(text))
	if err != nil {
		return err
	}
	e.URL = parsed.URL
	return nil
}
