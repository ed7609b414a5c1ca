// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package crashinfo

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/crashtracker/config"
)

func TestNewReportIdentity(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a.UUID)
	assert.NotEqual(t, a.UUID, b.UUID)
	assert.NotEmpty(t, a.Timestamp)
	assert.True(t, a.Incomplete)
	assert.True(t, a.Error.IsCrash)
	assert.Equal(t, ErrorKindUnixSignal, a.Error.Kind)
}

func TestDoubleSetRejected(t *testing.T) {
	ci := New()
	si := NewSigInfo(unix.SIGSEGV, 1, 0xdeadbeef)
	require.NoError(t, ci.SetSigInfo(si))
	assert.Error(t, ci.SetSigInfo(si))

	require.NoError(t, ci.SetCounters(map[string]int64{"unwinding": 1}))
	assert.Error(t, ci.SetCounters(nil))

	require.NoError(t, ci.SetMetadata(Metadata{LibraryName: "lib"}))
	assert.Error(t, ci.SetMetadata(Metadata{LibraryName: "other"}))

	require.NoError(t, ci.SetStack(NewStackTrace([]StackFrame{{IP: "0x1"}}, false)))
	assert.Error(t, ci.SetStack(NewStackTrace(nil, false)))
}

// Metadata without a library name is still metadata; a duplicated section
// must not overwrite it.
func TestEmptyMetadataStillGuardsDoubleSet(t *testing.T) {
	ci := New()
	require.NoError(t, ci.SetMetadata(Metadata{Tags: []string{"env:test"}}))
	assert.Error(t, ci.SetMetadata(Metadata{LibraryName: "late"}))
	assert.Equal(t, []string{"env:test"}, ci.Metadata.Tags)
}

func TestSigInfoProvidesMessage(t *testing.T) {
	ci := New()
	require.NoError(t, ci.SetSigInfo(NewSigInfo(unix.SIGABRT, 0, 0)))
	assert.Equal(t, "Process terminated with SIGABRT", ci.Error.Message)

	si := NewSigInfo(unix.SIGSEGV, 1, 0x1000)
	assert.Equal(t, "0x1000", si.Address)
	assert.Equal(t, "SIGSEGV", si.SigName)
}

// The identity fields of a report must survive a serialization round trip
// unchanged.
func TestJSONRoundTrip(t *testing.T) {
	ci := New()
	require.NoError(t, ci.SetMetadata(Metadata{
		LibraryName:    "otel-profiler",
		LibraryVersion: "0.9.0",
		Family:         "go",
		Tags:           []string{"service:demo"},
	}))
	require.NoError(t, ci.SetSigInfo(NewSigInfo(unix.SIGSEGV, 1, 0xbad)))
	ci.AddFile("/proc/self/maps", []string{"00400000-00452000 r-xp"})
	ci.Log("anomaly: short read")
	ci.Finalize()

	data, err := json.Marshal(ci)
	require.NoError(t, err)

	var decoded CrashInfo
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ci.UUID, decoded.UUID)
	assert.Equal(t, ci.Timestamp, decoded.Timestamp)
	assert.Equal(t, "go", decoded.Metadata.Family)
	assert.True(t, decoded.Error.IsCrash)
	assert.False(t, decoded.Incomplete)
	assert.Equal(t, []string{"anomaly: short read"}, decoded.LogMessages)
}

func TestUploadToFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.json")
	ep, err := config.NewEndpoint("file://" + path)
	require.NoError(t, err)

	first, second := New(), New()
	require.NoError(t, first.Upload(context.Background(), ep))
	require.NoError(t, second.Upload(context.Background(), ep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var reports []CrashInfo
	d := json.NewDecoder(bytes.NewReader(data))
	for d.More() {
		var ci CrashInfo
		require.NoError(t, d.Decode(&ci))
		reports = append(reports, ci)
	}
	require.Len(t, reports, 2)
	assert.Equal(t, first.UUID, reports[0].UUID)
	assert.Equal(t, second.UUID, reports[1].UUID)
}

func TestUploadHTTPGzip(t *testing.T) {
	var received CrashInfo
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
			zr, err := gzip.NewReader(r.Body)
			require.NoError(t, err)
			body, err := io.ReadAll(zr)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &received))
			w.WriteHeader(http.StatusAccepted)
		}))
	defer srv.Close()

	ep, err := config.NewEndpoint(srv.URL)
	require.NoError(t, err)

	ci := New()
	ci.Finalize()
	require.NoError(t, ci.Upload(context.Background(), ep))
	assert.Equal(t, ci.UUID, received.UUID)
}

func TestUploadNilEndpoint(t *testing.T) {
	assert.NoError(t, New().Upload(context.Background(), nil))
}

func TestUploadHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
	defer srv.Close()

	ep, err := config.NewEndpoint(srv.URL)
	require.NoError(t, err)
	assert.Error(t, New().Upload(context.Background(), ep))
}
