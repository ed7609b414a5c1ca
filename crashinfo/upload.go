// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package crashinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/klauspost/compress/gzip"

	"go.opentelemetry.io/crashtracker/config"
)

// Upload delivers the report to the endpoint. A file:// endpoint appends the
// JSON document to the local path, which is the capture mode used by tests
// and offline deployments. An http(s) endpoint receives a gzip-compressed
// JSON POST bounded by ctx.
//
// A nil endpoint is a no-op: crash tracking without uploads is a valid
// configuration, the report then only exists in receiver logs and files.
func (ci *CrashInfo) Upload(ctx context.Context, endpoint *config.Endpoint) error {
	if endpoint == nil {
		return nil
	}
	if endpoint.IsFile() {
		return ci.appendToFile(endpoint.FilePath())
	}
	return ci.post(ctx, endpoint)
}

func (ci *CrashInfo) appendToFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report file %s: %v", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ci); err != nil {
		return fmt.Errorf("write report to %s: %v", path, err)
	}
	return nil
}

func (ci *CrashInfo) post(ctx context.Context, endpoint *config.Endpoint) error {
	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if err := json.NewEncoder(zw).Encode(ci); err != nil {
		return fmt.Errorf("serialize report: %v", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress report: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint.String(), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload report: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload report: endpoint returned %s", resp.Status)
	}
	return nil
}
