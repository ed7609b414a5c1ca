// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sighandler

// setNoSigpipe is a no-op here: the collector sends on the stream socket
// with MSG_NOSIGNAL, so the process's SIGPIPE disposition is never touched.
func setNoSigpipe(fd int) error {
	return nil
}
