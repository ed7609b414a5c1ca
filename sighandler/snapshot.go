// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sighandler

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/crashtracker/config"
	"go.opentelemetry.io/crashtracker/crashinfo"
	"go.opentelemetry.io/crashtracker/stateslot"
)

// snapshot is everything the crash path needs, serialized ahead of time.
// The crash handler consumes it as-is: JSON rendering of configuration and
// metadata happens here, at publish time, never during a crash.
type snapshot struct {
	cfg          *config.Configuration
	receiverCfg  *config.ReceiverConfig
	metadata     crashinfo.Metadata
	configJSON   []byte
	metadataJSON []byte
}

// activeState holds the published snapshot. The crash handler swaps it out
// with one atomic operation; after the first crash the state is consumed
// and stays empty, which is one half of the at-most-one-report guarantee.
var activeState stateslot.Slot[snapshot]

func newSnapshot(cfg *config.Configuration, rcfg *config.ReceiverConfig,
	md crashinfo.Metadata) (*snapshot, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("serialize configuration: %v", err)
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("serialize metadata: %v", err)
	}
	return &snapshot{
		cfg:          cfg,
		receiverCfg:  rcfg,
		metadata:     md,
		configJSON:   cfgJSON,
		metadataJSON: mdJSON,
	}, nil
}
