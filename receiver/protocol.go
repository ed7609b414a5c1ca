// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package receiver // import "go.opentelemetry.io/crashtracker/receiver"

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/crashtracker/config"
	"go.opentelemetry.io/crashtracker/crashinfo"
	"go.opentelemetry.io/crashtracker/wire"
)

type state int

const (
	stateWaiting state = iota
	stateSigInfo
	stateProcInfo
	stateConfig
	stateMetadata
	stateCounters
	stateStacktrace
	stateThreads
	stateFiles
	stateFile
	stateDone
)

// processor folds protocol lines into a crash report.
//
// The stream comes from a process that was crashing while it wrote, so the
// processor is maximally forgiving: a malformed line is recorded as an
// anomaly in the report's log and skipped, sections may be absent, and only
// structural violations (an END without its BEGIN) return an error.
type processor struct {
	state    state
	report   *crashinfo.CrashInfo
	config   *config.Configuration
	sawInput bool

	frames    []crashinfo.StackFrame
	filePath  string
	fileLines []string
}

func newProcessor() *processor {
	return &processor{report: crashinfo.New()}
}

// done reports whether the stream reached its DONE marker.
func (p *processor) done() bool {
	return p.state == stateDone
}

// sawAnything reports whether any protocol line at all arrived. A stream
// that closes before the first line is a clean "no crash" shutdown.
func (p *processor) sawAnything() bool {
	return p.sawInput
}

// anomaly records a recoverable protocol violation in the report.
func (p *processor) anomaly(format string, args ...any) {
	p.report.Log("protocol anomaly: " + fmt.Sprintf(format, args...))
}

// processLine advances the state machine by one line.
func (p *processor) processLine(line string) error {
	p.sawInput = true
	switch p.state {
	case stateWaiting:
		return p.processWaiting(line)
	case stateSigInfo:
		return p.processSection(line, wire.EndSigInfo, p.parseSigInfo)
	case stateProcInfo:
		return p.processSection(line, wire.EndProcInfo, p.parseProcInfo)
	case stateConfig:
		return p.processSection(line, wire.EndConfig, p.parseConfig)
	case stateMetadata:
		return p.processSection(line, wire.EndMetadata, p.parseMetadata)
	case stateCounters:
		return p.processSection(line, wire.EndCounters, p.parseCounters)
	case stateStacktrace:
		return p.processStacktrace(line)
	case stateThreads:
		return p.processThreads(line)
	case stateFiles:
		return p.processFiles(line)
	case stateFile:
		return p.processFile(line)
	case stateDone:
		p.anomaly("line after DONE: %q", truncate(line))
		return nil
	}
	return fmt.Errorf("corrupt receiver state %d", p.state)
}

func (p *processor) processWaiting(line string) error {
	switch {
	case line == wire.BeginSigInfo:
		p.state = stateSigInfo
	case line == wire.BeginProcInfo:
		p.state = stateProcInfo
	case line == wire.BeginConfig:
		p.state = stateConfig
	case line == wire.BeginMetadata:
		p.state = stateMetadata
	case line == wire.BeginCounters:
		p.state = stateCounters
	case line == wire.BeginStacktrace:
		p.state = stateStacktrace
	case line == wire.BeginThreads:
		p.state = stateThreads
	case line == wire.BeginFiles:
		p.state = stateFiles
	case line == wire.Done:
		p.report.Finalize()
		p.state = stateDone
	case strings.HasPrefix(line, "END_"):
		return fmt.Errorf("unexpected %s outside a section", line)
	case line == "":
		// Blank lines between sections are tolerated.
	default:
		p.anomaly("unrecognized line between sections: %q", truncate(line))
	}
	return nil
}

// processSection handles the single-payload sections: any line before the
// end marker is fed to parse, and parse failures are anomalies.
func (p *processor) processSection(line, endMarker string,
	parse func(string) error) error {
	if line == endMarker {
		p.state = stateWaiting
		return nil
	}
	if err := parse(line); err != nil {
		p.anomaly("%v", err)
	}
	return nil
}

func (p *processor) parseSigInfo(line string) error {
	var si crashinfo.SigInfo
	if err := json.Unmarshal([]byte(line), &si); err != nil {
		return fmt.Errorf("bad sig_info %q: %v", truncate(line), err)
	}
	return p.report.SetSigInfo(si)
}

func (p *processor) parseProcInfo(line string) error {
	var pi crashinfo.ProcInfo
	if err := json.Unmarshal([]byte(line), &pi); err != nil {
		return fmt.Errorf("bad proc_info %q: %v", truncate(line), err)
	}
	return p.report.SetProcInfo(pi)
}

func (p *processor) parseConfig(line string) error {
	var cfg config.Configuration
	if err := json.Unmarshal([]byte(line), &cfg); err != nil {
		return fmt.Errorf("bad config %q: %v", truncate(line), err)
	}
	if p.config != nil {
		return fmt.Errorf("config already set")
	}
	p.config = &cfg
	return nil
}

func (p *processor) parseMetadata(line string) error {
	var md crashinfo.Metadata
	if err := json.Unmarshal([]byte(line), &md); err != nil {
		return fmt.Errorf("bad metadata %q: %v", truncate(line), err)
	}
	return p.report.SetMetadata(md)
}

func (p *processor) parseCounters(line string) error {
	var counters map[string]int64
	if err := json.Unmarshal([]byte(line), &counters); err != nil {
		return fmt.Errorf("bad counters %q: %v", truncate(line), err)
	}
	return p.report.SetCounters(counters)
}

func (p *processor) processStacktrace(line string) error {
	if line == wire.EndStacktrace {
		err := p.report.SetStack(crashinfo.NewStackTrace(p.frames, false))
		p.frames = nil
		p.state = stateWaiting
		if err != nil {
			p.anomaly("%v", err)
		}
		return nil
	}
	var frame crashinfo.StackFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		p.anomaly("bad frame %q: %v", truncate(line), err)
		return nil
	}
	p.frames = append(p.frames, frame)
	return nil
}

// processThreads adds one non-crashing thread per line. Threads attach to
// the report as they parse, so a truncated section keeps what arrived.
func (p *processor) processThreads(line string) error {
	if line == wire.EndThreads {
		p.state = stateWaiting
		return nil
	}
	var td crashinfo.ThreadData
	if err := json.Unmarshal([]byte(line), &td); err != nil {
		p.anomaly("bad thread %q: %v", truncate(line), err)
		return nil
	}
	p.report.AddThread(td)
	return nil
}

func (p *processor) processFiles(line string) error {
	switch {
	case line == wire.EndFiles:
		p.state = stateWaiting
	case strings.HasPrefix(line, wire.BeginFile+" "):
		p.filePath = strings.TrimPrefix(line, wire.BeginFile+" ")
		p.fileLines = nil
		p.state = stateFile
	default:
		p.anomaly("unrecognized line in files section: %q", truncate(line))
	}
	return nil
}

func (p *processor) processFile(line string) error {
	if line == wire.EndFile {
		p.report.AddFile(p.filePath, p.fileLines)
		p.filePath = ""
		p.fileLines = nil
		p.state = stateFiles
		return nil
	}
	p.fileLines = append(p.fileLines, line)
	return nil
}

// finishInterrupted marks a report whose stream ended mid-section. Partial
// section content that already parsed stays in the report.
func (p *processor) finishInterrupted() {
	if p.state == stateFile && p.filePath != "" {
		p.report.AddFile(p.filePath, p.fileLines)
	}
	if p.state == stateStacktrace && len(p.frames) > 0 {
		if err := p.report.SetStack(crashinfo.NewStackTrace(p.frames, true)); err != nil {
			p.anomaly("%v", err)
		}
	}
}

// truncate bounds anomaly quotes so a garbage line cannot bloat the report.
func truncate(line string) string {
	const max = 120
	if len(line) <= max {
		return line
	}
	return line[:max] + "..."
}
