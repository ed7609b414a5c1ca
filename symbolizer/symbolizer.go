// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package symbolizer resolves raw frame addresses against the crashed
// process's memory map.
//
// It runs in the receiver, never in the crashing process: the crashed
// process only captures addresses and its /proc/self/maps, and everything
// heavyweight (ELF parsing, demangling, caching) happens after the fact in a
// healthy process.
package symbolizer // import "go.opentelemetry.io/crashtracker/symbolizer"

import (
	"debug/elf"
	"fmt"
	"sort"
	"strconv"
	"strings"

	lru "github.com/elastic/go-freelru"
	"github.com/ianlancetaylor/demangle"
	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/crashtracker/crashinfo"
)

// symtabCacheSize bounds the number of binaries whose symbol tables are kept
// in memory. Even large processes rarely map more than a few hundred
// distinct binaries.
const symtabCacheSize = 256

// hashString is the LRU hash for path keys. xxh3 is the fastest string hash
// in the FreeLRU benchmarks.
func hashString(s string) uint32 {
	return uint32(xxh3.HashString(s))
}

type symbol struct {
	addr uint64
	size uint64
	name string
}

// symtab is the sorted symbol table of one binary, or the error that kept
// it from loading. Failures are cached too, so a missing binary costs one
// open attempt rather than one per frame.
type symtab struct {
	elfType elf.Type
	syms    []symbol
	err     error
}

// Resolver symbolizes frames, caching per-binary symbol tables.
type Resolver struct {
	cache         *lru.LRU[string, *symtab]
	demangleNames bool
}

// NewResolver creates a Resolver. With demangleNames set, C++ and Rust
// symbol names are demangled after lookup.
func NewResolver(demangleNames bool) (*Resolver, error) {
	cache, err := lru.New[string, *symtab](symtabCacheSize, hashString)
	if err != nil {
		return nil, err
	}
	return &Resolver{cache: cache, demangleNames: demangleNames}, nil
}

// Symbolize resolves every frame of trace in place against mappings. Frames
// that cannot be resolved keep their raw addresses and record the reason in
// their comments; a single unreadable binary must not fail the report.
func (r *Resolver) Symbolize(trace *crashinfo.StackTrace, mappings []Mapping) {
	for i := range trace.Frames {
		r.resolveFrame(&trace.Frames[i], mappings)
	}
}

// SymbolizeThreads resolves the traces of all additional threads.
func (r *Resolver) SymbolizeThreads(threads []crashinfo.ThreadData, mappings []Mapping) {
	for i := range threads {
		r.Symbolize(&threads[i].Stack, mappings)
	}
}

func (r *Resolver) resolveFrame(frame *crashinfo.StackFrame, mappings []Mapping) {
	if frame.Function != "" {
		// Already resolved in-process.
		if r.demangleNames {
			r.demangleFrame(frame)
		}
		return
	}
	if frame.IP == "" {
		return
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(frame.IP, "0x"), 16, 64)
	if err != nil {
		frame.Comments = append(frame.Comments,
			fmt.Sprintf("unparsable ip %q", frame.IP))
		return
	}
	m, ok := FindMapping(mappings, addr)
	if !ok || m.Path == "" || strings.HasPrefix(m.Path, "[") {
		frame.Comments = append(frame.Comments, "no mapping for address")
		return
	}
	frame.Path = m.Path
	frame.ModuleBase = crashinfo.HexAddr(m.Start)

	tab := r.load(m.Path)
	if tab.err != nil {
		frame.Comments = append(frame.Comments,
			fmt.Sprintf("symbols unavailable: %v", tab.err))
		return
	}

	// Shared objects hold addresses relative to their load base; statically
	// positioned executables hold absolute virtual addresses.
	lookupAddr := addr
	if tab.elfType == elf.ET_DYN {
		lookupAddr = addr - (m.Start - m.Offset)
	}
	frame.RelativeAddress = crashinfo.HexAddr(lookupAddr)

	sym, ok := lookup(tab.syms, lookupAddr)
	if !ok {
		frame.Comments = append(frame.Comments, "no symbol covers address")
		return
	}
	frame.MangledName = sym.name
	frame.SymbolAddress = crashinfo.HexAddr(sym.addr)
	frame.Function = sym.name
	if r.demangleNames {
		r.demangleFrame(frame)
	}
}

func (r *Resolver) demangleFrame(frame *crashinfo.StackFrame) {
	if frame.Function == "" {
		return
	}
	if frame.MangledName == "" {
		frame.MangledName = frame.Function
	}
	// Filter returns its input unchanged for names that are not mangled.
	frame.Function = demangle.Filter(frame.MangledName)
}

// load returns the cached symbol table for path, reading it on first use.
func (r *Resolver) load(path string) *symtab {
	if tab, ok := r.cache.Get(path); ok {
		return tab
	}
	tab := readSymtab(path)
	r.cache.Add(path, tab)
	return tab
}

func readSymtab(path string) *symtab {
	f, err := elf.Open(path)
	if err != nil {
		return &symtab{err: err}
	}
	defer f.Close()

	var syms []symbol
	for _, fetch := range []func() ([]elf.Symbol, error){f.Symbols, f.DynamicSymbols} {
		elfSyms, err := fetch()
		if err != nil {
			// A stripped binary has no .symtab; .dynsym may still exist.
			continue
		}
		for _, s := range elfSyms {
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
				continue
			}
			syms = append(syms, symbol{addr: s.Value, size: s.Size, name: s.Name})
		}
	}
	if len(syms) == 0 {
		return &symtab{err: fmt.Errorf("no function symbols in %s", path)}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].addr < syms[j].addr })
	return &symtab{elfType: f.Type, syms: syms}
}

// lookup finds the symbol covering addr in a sorted table.
func lookup(syms []symbol, addr uint64) (symbol, bool) {
	i := sort.Search(len(syms), func(i int) bool { return syms[i].addr > addr })
	if i == 0 {
		return symbol{}, false
	}
	s := syms[i-1]
	// Zero-sized symbols cover up to the next symbol.
	if s.size != 0 && addr >= s.addr+s.size {
		return symbol{}, false
	}
	return s, true
}
