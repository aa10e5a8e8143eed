package main

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ModuleDefinition is the input record produced by the module-definition
// reader (spec.md §3): the target DLL's name and its ordered list of
// exports. Global flags the grammar allows (HEAPSIZE, STACKSIZE, VERSION,
// ...) are accepted by the reader but carry no meaning for an import
// library and are not represented here.
type ModuleDefinition struct {
	LibraryName string
	Exports     []Export
}

// Export is one exported symbol, per spec.md §3. Invariant: either
// ImportedName is set or it equals Name; if ByOrdinal, Ordinal must be
// present (OrdinalSet true).
type Export struct {
	Name         string
	ImportedName string // alias the importing program uses; empty if no "= internal" clause (see effectiveImportedName)
	Ordinal      uint16
	OrdinalSet   bool
	ByOrdinal    bool // NONAME: resolve strictly by ordinal, no name in the export table
	IsData       bool
}

// effectiveImportedName returns the name import consumers reference,
// defaulting to Name when no alias was given.
func (e Export) effectiveImportedName() string {
	if e.ImportedName != "" {
		return e.ImportedName
	}
	return e.Name
}

// ReadModuleDefinition parses the classic Microsoft module-definition
// text format:
//
//	LIBRARY name
//	EXPORTS
//	    name [= internal] [@ordinal [NONAME]] [DATA] [PRIVATE]
//
// It is a hand-written line scanner in the teacher's own style (no
// parser-generator, no regexp grammar) — the grammar here is small
// enough that a recursive-descent pass over tokenized lines is the
// whole job. Parse errors name the offending line number; this reader
// never panics on arbitrary input, independent of whether the .def is
// well-formed.
func ReadModuleDefinition(text string) (ModuleDefinition, error) {
	var def ModuleDefinition
	inExports := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		upper := strings.ToUpper(line)
		switch {
		case upper == "EXPORTS":
			inExports = true
			continue
		case strings.HasPrefix(upper, "LIBRARY"):
			inExports = false
			rest := strings.TrimSpace(line[len("LIBRARY"):])
			rest = strings.Trim(rest, `"`)
			if rest == "" {
				return ModuleDefinition{}, fmt.Errorf("line %d: LIBRARY requires a name", lineNo)
			}
			def.LibraryName = rest
			continue
		case !inExports:
			// Other top-level directives (NAME, VERSION, HEAPSIZE, ...)
			// are accepted and ignored: they affect the DLL build, not
			// the import library derived from its export list.
			continue
		}

		export, err := parseExportLine(line)
		if err != nil {
			return ModuleDefinition{}, fmt.Errorf("line %d: %w", lineNo, err)
		}
		def.Exports = append(def.Exports, export)
	}
	if err := scanner.Err(); err != nil {
		return ModuleDefinition{}, fmt.Errorf("reading module definition: %w", err)
	}
	return def, nil
}

// parseExportLine parses one EXPORTS entry:
//
//	name [= internal] [@ordinal [NONAME]] [DATA] [PRIVATE]
func parseExportLine(line string) (Export, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Export{}, fmt.Errorf("empty export line")
	}

	export := Export{Name: fields[0]}
	i := 1

	if i < len(fields) && fields[i] == "=" {
		i++
		if i >= len(fields) {
			return Export{}, fmt.Errorf("%q: expected internal name after '='", export.Name)
		}
		export.ImportedName = fields[i]
		i++
	}

	for i < len(fields) {
		tok := fields[i]
		switch {
		case strings.HasPrefix(tok, "@"):
			n, err := strconv.ParseUint(tok[1:], 10, 16)
			if errors.Is(err, strconv.ErrRange) {
				return Export{}, fmt.Errorf("%q: %w: ordinal %q out of range", export.Name, ErrInvalidExport, tok)
			}
			if err != nil {
				return Export{}, fmt.Errorf("%q: invalid ordinal %q: %w", export.Name, tok, err)
			}
			export.Ordinal = uint16(n)
			export.OrdinalSet = true
		case strings.EqualFold(tok, "NONAME"):
			export.ByOrdinal = true
		case strings.EqualFold(tok, "DATA"):
			export.IsData = true
		case strings.EqualFold(tok, "PRIVATE"):
			// Governs the DLL's own export table, not the import library.
		default:
			return Export{}, fmt.Errorf("%q: unrecognized export attribute %q", export.Name, tok)
		}
		i++
	}

	if export.ByOrdinal && !export.OrdinalSet {
		return Export{}, fmt.Errorf("%q: %w: NONAME requires an ordinal", export.Name, ErrInvalidExport)
	}
	return export, nil
}
