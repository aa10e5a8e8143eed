package main

import (
	"fmt"
	"strings"
)

// Build is the top-level operation of spec.md §4.E: given a parsed
// module definition and a target machine, it synthesizes the
// import-descriptor member, the null-thunk member, one short-import
// member per export (in definition order), registers the public symbols
// each member defines, and invokes the archive writer.
//
// Build is a pure function of its arguments: no I/O, no logging, safe to
// call concurrently on disjoint inputs (spec.md §5).
func Build(def ModuleDefinition, arch Architecture) ([]byte, error) {
	m, err := lookupMachine(arch)
	if err != nil {
		return nil, err
	}

	// libName is the full DLL name (extension kept, lowercased), used for
	// the archive member name, the .idata$6 string, and the short-import
	// DLL-name field. libIdent strips the ".dll" suffix and keeps the
	// module definition's own casing, since spec.md's worked example
	// ("LIBRARY A.DLL") names the descriptor/null-thunk symbols
	// "__IMPORT_DESCRIPTOR_A"/"A_NULL_THUNK_DATA" — not "..._a.dll".
	libName := strings.ToLower(def.LibraryName)
	libIdent := stripDLLExtension(def.LibraryName)

	var members []archiveMember
	var symbols []symbolDef

	descriptorBody, err := buildImportDescriptorObject(libName, libIdent, m)
	if err != nil {
		return nil, fmt.Errorf("building import descriptor for %q: %w", def.LibraryName, err)
	}
	descriptorIndex := len(members)
	members = append(members, archiveMember{name: libName, body: descriptorBody})
	symbols = append(symbols,
		symbolDef{name: "__IMPORT_DESCRIPTOR_" + libIdent, memberIndex: descriptorIndex},
		symbolDef{name: "__NULL_IMPORT_DESCRIPTOR", memberIndex: descriptorIndex},
	)

	nullThunkBody, err := buildNullThunkObject(libIdent, m)
	if err != nil {
		return nil, fmt.Errorf("building null-thunk object for %q: %w", def.LibraryName, err)
	}
	nullThunkIndex := len(members)
	members = append(members, archiveMember{name: libName, body: nullThunkBody})
	symbols = append(symbols, symbolDef{name: libIdent + "_NULL_THUNK_DATA", memberIndex: nullThunkIndex})

	for _, export := range def.Exports {
		short, err := buildShortImport(export, libName, m)
		if err != nil {
			return nil, fmt.Errorf("building short import for %q: %w", export.Name, err)
		}
		memberIndex := len(members)
		members = append(members, archiveMember{name: libName, body: short.bytes()})
		for _, sym := range publicSymbols(export, m) {
			symbols = append(symbols, symbolDef{name: sym, memberIndex: memberIndex})
		}
	}

	return buildArchive(members, symbols)
}

// stripDLLExtension removes a trailing ".dll" (case-insensitive) from a
// library name, preserving the rest of the name's original casing —
// the identifier spec.md's descriptor/null-thunk symbol names are built
// from, as distinct from the full DLL name carried elsewhere.
func stripDLLExtension(name string) string {
	const ext = ".dll"
	if len(name) > len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext) {
		return name[:len(name)-len(ext)]
	}
	return name
}
