package main

import (
	"encoding/binary"
	"fmt"
)

// Name-type bits a short-import member's TypeInfo word can carry,
// telling the linker how to rederive the exported name from the
// imported name (spec.md §4.C).
const (
	nameTypeOrdinal      = 0 // resolve strictly by ordinal
	nameTypeName         = 1 // exact match
	nameTypeNameNoPrefix = 2 // strip one leading '?', '@' or '_' if present
	nameTypeNameUndecorate = 3 // strip leading '?@_' and any trailing "@nnn"
)

// Import-type bits.
const (
	importTypeCode  = 0
	importTypeData  = 1
	importTypeConst = 2
)

// Section names of the import-descriptor and null-thunk objects, fixed by the PE/COFF
// import-library convention spec.md §4.C names explicitly.
const (
	sectionIdata2 = ".idata$2"
	sectionIdata3 = ".idata$3"
	sectionIdata4 = ".idata$4"
	sectionIdata5 = ".idata$5"
	sectionIdata6 = ".idata$6"
)

const idataCharacteristics = sectionCntInitializedData | sectionMemRead | sectionMemWrite

// buildImportDescriptorObject builds the one-per-library object holding
// the IMAGE_IMPORT_DESCRIPTOR shell and the DLL name string, per
// spec.md §4.C.1. libName is the full DLL name (extension kept) used
// for the .idata$6 string; libIdent is the extension-stripped
// identifier the descriptor/null-thunk symbol names are built from.
func buildImportDescriptorObject(libName, libIdent string, m machineInfo) ([]byte, error) {
	obj := newCoffObject(m.coffMachine)

	descriptor := make([]byte, 20) // OriginalFirstThunk, TimeDateStamp, ForwarderChain, Name, FirstThunk
	idata2 := obj.addSection(sectionIdata2, idataCharacteristics, descriptor)

	// The null/terminating descriptor entry: an all-zero sentinel that
	// closes the DLL's IMAGE_IMPORT_DESCRIPTOR array. It needs no
	// relocations (every field is a real zero, not a patched pointer)
	// but does need its own defining symbol, __NULL_IMPORT_DESCRIPTOR,
	// since every other object's undefined reference to it must resolve
	// to something.
	nullDescriptor := make([]byte, 20)
	idata3 := obj.addSection(sectionIdata3, idataCharacteristics, nullDescriptor)

	nameBytes := append([]byte(libName), 0)
	idata6 := obj.addSection(sectionIdata6, idataCharacteristics, nameBytes)

	nullThunkSymbol := libIdent + "_NULL_THUNK_DATA"

	// .idata$6 has no defining symbol of its own callers reference by
	// name elsewhere, but the Name relocation inside .idata$2 needs a
	// symbol table entry to point at; a local static symbol at the
	// section's own offset 0 serves that purpose.
	idata6Symbol := sectionIdata6
	obj.addSymbol(idata6Symbol, 0, idata6, 0, symClassStatic)

	// OriginalFirstThunk (offset 0) and FirstThunk (offset 16) both
	// resolve through the null-thunk boundary symbol: this implementation
	// never emits per-symbol thunk arrays (§4.C chooses the short-import
	// form for every export), so the descriptor's thunk pointers have
	// nothing to reference but the shared null terminator.
	obj.addRelocation(idata2, 0, nullThunkSymbol, m.absPointerReloc)
	obj.addRelocation(idata2, 12, idata6Symbol, m.absPointerReloc)
	obj.addRelocation(idata2, 16, nullThunkSymbol, m.absPointerReloc)

	obj.addSymbol("__IMPORT_DESCRIPTOR_"+libIdent, 0, idata2, 0, symClassExternal)
	obj.addSymbol("__NULL_IMPORT_DESCRIPTOR", 0, idata3, 0, symClassExternal)
	obj.addSymbol(nullThunkSymbol, 0, sectionUndefined, 0, symClassExternal)

	return obj.finalize()
}

// buildNullThunkObject builds the one-per-library terminator object: an
// empty pointer-width thunk slot in .idata$4 and .idata$5, defining
// <libident>_NULL_THUNK_DATA at offset 0, per spec.md §4.C.2. libIdent
// is the extension-stripped library identifier (see
// buildImportDescriptorObject).
func buildNullThunkObject(libIdent string, m machineInfo) ([]byte, error) {
	obj := newCoffObject(m.coffMachine)

	zero := make([]byte, m.pointerSize)
	idata4 := obj.addSection(sectionIdata4, idataCharacteristics, zero)
	obj.addSection(sectionIdata5, idataCharacteristics, make([]byte, m.pointerSize))

	obj.addSymbol(libIdent+"_NULL_THUNK_DATA", 0, idata4, 0, symClassExternal)

	return obj.finalize()
}

// shortImportMember is the compact COFF-archive member variant
// (IMPORT_OBJECT_HEADER, signature 0x0000/0xFFFF) that is the complete
// member for an ordinary imported symbol — spec.md §4.C notes that
// fuller head/thunk object variants exist in some toolchains but are
// not required here, since the reference tool itself emits this short
// form.
type shortImportMember struct {
	machine      uint16
	ordinalOrHint uint16
	importType   uint16
	nameType     uint16
	dllName      string
	importedName string
}

// buildShortImport selects the per-export layout policy of spec.md
// §4.C: by-ordinal when the export says so, otherwise an exact-name
// match — this factory never invents prefix stripping beyond what the
// export record itself requests.
func buildShortImport(export Export, libName string, m machineInfo) (shortImportMember, error) {
	if export.ByOrdinal && !export.OrdinalSet {
		return shortImportMember{}, fmt.Errorf("%q: %w: NONAME requires an ordinal", export.Name, ErrInvalidExport)
	}
	if export.OrdinalSet && export.ByOrdinal {
		if uint32(export.Ordinal) > 0xFFFF {
			return shortImportMember{}, fmt.Errorf("%q: %w: ordinal %d out of range", export.Name, ErrInvalidExport, export.Ordinal)
		}
	}

	importType := uint16(importTypeCode)
	if export.IsData {
		importType = importTypeData
	}

	member := shortImportMember{
		machine:      m.coffMachine,
		importType:   importType,
		dllName:      libName,
		importedName: export.effectiveImportedName(),
	}

	if export.ByOrdinal {
		member.nameType = nameTypeOrdinal
		member.ordinalOrHint = export.Ordinal
	} else {
		member.nameType = nameTypeName
		if export.OrdinalSet {
			member.ordinalOrHint = export.Ordinal
		}
	}

	return member, nil
}

// publicSymbols returns the names the linker sees this export define:
// for code, both "__imp_<decorated>" and "<decorated>"; for data, only
// "__imp_<decorated>" — spec.md §4.C "Symbol names and decoration".
func publicSymbols(export Export, m machineInfo) []string {
	decorated := m.decorate(export.effectiveImportedName())
	if export.IsData {
		return []string{"__imp_" + decorated}
	}
	return []string{"__imp_" + decorated, decorated}
}

// bytes serializes the IMPORT_OBJECT_HEADER followed by the DLL name and
// the imported name, each null-terminated, matching the field order
// spec.md §4.C lists: "size, ordinal-or-hint, type and name-type bits,
// DLL name, imported name".
func (s shortImportMember) bytes() []byte {
	dll := append([]byte(s.dllName), 0)
	name := append([]byte(s.importedName), 0)
	sizeOfData := uint32(len(dll) + len(name))

	buf := make([]byte, 20, 20+len(dll)+len(name))
	binary.LittleEndian.PutUint16(buf[0:2], 0)      // Sig1: IMAGE_FILE_MACHINE_UNKNOWN
	binary.LittleEndian.PutUint16(buf[2:4], 0xFFFF) // Sig2
	binary.LittleEndian.PutUint16(buf[4:6], 0)      // Version
	binary.LittleEndian.PutUint16(buf[6:8], s.machine)
	binary.LittleEndian.PutUint32(buf[8:12], 0) // TimeDateStamp: zero, for reproducibility
	binary.LittleEndian.PutUint32(buf[12:16], sizeOfData)
	binary.LittleEndian.PutUint16(buf[16:18], s.ordinalOrHint)
	typeInfo := (s.importType & 0x3) | ((s.nameType & 0x7) << 2)
	binary.LittleEndian.PutUint16(buf[18:20], typeInfo)

	buf = append(buf, dll...)
	buf = append(buf, name...)
	return buf
}
