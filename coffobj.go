package main

import (
	"encoding/binary"
	"fmt"
)

// Section characteristics bits this project actually emits (IMAGE_SCN_*).
const (
	sectionCntInitializedData = 0x00000040
	sectionMemRead            = 0x40000000
	sectionMemWrite           = 0x80000000
)

// IMAGE_SYM_CLASS_* storage classes used by the objects this tool builds.
const (
	symClassExternal = 2
	symClassStatic   = 3
)

// Section numbers with reserved meaning, per spec.md §4.B.
const (
	sectionUndefined int16 = 0
	sectionAbsolute  int16 = -1
)

const (
	coffFileHeaderSize    = 20
	coffSectionHeaderSize = 40
	coffRelocationSize    = 10
	coffSymbolSize        = 18
)

// coffRelocation is one entry of a section's relocation table. symbolName
// is resolved to a symbol-table index during finalize, once every symbol
// has been added.
type coffRelocation struct {
	virtualAddress uint32
	symbolName     string
	relocType      uint16
}

type coffSection struct {
	name            string
	characteristics uint32
	data            []byte
	relocations     []coffRelocation
}

type coffSymbol struct {
	name          string
	value         uint32
	sectionNumber int16
	typ           uint16
	storageClass  byte
}

// coffObject builds a single COFF object file in memory: sections,
// symbols, relocations, and the string table that backs any name longer
// than 8 bytes. Sections and symbols are assigned numbers/indices in
// insertion order, matching spec.md §4.B's "writer assigns section
// numbers in insertion order starting at 1".
type coffObject struct {
	machine  uint16
	sections []*coffSection
	symbols  []*coffSymbol
	strtab   []byte // string-table bytes, including the 4-byte size prefix placeholder
}

func newCoffObject(machine uint16) *coffObject {
	return &coffObject{
		machine: machine,
		strtab:  make([]byte, 4),
	}
}

// addSection appends a new section and returns its 1-based section
// number, the value relocations and symbols reference it by.
func (o *coffObject) addSection(name string, characteristics uint32, data []byte) int16 {
	o.sections = append(o.sections, &coffSection{
		name:            name,
		characteristics: characteristics,
		data:            data,
	})
	return int16(len(o.sections))
}

// addRelocation adds a relocation to the section identified by its
// 1-based section number (as returned by addSection).
func (o *coffObject) addRelocation(sectionNumber int16, virtualAddress uint32, symbolName string, relocType uint16) {
	sec := o.sections[sectionNumber-1]
	sec.relocations = append(sec.relocations, coffRelocation{
		virtualAddress: virtualAddress,
		symbolName:     symbolName,
		relocType:      relocType,
	})
}

// addSymbol appends a symbol table entry. sectionNumber is either a
// section number from addSection, sectionUndefined, or sectionAbsolute.
func (o *coffObject) addSymbol(name string, value uint32, sectionNumber int16, typ uint16, storageClass byte) {
	o.symbols = append(o.symbols, &coffSymbol{
		name:          name,
		value:         value,
		sectionNumber: sectionNumber,
		typ:           typ,
		storageClass:  storageClass,
	})
}

// internName returns the encoded 8-byte name field for a symbol or
// section name: either the name itself (null-padded) when it fits, or
// {0x00000000, offset} referencing the string table when it doesn't.
func (o *coffObject) internName(name string) ([8]byte, error) {
	var field [8]byte
	if len(name) <= 8 {
		copy(field[:], name)
		return field, nil
	}
	offset := uint32(len(o.strtab))
	if uint64(offset)+uint64(len(name))+1 > 0xFFFFFFFF {
		return field, fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	o.strtab = append(o.strtab, name...)
	o.strtab = append(o.strtab, 0)
	binary.LittleEndian.PutUint32(field[4:], offset)
	return field, nil
}

// finalize lays out the complete object: file header, section table,
// then for each section in table order its raw data immediately
// followed by its own relocations, then the symbol table, then the
// string table — exactly the order spec.md §4.B specifies. All header
// offsets are computed before a single byte is emitted, so no
// partially-written buffer is patched afterwards, and two objects built
// from identical inputs produce identical output.
func (o *coffObject) finalize() ([]byte, error) {
	symbolIndex := make(map[string]int32, len(o.symbols))
	for i, s := range o.symbols {
		symbolIndex[s.name] = int32(i)
	}

	sectionNameFields := make([][8]byte, len(o.sections))
	for i, sec := range o.sections {
		field, err := o.internName(sec.name)
		if err != nil {
			return nil, err
		}
		sectionNameFields[i] = field
	}

	symbolNameFields := make([][8]byte, len(o.symbols))
	for i, sym := range o.symbols {
		field, err := o.internName(sym.name)
		if err != nil {
			return nil, err
		}
		symbolNameFields[i] = field
	}

	offset := uint32(coffFileHeaderSize) + uint32(len(o.sections))*coffSectionHeaderSize
	dataOffsets := make([]uint32, len(o.sections))
	relocOffsets := make([]uint32, len(o.sections))
	for i, sec := range o.sections {
		dataOffsets[i] = offset
		offset += uint32(len(sec.data))
		relocOffsets[i] = offset
		offset += uint32(len(sec.relocations)) * coffRelocationSize
	}
	symbolTableOffset := offset
	offset += uint32(len(o.symbols)) * coffSymbolSize

	buf := make([]byte, 0, offset+uint32(len(o.strtab)))

	var hdr [coffFileHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], o.machine)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(o.sections)))
	binary.LittleEndian.PutUint32(hdr[4:8], 0) // TimeDateStamp: always zero, for reproducibility
	binary.LittleEndian.PutUint32(hdr[8:12], symbolTableOffset)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(o.symbols)))
	binary.LittleEndian.PutUint16(hdr[16:18], 0) // SizeOfOptionalHeader
	binary.LittleEndian.PutUint16(hdr[18:20], 0) // Characteristics
	buf = append(buf, hdr[:]...)

	for i, sec := range o.sections {
		var sh [coffSectionHeaderSize]byte
		copy(sh[0:8], sectionNameFields[i][:])
		// [8:12] VirtualSize, [12:16] VirtualAddress: unused for object files
		binary.LittleEndian.PutUint32(sh[16:20], uint32(len(sec.data)))
		binary.LittleEndian.PutUint32(sh[20:24], dataOffsets[i])
		if len(sec.relocations) > 0 {
			binary.LittleEndian.PutUint32(sh[24:28], relocOffsets[i])
		}
		// [28:32] PointerToLinenumbers: unused
		binary.LittleEndian.PutUint16(sh[32:34], uint16(len(sec.relocations)))
		// [34:36] NumberOfLinenumbers: unused
		binary.LittleEndian.PutUint32(sh[36:40], sec.characteristics)
		buf = append(buf, sh[:]...)
	}

	for _, sec := range o.sections {
		buf = append(buf, sec.data...)
		for _, r := range sec.relocations {
			idx, ok := symbolIndex[r.symbolName]
			if !ok {
				return nil, fmt.Errorf("relocation references unknown symbol %q", r.symbolName)
			}
			var rb [coffRelocationSize]byte
			binary.LittleEndian.PutUint32(rb[0:4], r.virtualAddress)
			binary.LittleEndian.PutUint32(rb[4:8], uint32(idx))
			binary.LittleEndian.PutUint16(rb[8:10], r.relocType)
			buf = append(buf, rb[:]...)
		}
	}

	for i, sym := range o.symbols {
		var sb [coffSymbolSize]byte
		copy(sb[0:8], symbolNameFields[i][:])
		binary.LittleEndian.PutUint32(sb[8:12], sym.value)
		binary.LittleEndian.PutUint16(sb[12:14], uint16(sym.sectionNumber))
		binary.LittleEndian.PutUint16(sb[14:16], sym.typ)
		sb[16] = sym.storageClass
		sb[17] = 0 // NumberOfAuxSymbols: none of our symbols carry aux records
		buf = append(buf, sb[:]...)
	}

	binary.LittleEndian.PutUint32(o.strtab[0:4], uint32(len(o.strtab)))
	buf = append(buf, o.strtab...)

	return buf, nil
}
