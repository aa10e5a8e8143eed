package main

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// archiveMember is one member of the archive this writer assembles: an
// ASCII header (spec.md §3 "Archive member") plus a body. name is the
// raw member name before header formatting/padding.
type archiveMember struct {
	name string
	body []byte
}

const (
	archiveSignature = "!<arch>\n"
	memberHeaderSize = 60
	maxInlineNameLen = 15 // names > 15 bytes go in the long-names member
	maxDecimalSize   = 9999999999
)

// formatArchiveHeader renders the 60-byte ASCII member header: name
// left-justified and space-padded to 16 bytes, timestamp, owner, group,
// mode, size, and the terminator "`\n" — spec.md §3/§4.D.
func formatArchiveHeader(name string, timestamp int64, size int) ([memberHeaderSize]byte, error) {
	var hdr [memberHeaderSize]byte
	for i := range hdr {
		hdr[i] = ' '
	}

	if size > maxDecimalSize {
		return hdr, fmt.Errorf("%w: member %q size %d exceeds archive size field", ErrSizeOverflow, name, size)
	}

	copy(hdr[0:16], padRight(name, 16))
	copy(hdr[16:28], padRight(fmt.Sprintf("%d", timestamp), 12))
	copy(hdr[28:34], padRight("0", 6)) // owner ID
	copy(hdr[34:40], padRight("0", 6)) // group ID
	copy(hdr[40:48], padRight("0", 8)) // mode, octal; object members carry no permission bits
	copy(hdr[48:58], padRight(fmt.Sprintf("%d", size), 10))
	copy(hdr[58:60], "`\n")

	return hdr, nil
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return fmt.Sprintf("%-*s", width, s)
}

// writeArchiveMember appends a member's header and (padded) body to buf.
func writeArchiveMember(buf []byte, name string, timestamp int64, body []byte) ([]byte, error) {
	hdr, err := formatArchiveHeader(name, timestamp, len(body))
	if err != nil {
		return nil, err
	}
	buf = append(buf, hdr[:]...)
	buf = append(buf, body...)
	if len(body)%2 != 0 {
		buf = append(buf, '\n')
	}
	return buf, nil
}

// symbolDef associates a public symbol name with the index (into the
// archive's object-member list, 0-based) of the member that defines it.
// Insertion order here is export-record order with per-library symbols
// interleaved at the point their defining member is emitted — spec.md
// §4.D "Symbol ordering contract".
type symbolDef struct {
	name        string
	memberIndex int
}

// sortedSymbol is one entry of the lexicographically sorted view of the
// symbol table the second linker member carries.
type sortedSymbol struct {
	name        string
	memberIndex int
}

// buildArchive assembles the complete archive byte stream from the
// already-built object members and their defined symbols, in the order
// spec.md §4.D lists: signature, first linker member, second linker
// member, long-names member, then each object member.
//
// objectMembers and symbols must already be in final insertion order:
// objectMembers[i] is the i-th object to appear in the archive (after
// the three special members), and symbols lists every symbol any object
// member defines, in the order those definitions occur.
func buildArchive(objectMembers []archiveMember, symbols []symbolDef) ([]byte, error) {
	memberCount := len(objectMembers)

	// Sorted view for the second linker member: an explicit stable sort
	// on a copy, never relying on a container's native key order
	// (spec.md §9 "Symbol ordering").
	sorted := make([]sortedSymbol, len(symbols))
	for i, s := range symbols {
		sorted[i] = sortedSymbol{name: s.name, memberIndex: s.memberIndex}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].name < sorted[j].name
	})

	// Long-names member: concatenation of null-terminated names longer
	// than 15 bytes. This implementation's per-symbol archive members
	// all share the (short) DLL-derived member name, so this is expected
	// to stay empty in practice; it is still always emitted with a real
	// (possibly zero-length) body, per the documented reference-tool
	// behavior noted in spec.md §9's open question.
	var longNames []byte
	longNameOffset := make(map[string]uint32)
	for _, m := range objectMembers {
		if len(m.name) > maxInlineNameLen {
			if _, ok := longNameOffset[m.name]; !ok {
				longNameOffset[m.name] = uint32(len(longNames))
				longNames = append(longNames, m.name...)
				longNames = append(longNames, 0)
			}
		}
	}

	memberName := func(name string) string {
		if len(name) > maxInlineNameLen {
			return fmt.Sprintf("/%d", longNameOffset[name])
		}
		return name
	}

	// ---- First pass: every member's size, independent of the final
	// member-header offsets (sizes don't depend on the offset values
	// themselves, only on counts), so the offset tables can be computed
	// before any linker-member bytes are written for real — spec.md §9
	// "two-pass layout".
	zeroMemberOffsets := make([]uint32, memberCount)
	firstSize := len(firstLinkerMemberBody(symbols, zeroMemberOffsets))
	secondSize := len(secondLinkerMemberBody(zeroMemberOffsets, sorted))

	offset := len(archiveSignature)
	specialSizes := []int{firstSize, secondSize, len(longNames)}
	for _, size := range specialSizes {
		offset += memberHeaderSize + size
		if size%2 != 0 {
			offset++
		}
	}

	memberHeaderOffsets := make([]uint32, memberCount)
	for i, m := range objectMembers {
		memberHeaderOffsets[i] = uint32(offset)
		offset += memberHeaderSize + len(m.body)
		if len(m.body)%2 != 0 {
			offset++
		}
	}

	firstMemberBody := firstLinkerMemberBody(symbols, memberHeaderOffsets)
	secondMemberBody, err := secondLinkerMemberBodyChecked(memberHeaderOffsets, sorted)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, offset)
	buf = append(buf, archiveSignature...)

	buf, err = writeArchiveMember(buf, "/", -1, firstMemberBody)
	if err != nil {
		return nil, err
	}
	buf, err = writeArchiveMember(buf, "/", -1, secondMemberBody)
	if err != nil {
		return nil, err
	}
	buf, err = writeArchiveMember(buf, "//", -1, longNames)
	if err != nil {
		return nil, err
	}
	for _, m := range objectMembers {
		buf, err = writeArchiveMember(buf, memberName(m.name), 0, m.body)
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// firstLinkerMemberBody renders the big-endian first linker member: a
// 32-bit count, that many 32-bit member-header offsets (one per symbol,
// insertion order), then the null-terminated names in the same order —
// spec.md §4.D.2.
func firstLinkerMemberBody(symbols []symbolDef, memberHeaderOffsets []uint32) []byte {
	buf := make([]byte, 4, 4+8*len(symbols))
	binary.BigEndian.PutUint32(buf, uint32(len(symbols)))

	for _, s := range symbols {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, memberHeaderOffsets[s.memberIndex])
		buf = append(buf, b...)
	}
	for _, s := range symbols {
		buf = append(buf, s.name...)
		buf = append(buf, 0)
	}
	return buf
}

// secondLinkerMemberBody renders the little-endian second linker member
// ignoring the 16-bit index-table overflow check; used during sizing,
// where the offsets are still placeholders.
func secondLinkerMemberBody(memberHeaderOffsets []uint32, sorted []sortedSymbol) []byte {
	buf, _ := secondLinkerMemberBodyChecked(memberHeaderOffsets, sorted)
	return buf
}

// secondLinkerMemberBodyChecked renders the little-endian second linker
// member: member count, member-header offsets (one per object member,
// archive order), symbol count, 16-bit 1-based member indices (the
// permutation mapping sorted order back to member order), then the
// sorted null-terminated names — spec.md §4.D.3.
func secondLinkerMemberBodyChecked(memberHeaderOffsets []uint32, sorted []sortedSymbol) ([]byte, error) {
	buf := make([]byte, 4, 4+4*len(memberHeaderOffsets)+4+2*len(sorted))
	binary.LittleEndian.PutUint32(buf, uint32(len(memberHeaderOffsets)))

	for _, off := range memberHeaderOffsets {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, off)
		buf = append(buf, b...)
	}

	sc := make([]byte, 4)
	binary.LittleEndian.PutUint32(sc, uint32(len(sorted)))
	buf = append(buf, sc...)

	for _, s := range sorted {
		idx := s.memberIndex + 1 // 1-based
		if idx > 0xFFFF {
			return nil, fmt.Errorf("%w: member index %d exceeds 16-bit index table", ErrSizeOverflow, idx)
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(idx))
		buf = append(buf, b...)
	}

	for _, s := range sorted {
		buf = append(buf, s.name...)
		buf = append(buf, 0)
	}

	return buf, nil
}
