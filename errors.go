package main

import "errors"

// Core error kinds, per spec.md §7. Callers distinguish them with
// errors.Is; each is wrapped with fmt.Errorf("%w: ...") at the call
// site for context, the same sentinel-error convention the COFF-writing
// example in the reference corpus uses for its own ErrSectionNotFound.
var (
	// ErrUnsupportedMachine means the requested architecture is not in
	// the closed set {I386, AMD64, ARM64, ARMNT}.
	ErrUnsupportedMachine = errors.New("unsupported machine architecture")

	// ErrInvalidExport means a by-ordinal export had no ordinal, or an
	// ordinal outside 0..65535.
	ErrInvalidExport = errors.New("invalid export record")

	// ErrNameTooLong means a symbol or section name could not be
	// represented: the string table's 32-bit offset would overflow.
	ErrNameTooLong = errors.New("name too long to represent")

	// ErrSizeOverflow means a member's size exceeds what the archive's
	// 10-digit decimal ASCII size field can hold, or an object member's
	// 1-based index does not fit the second linker member's 16-bit
	// index table.
	ErrSizeOverflow = errors.New("archive member size overflow")
)
