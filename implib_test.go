package main

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBuildMinimalScenario covers spec.md §8's seed scenario: a single
// LIBRARY A.DLL with one code export produces an archive of three
// object members (import descriptor, null thunk, short import for foo)
// plus the three special members (first linker, second linker, long
// names), with the import descriptor and null thunk always present
// even for a single export.
func TestBuildMinimalScenario(t *testing.T) {
	def := ModuleDefinition{
		LibraryName: "A.DLL",
		Exports:     []Export{{Name: "foo"}},
	}

	buf, err := Build(def, AMD64)
	require.NoError(t, err)
	require.Equal(t, archiveSignature, string(buf[:8]))

	firstBody := extractMemberBody(t, buf, 0)
	count := binary.BigEndian.Uint32(firstBody[0:4])
	names := extractNullTerminatedNames(firstBody[4+4*count:])
	require.Equal(t, []string{
		"__IMPORT_DESCRIPTOR_A",
		"__NULL_IMPORT_DESCRIPTOR",
		"A_NULL_THUNK_DATA",
		"__imp_foo",
		"foo",
	}, names)

	longNamesOffset := memberHeaderOffsetOf(t, buf, 2)
	require.Equal(t, "//", string(buf[longNamesOffset:longNamesOffset+2]))
}

// TestBuildOrdinalDataScenario covers "bar @ 7 NONAME DATA": a NONAME
// data export is resolved strictly by ordinal, so only __imp_bar is
// registered as a public symbol — no bare "bar" entry point exists for
// data exports, and NONAME suppresses the by-name form entirely.
func TestBuildOrdinalDataScenario(t *testing.T) {
	def := ModuleDefinition{
		LibraryName: "A.DLL",
		Exports: []Export{
			{Name: "bar", Ordinal: 7, OrdinalSet: true, ByOrdinal: true, IsData: true},
		},
	}

	buf, err := Build(def, AMD64)
	require.NoError(t, err)

	firstBody := extractMemberBody(t, buf, 0)
	count := binary.BigEndian.Uint32(firstBody[0:4])
	names := extractNullTerminatedNames(firstBody[4+4*count:])
	require.Contains(t, names, "__imp_bar")
	require.NotContains(t, names, "bar")
}

// TestBuildI386DecorationScenario covers "baz" on I386: the leading
// underscore decoration applies to both the raw symbol and its
// __imp_-prefixed counterpart.
func TestBuildI386DecorationScenario(t *testing.T) {
	def := ModuleDefinition{
		LibraryName: "A.DLL",
		Exports:     []Export{{Name: "baz"}},
	}

	buf, err := Build(def, I386)
	require.NoError(t, err)

	firstBody := extractMemberBody(t, buf, 0)
	count := binary.BigEndian.Uint32(firstBody[0:4])
	names := extractNullTerminatedNames(firstBody[4+4*count:])
	require.Contains(t, names, "__imp__baz")
	require.Contains(t, names, "_baz")
}

// TestBuildEmptyExportsScenario covers an EXPORTS section with no
// entries: the archive still carries the import descriptor and null
// thunk members (a DLL with zero exports can still be linked against,
// degenerate as that is), so exactly those two object members are
// present and only their three symbols appear in the first linker
// member.
func TestBuildEmptyExportsScenario(t *testing.T) {
	def := ModuleDefinition{LibraryName: "A.DLL"}

	buf, err := Build(def, AMD64)
	require.NoError(t, err)

	firstBody := extractMemberBody(t, buf, 0)
	count := binary.BigEndian.Uint32(firstBody[0:4])
	require.Equal(t, uint32(3), count)

	names := extractNullTerminatedNames(firstBody[4+4*count:])
	require.Equal(t, []string{
		"__IMPORT_DESCRIPTOR_A",
		"__NULL_IMPORT_DESCRIPTOR",
		"A_NULL_THUNK_DATA",
	}, names)
}

func TestBuildUnsupportedMachine(t *testing.T) {
	def := ModuleDefinition{LibraryName: "A.DLL"}
	_, err := Build(def, Architecture(255))
	require.ErrorIs(t, err, ErrUnsupportedMachine)
}

func TestBuildDeterministic(t *testing.T) {
	def := ModuleDefinition{
		LibraryName: "A.DLL",
		Exports:     []Export{{Name: "foo"}, {Name: "bar", IsData: true}},
	}

	a, err := Build(def, AMD64)
	require.NoError(t, err)
	b, err := Build(def, AMD64)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
