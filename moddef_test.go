package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadModuleDefinitionMinimal(t *testing.T) {
	def, err := ReadModuleDefinition("LIBRARY A.DLL\nEXPORTS\n    foo\n")
	require.NoError(t, err)
	require.Equal(t, "A.DLL", def.LibraryName)
	require.Len(t, def.Exports, 1)
	require.Equal(t, "foo", def.Exports[0].Name)
	require.False(t, def.Exports[0].ByOrdinal)
	require.False(t, def.Exports[0].IsData)
}

func TestReadModuleDefinitionOrdinalData(t *testing.T) {
	def, err := ReadModuleDefinition("LIBRARY A.DLL\nEXPORTS\n    bar @7 NONAME DATA\n")
	require.NoError(t, err)
	require.Len(t, def.Exports, 1)
	export := def.Exports[0]
	require.Equal(t, "bar", export.Name)
	require.True(t, export.ByOrdinal)
	require.True(t, export.OrdinalSet)
	require.Equal(t, uint16(7), export.Ordinal)
	require.True(t, export.IsData)
}

func TestReadModuleDefinitionAlias(t *testing.T) {
	def, err := ReadModuleDefinition("LIBRARY A.DLL\nEXPORTS\n    foo = foo_impl\n")
	require.NoError(t, err)
	require.Equal(t, "foo_impl", def.Exports[0].ImportedName)
	require.Equal(t, "foo_impl", def.Exports[0].effectiveImportedName())
}

func TestReadModuleDefinitionEmptyExports(t *testing.T) {
	def, err := ReadModuleDefinition("LIBRARY A.DLL\nEXPORTS\n")
	require.NoError(t, err)
	require.Empty(t, def.Exports)
}

func TestReadModuleDefinitionCommentsAndBlankLines(t *testing.T) {
	def, err := ReadModuleDefinition("; comment\nLIBRARY A.DLL\n\nEXPORTS\n; another comment\n    foo\n")
	require.NoError(t, err)
	require.Equal(t, "A.DLL", def.LibraryName)
	require.Len(t, def.Exports, 1)
}

func TestReadModuleDefinitionNonameWithoutOrdinalFails(t *testing.T) {
	_, err := ReadModuleDefinition("LIBRARY A.DLL\nEXPORTS\n    bar NONAME\n")
	require.ErrorIs(t, err, ErrInvalidExport)
}

func TestReadModuleDefinitionMissingLibraryName(t *testing.T) {
	_, err := ReadModuleDefinition("LIBRARY\nEXPORTS\n    foo\n")
	require.Error(t, err)
}

func TestReadModuleDefinitionUnrecognizedAttribute(t *testing.T) {
	_, err := ReadModuleDefinition("LIBRARY A.DLL\nEXPORTS\n    foo BOGUS\n")
	require.Error(t, err)
}

func TestReadModuleDefinitionNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"\x00\x01\x02",
		"LIBRARY",
		"EXPORTS\nEXPORTS\nEXPORTS",
		"LIBRARY A\nEXPORTS\n@@@\n",
		string(make([]byte, 1024)),
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("ReadModuleDefinition panicked on %q: %v", in, r)
				}
			}()
			_, _ = ReadModuleDefinition(in)
		}()
	}
}
