package persist_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raidplan/internal/persist"
)

func actionTable() *persist.EnumTable {
	return persist.MustEnumTable("AID", map[string]uint32{
		"AetherialDisruption": 25160,
		"ChthonicFury":        25164,
		"CosmicKiss":          25167,
	})
}

func TestNewEnumTable_RejectsDuplicateValues(t *testing.T) {
	_, err := persist.NewEnumTable("AID", map[string]uint32{"A": 1, "B": 1})
	assert.Error(t, err)
}

func TestNewEnumTable_RejectsEmptyName(t *testing.T) {
	_, err := persist.NewEnumTable("AID", map[string]uint32{"": 1})
	assert.Error(t, err)
}

func TestEnumTable_NilIsEmpty(t *testing.T) {
	var tbl *persist.EnumTable
	_, ok := tbl.Name(1)
	assert.False(t, ok)
	_, ok = tbl.Value("A")
	assert.False(t, ok)
}

func TestParseIdentifier_UnnamedHexRoundTrips(t *testing.T) {
	tbl := actionTable()
	id, err := persist.ParseIdentifier("0x1A2B", tbl)
	require.NoError(t, err)
	assert.Equal(t, persist.FormRaw, id.Form)
	assert.Equal(t, uint32(0x1A2B), id.Value)
	assert.Equal(t, "0x1A2B", persist.FormatIdentifier(id, tbl))
}

func TestParseIdentifier_HexOfNamedValueNormalizesToSymbol(t *testing.T) {
	tbl := actionTable()
	id, err := persist.ParseIdentifier(fmt.Sprintf("0x%X", 25160), tbl)
	require.NoError(t, err)
	assert.Equal(t, persist.FormSymbolic, id.Form)
	assert.Equal(t, "AetherialDisruption", id.Name)
	assert.Equal(t, "AetherialDisruption", persist.FormatIdentifier(id, tbl))
}

func TestParseIdentifier_Symbolic(t *testing.T) {
	id, err := persist.ParseIdentifier("CosmicKiss", actionTable())
	require.NoError(t, err)
	assert.Equal(t, persist.SymbolicID("CosmicKiss", 25167), id)
}

func TestParseIdentifier_UnknownNameSuggests(t *testing.T) {
	_, err := persist.ParseIdentifier("CosmicKis", actionTable())
	require.ErrorIs(t, err, persist.ErrUnknownName)
	assert.Contains(t, err.Error(), `did you mean "CosmicKiss"`)
}

func TestParseIdentifier_MalformedHex(t *testing.T) {
	_, err := persist.ParseIdentifier("0xZZ", actionTable())
	assert.ErrorIs(t, err, persist.ErrMalformedHex)
}

func TestSuggest_NothingClose(t *testing.T) {
	assert.Equal(t, "", persist.Suggest("Zzzzzzzz", []string{"Automatic", "Force"}))
}

func TestPropertyIdentifier_FormatParseRoundTrip(t *testing.T) {
	tbl := actionTable()
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint32().Draw(t, "value")
		text := persist.FormatIdentifier(persist.RawID(v), tbl)
		id, err := persist.ParseIdentifier(text, tbl)
		if err != nil {
			t.Fatalf("parse %q: %v", text, err)
		}
		if id.Value != v {
			t.Fatalf("value %d came back as %d via %q", v, id.Value, text)
		}
		if again := persist.FormatIdentifier(id, tbl); again != text {
			t.Fatalf("re-encoded %q as %q", text, again)
		}
	})
}

func TestMergeEnumTables(t *testing.T) {
	a := persist.MustEnumTable("OID", map[string]uint32{"Boss": 0x33EB, "Add": 0x33EC})
	b := persist.MustEnumTable("OID", map[string]uint32{"Boss": 0x33EB, "Other": 0x4000})
	merged, err := persist.MergeEnumTables("OID", a, nil, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"Add", "Boss", "Other"}, merged.Names())

	clash := persist.MustEnumTable("OID", map[string]uint32{"Boss": 0x9999})
	_, err = persist.MergeEnumTables("OID", a, clash)
	assert.Error(t, err)
}
