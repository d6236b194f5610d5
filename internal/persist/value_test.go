package persist_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/persist"
)

func oidTable() *persist.EnumTable {
	return persist.MustEnumTable("OID", map[string]uint32{
		"Boss":   0x33EB,
		"Helper": 0x233C,
	})
}

// mitigationModel returns the model as first shipped; grown appends the options
// added by a later release.
func mitigationModel(grown bool) *strategy.Model {
	m := strategy.NewModel("Mitigation", "Party mitigation", 5)
	m.AddOption(0, strategy.Option{InternalName: "Automatic"})
	m.AddOption(1, strategy.Option{InternalName: "Reprisal", SupportedTargets: strategy.TargetsHostile})
	m.AddOption(2, strategy.Option{InternalName: "Sheltron", SupportedTargets: strategy.TargetsSelf | strategy.TargetsParty})
	if grown {
		m.AddOption(3, strategy.Option{InternalName: "Bulwark", SupportedTargets: strategy.TargetsSelf})
		m.AddOption(4, strategy.Option{InternalName: "Intervention", SupportedTargets: strategy.TargetsParty})
	}
	return m
}

func TestValue_OptionByNameSurvivesGrownModel(t *testing.T) {
	before := mitigationModel(false)
	v := strategy.Value{Option: 2, Target: strategy.TargetPartyWithLowestHP, TargetParam: 1, PriorityOverride: strategy.PriorityOf(4)}
	data, err := persist.EncodeValue(before, nil, v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Option":"Sheltron"`)

	after := mitigationModel(true)
	got, errs, err := persist.DecodeValue(after, nil, data, "$")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, "Sheltron", got.OptionName(after))
	assert.Equal(t, v, got)
}

func TestValue_LegacyIntegerOption(t *testing.T) {
	m := mitigationModel(false)
	got, errs, err := persist.DecodeValue(m, nil, json.RawMessage(`{"Option":1}`), "$")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 1, got.Option)

	_, errs, err = persist.DecodeValue(m, nil, json.RawMessage(`{"Option":9}`), "$")
	require.NoError(t, err)
	assert.Len(t, errs, 1)
}

func TestValue_UnknownOptionIsIsolated(t *testing.T) {
	m := mitigationModel(false)
	got, errs, err := persist.DecodeValue(m, nil, json.RawMessage(`{"Option":"Reprisl","Comment":"pull 3"}`), "$")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "$.Option", errs[0].Path)
	assert.ErrorIs(t, errs[0], persist.ErrUnknownName)
	assert.Contains(t, errs[0].Error(), `did you mean "Reprisal"`)
	assert.Equal(t, 0, got.Option)
	assert.Equal(t, "pull 3", got.Comment)
}

func TestValue_UnsetPriorityOmitted(t *testing.T) {
	data, err := persist.EncodeValue(mitigationModel(false), nil, strategy.Value{})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "PriorityOverride")
	assert.NotContains(t, string(data), "Comment")
}

func TestValue_NaNPriorityMeansUnset(t *testing.T) {
	got, errs, err := persist.DecodeValue(mitigationModel(false), nil, json.RawMessage(`{"PriorityOverride":"NaN"}`), "$")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.False(t, got.PriorityOverride.IsSet())
}

func TestValue_EnemyByOIDParamPrefersSymbol(t *testing.T) {
	m := mitigationModel(false)
	v := strategy.Value{Option: 1, Target: strategy.TargetEnemyByOID, TargetParam: 0x33EB}
	data, err := persist.EncodeValue(m, oidTable(), v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"TargetParam":"Boss"`)

	got, errs, err := persist.DecodeValue(m, oidTable(), data, "$")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, v, got)
}

func TestValue_EnemyByOIDUnnamedParamStaysHex(t *testing.T) {
	m := mitigationModel(false)
	got, errs, err := persist.DecodeValue(m, oidTable(), json.RawMessage(`{"Option":"Reprisal","Target":"EnemyByOID","TargetParam":"0x1A2B"}`), "$")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 0x1A2B, got.TargetParam)

	data, err := persist.EncodeValue(m, oidTable(), got)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"TargetParam":"0x1A2B"`)
}

func TestValue_UnknownTargetSuggests(t *testing.T) {
	_, errs, err := persist.DecodeValue(mitigationModel(false), nil, json.RawMessage(`{"Target":"Sel"}`), "$")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `did you mean "Self"`)
}
