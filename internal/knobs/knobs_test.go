package knobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMixedKnobs(t *testing.T) {
	pairs, err := Parse([]byte(`{"1":"cubic","2":"1/2","3":"4,50"}`))
	require.NoError(t, err)
	require.Equal(t, []Pair{
		{ID: CCAlgorithm, Value: 0},
		{ID: StartupRTTFactor, Value: 102},
		{ID: AutoBackgroundMode, Value: 450},
	}, pairs)
}

func TestParseSortsByIDThenValue(t *testing.T) {
	pairs, err := Parse([]byte(`{"5":true,"2":3,"1":7}`))
	require.NoError(t, err)
	require.Equal(t, []ID{1, 2, 5}, []ID{pairs[0].ID, pairs[1].ID, pairs[2].ID})
}

func TestParseBoolAndIntNormalizeToU64(t *testing.T) {
	pairs, err := Parse([]byte(`{"42":true,"43":17}`))
	require.NoError(t, err)
	byID := map[ID]uint64{}
	for _, p := range pairs {
		byID[p.ID] = p.Value
	}
	require.Equal(t, uint64(1), byID[42])
	require.Equal(t, uint64(17), byID[43])
}

func TestParseRejectsNonObjectRoot(t *testing.T) {
	_, err := Parse([]byte(`[1,2,3]`))
	require.Error(t, err)
}

func TestParseRejectsNonIntegerKey(t *testing.T) {
	_, err := Parse([]byte(`{"not-a-number":1}`))
	require.Error(t, err)
}

func TestParseRejectsUnknownCCAlgorithm(t *testing.T) {
	_, err := Parse([]byte(`{"1":"made-up-algorithm"}`))
	require.Error(t, err)
}

func TestParseRejectsOutOfRangeFraction(t *testing.T) {
	_, err := Parse([]byte(`{"2":"0/5"}`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"2":"100/5"}`))
	require.Error(t, err)
}

func TestParseRejectsOutOfRangeBackgroundMode(t *testing.T) {
	_, err := Parse([]byte(`{"3":"8,50"}`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"3":"4,10"}`))
	require.Error(t, err)
}

func TestParseRejectsStringForUnknownKnob(t *testing.T) {
	_, err := Parse([]byte(`{"999":"some-string"}`))
	require.Error(t, err)
}
