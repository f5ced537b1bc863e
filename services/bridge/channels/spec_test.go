package channels

import (
	"errors"
	"testing"

	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumericPrefix(t *testing.T) {
	t.Parallel()

	t.Run("should extract the leading float", func(t *testing.T) {
		t.Parallel()

		replies := map[string]float64{
			"12.345V\r\n": 12.345,
			"0.512A\n":    0.512,
			"30.000V":     30,
			" 1.5V":       1.5,
			"-0.002A\r\n": -0.002,
			"5":           5,
		}
		for reply, expected := range replies {
			f, err := ParseNumericPrefix(reply)
			require.NoError(t, err, reply)
			assert.Equal(t, expected, f, reply)
		}
	})
	t.Run("no numeric prefix should error", func(t *testing.T) {
		t.Parallel()

		for _, reply := range []string{"V", "", "\r\n", "ERR", ".V"} {
			_, err := ParseNumericPrefix(reply)
			assert.True(t, errors.Is(err, ErrParse), reply)
		}
	})
}

func TestParseFlagAt(t *testing.T) {
	t.Parallel()

	i, err := ParseFlagAt("01001100\r\n", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), i)

	i, err = ParseFlagAt("01001000", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), i)

	_, err = ParseFlagAt("0100", 5)
	assert.True(t, errors.Is(err, ErrParse))

	_, err = ParseFlagAt("01001x00", 5)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestChannelSpec_Parse(t *testing.T) {
	t.Parallel()

	t.Run("string channel trims trailing whitespace", func(t *testing.T) {
		t.Parallel()

		spec := ChannelSpec{ID: "IDN", Rule: RulePassThrough}
		v, err := spec.Parse("GW INSTEK,GPD-4303S,SN:123,V1.00\r\n")
		require.NoError(t, err)
		assert.Equal(t, common.StringValue("GW INSTEK,GPD-4303S,SN:123,V1.00"), v)
	})
	t.Run("scalar channel", func(t *testing.T) {
		t.Parallel()

		spec := ChannelSpec{ID: "CH1:VOLTAGE", Rule: RuleNumericPrefix}
		v, err := spec.Parse("12.345V\r\n")
		require.NoError(t, err)
		assert.Equal(t, common.ScalarValue(12.345), v)

		_, err = spec.Parse("garbage")
		assert.True(t, errors.Is(err, ErrParse))
	})
	t.Run("flag channel", func(t *testing.T) {
		t.Parallel()

		spec := ChannelSpec{ID: "OUTSTATUS", Rule: RuleFlagAt, FlagOffset: 5}
		v, err := spec.Parse("00000100")
		require.NoError(t, err)
		assert.Equal(t, common.FlagValue(1), v)
	})
}

func TestChannelSpec_Write(t *testing.T) {
	t.Parallel()

	spec := ChannelSpec{ID: "OUT", WriteCommand: "OUT%d", AllowedValues: []int64{0, 1}}
	assert.True(t, spec.Writable())
	assert.True(t, spec.Validate(0))
	assert.True(t, spec.Validate(1))
	assert.False(t, spec.Validate(2))
	assert.False(t, spec.Validate(-1))
	assert.Equal(t, "OUT1", spec.FormatWrite(1))

	readOnly := ChannelSpec{ID: "IDN"}
	assert.False(t, readOnly.Writable())
	assert.True(t, readOnly.OnDemand())
}
