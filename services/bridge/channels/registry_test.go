package channels

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("duplicate identifiers should error", func(t *testing.T) {
		t.Parallel()

		r, err := NewRegistry([]ChannelSpec{
			{ID: "A", Query: "A?"},
			{ID: "A", Query: "B?"},
		})
		assert.Nil(t, r)
		assert.True(t, errors.Is(err, ErrDuplicateChannel))
	})
	t.Run("empty identifier should error", func(t *testing.T) {
		t.Parallel()

		_, err := NewRegistry([]ChannelSpec{{Query: "A?"}})
		assert.True(t, errors.Is(err, ErrInvalidChannel))
	})
	t.Run("channel without query nor write command should error", func(t *testing.T) {
		t.Parallel()

		_, err := NewRegistry([]ChannelSpec{{ID: "A"}})
		assert.True(t, errors.Is(err, ErrInvalidChannel))
	})
	t.Run("writable channel without allowed values should error", func(t *testing.T) {
		t.Parallel()

		_, err := NewRegistry([]ChannelSpec{{ID: "OUT", WriteCommand: "OUT%d"}})
		assert.True(t, errors.Is(err, ErrInvalidChannel))
	})
	t.Run("should keep order", func(t *testing.T) {
		t.Parallel()

		r, err := NewRegistry([]ChannelSpec{
			{ID: "B", Query: "B?"},
			{ID: "A", Query: "A?"},
		})
		require.NoError(t, err)
		assert.False(t, r.IsInterfaceNil())
		assert.Equal(t, 2, r.Len())
		assert.Equal(t, "B", r.All()[0].ID)
		assert.Equal(t, "A", r.All()[1].ID)

		spec, found := r.Get("A")
		assert.True(t, found)
		assert.Equal(t, "A?", spec.Query)

		_, found = r.Get("C")
		assert.False(t, found)
	})
}

func TestNewGPD4303SRegistry(t *testing.T) {
	t.Parallel()

	r := NewGPD4303SRegistry()
	assert.Equal(t, 3+4*4, r.Len())

	out, found := r.Get("OUT")
	require.True(t, found)
	assert.True(t, out.Writable())
	assert.False(t, out.Metric)

	idn, found := r.Get("IDN")
	require.True(t, found)
	assert.True(t, idn.OnDemand())
	assert.False(t, idn.Metric)

	voltage, found := r.Get("CH2:VOLTAGE")
	require.True(t, found)
	assert.Equal(t, "VOUT2?", voltage.Query)
	assert.Equal(t, "V", voltage.Unit)
	assert.True(t, voltage.Metric)
	assert.False(t, voltage.OnDemand())

	iset, found := r.Get("CH4:ISET")
	require.True(t, found)
	assert.Equal(t, "A", iset.Unit)
	assert.True(t, iset.OnDemand())

	numWritable := 0
	for _, spec := range r.All() {
		if spec.Writable() {
			numWritable++
		}
	}
	assert.Equal(t, 1, numWritable)
}
