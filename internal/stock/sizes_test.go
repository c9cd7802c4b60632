package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMapShape(t *testing.T) {
	s, err := Decode([]byte(`{"XS": 10, "S": 5}`))
	require.NoError(t, err)

	assert.Equal(t, 10, s.Available("XS"))
	assert.Equal(t, 5, s.Available("S"))
	assert.Equal(t, 0, s.Available("XL"), "absent size reads as zero")
}

func TestDecodeListShape(t *testing.T) {
	s, err := Decode([]byte(`[{"size":"XS","quantity":10},{"size":"S","quantity":5}]`))
	require.NoError(t, err)

	assert.Equal(t, 10, s.Available("XS"))
	assert.Equal(t, 5, s.Available("S"))
	assert.Equal(t, 0, s.Available("M"))
}

func TestDecodeFailsClosed(t *testing.T) {
	for _, raw := range []string{``, `42`, `"S"`, `{"S":"ten"}`, `[{"size":"S","quantity":"x"}]`, `null`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedStock, "raw=%s", raw)
	}
}

func TestTryDecrement(t *testing.T) {
	s, err := Decode([]byte(`{"S": 5}`))
	require.NoError(t, err)

	n, err := s.TryDecrement("S", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, s.Available("S"))
}

func TestTryDecrementShortfallLeavesStockUnchanged(t *testing.T) {
	s, err := Decode([]byte(`{"S": 2}`))
	require.NoError(t, err)

	_, err = s.TryDecrement("S", 3)
	var short *InsufficientError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "S", short.Size)
	assert.Equal(t, 2, short.Available)
	assert.Equal(t, 3, short.Requested)
	assert.Equal(t, 2, s.Available("S"), "failed decrement must not mutate")
}

func TestTryDecrementAbsentSize(t *testing.T) {
	s, err := Decode([]byte(`{"S": 5}`))
	require.NoError(t, err)

	_, err = s.TryDecrement("XL", 1)
	var short *InsufficientError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 0, short.Available)
}

func TestIncrementCreatesAbsentSize(t *testing.T) {
	s, err := Decode([]byte(`{"S": 1}`))
	require.NoError(t, err)

	assert.Equal(t, 4, s.Increment("M", 4))
	assert.Equal(t, 5, s.Increment("M", 1))
}

func TestEncodeRoundTripsShape(t *testing.T) {
	m, err := Decode([]byte(`{"S": 5}`))
	require.NoError(t, err)
	_, err = m.TryDecrement("S", 2)
	require.NoError(t, err)
	enc, err := m.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"S": 3}`, string(enc))
	assert.Equal(t, byte('{'), enc[0])

	l, err := Decode([]byte(`[{"size":"XS","quantity":10},{"size":"S","quantity":5}]`))
	require.NoError(t, err)
	l.Increment("S", 2)
	enc, err = l.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"size":"XS","quantity":10},{"size":"S","quantity":7}]`, string(enc))
	assert.Equal(t, byte('['), enc[0])
}
