package database

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foo struct {
	V int
}

func TestSliceToSlicePtrs(t *testing.T) {
	n := 16
	a := make([]foo, n)
	for i := 0; i < n; i++ {
		a[i] = foo{V: i}
	}
	b := SliceToSlicePtrs(a).([]*foo)
	for i := 0; i < len(a); i++ {
		assert.Equal(t, a[i], *b[i])
	}
}

func TestSlicePtrsToSlice(t *testing.T) {
	n := 16
	a := make([]*foo, n)
	for i := 0; i < n; i++ {
		a[i] = &foo{V: i}
	}
	b := SlicePtrsToSlice(a).([]foo)
	for i := 0; i < len(a); i++ {
		assert.Equal(t, *a[i], b[i])
	}
}

func TestBigIntMeddler(t *testing.T) {
	m := BigIntMeddler{}
	v, _ := new(big.Int).SetString("123456789000000000000000000", 10)
	saved, err := m.PreWrite(v)
	require.NoError(t, err)
	assert.Equal(t, "123456789000000000000000000", saved)

	target, err := m.PreRead(nil)
	require.NoError(t, err)
	*target.(*string) = saved.(string)
	var field *big.Int
	require.NoError(t, m.PostRead(&field, target))
	assert.Equal(t, 0, v.Cmp(field))

	*target.(*string) = "not a number"
	assert.Error(t, m.PostRead(&field, target))
}

func TestBigIntNullMeddler(t *testing.T) {
	m := BigIntNullMeddler{}
	var nilInt *big.Int
	saved, err := m.PreWrite(nilInt)
	require.NoError(t, err)
	assert.Nil(t, saved)

	var field *big.Int
	var raw interface{}
	require.NoError(t, m.PostRead(&field, &raw))
	assert.Nil(t, field)

	raw = []byte("42")
	require.NoError(t, m.PostRead(&field, &raw))
	assert.Equal(t, int64(42), field.Int64())
}

func TestAPIConnectionController(t *testing.T) {
	acc := NewAPIConnectionController(1, 10*time.Millisecond)
	cancel, err := acc.Acquire()
	require.NoError(t, err)
	defer cancel()

	// The only connection is taken
	cancel2, err := acc.Acquire()
	cancel2()
	assert.Error(t, err)

	acc.Release()
	cancel3, err := acc.Acquire()
	defer cancel3()
	require.NoError(t, err)
	acc.Release()
}
