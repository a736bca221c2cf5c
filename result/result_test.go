package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-bridge/errors"
)

func TestResult_Accessors(t *testing.T) {
	ok := Success(3.14)
	assert.True(t, ok.IsOK())
	v, isOK := ok.Value()
	assert.True(t, isOK)
	assert.Equal(t, 3.14, v)
	_, isErr := ok.Error()
	assert.False(t, isErr)

	fail := Failure[float64]()
	assert.False(t, fail.IsOK())
	v, isOK = fail.Value()
	assert.False(t, isOK)
	assert.Zero(t, v)
	_, isErr = fail.Error()
	assert.True(t, isErr)

	var zero Result[int, string]
	assert.False(t, zero.IsOK())
}

func TestResult_Unwrap(t *testing.T) {
	v, err := Success(3.14).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 3.14, v)

	_, err = Success(3.14).UnwrapErr()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindInactiveMember))

	v, err = Failure[float64]().Unwrap()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindInactiveMember))
	assert.Zero(t, v)

	code, err := Err[uint8](uint32(7)).UnwrapErr()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), code)
}

func TestResult_Match(t *testing.T) {
	var got []string
	Ok[int, string](7).Match(
		func(int) { got = append(got, "ok") },
		func(string) { got = append(got, "err") },
	)
	Err[int]("boom").Match(
		func(int) { got = append(got, "ok") },
		func(e string) { got = append(got, e) },
	)
	Ok[int, string](1).Match(nil, nil)
	assert.Equal(t, []string{"ok", "boom"}, got)
}

func TestFold(t *testing.T) {
	describe := func(r Result[float64, Void]) string {
		return Fold(r,
			func(float64) string { return "number" },
			func(Void) string { return "not a number" })
	}
	assert.Equal(t, "number", describe(Success(1.0)))
	assert.Equal(t, "not a number", describe(Failure[float64]()))
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "Ok(3.14)", Success(3.14).String())
	assert.Equal(t, "Err", Failure[float64]().String())
	assert.Equal(t, "Err(boom)", Err[int]("boom").String())
}
