package utils

import (
	"testing"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/stretchr/testify/require"
)

var testT *testing.T

func SetT(t *testing.T) {
	testT = t
}

func NoErr[T any](v T, err error) T {
	require.NoError(testT, err)
	return v
}

func Err[T any](_ T, err error) error {
	require.Error(testT, err)
	return err
}

// Fatal runs fn, which must abort with an arc fatal error, and returns it.
func Fatal(fn func()) (fe *arc.FatalError) {
	defer func() {
		r := recover()
		require.NotNil(testT, r, "expected a fatal error")
		var ok bool
		fe, ok = arc.AsFatal(r)
		require.True(testT, ok, "unexpected panic: %v", r)
	}()
	fn()
	return nil
}
