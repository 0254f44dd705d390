package optional_test

import (
	"testing"

	"github.com/arcmem/arcmem/std/types/optional"
	"github.com/stretchr/testify/require"
)

func TestOptional(t *testing.T) {
	option := optional.Some[int](42)
	require.True(t, option.IsSet())
	val, ok := option.Get()
	require.Equal(t, 42, val)
	require.True(t, ok)
	require.Equal(t, 42, option.Unwrap())
	require.Equal(t, 42, option.GetOr(5))
	require.Equal(t, 42, option.GetOrElse(func() int { return 5 }))

	option = optional.None[int]()
	require.False(t, option.IsSet())
	val, ok = option.Get()
	require.Equal(t, 0, val)
	require.False(t, ok)
	require.Panics(t, func() { option.Unwrap() })
	require.Equal(t, 5, option.GetOr(5))
	require.Equal(t, 6, option.GetOrElse(func() int { return 6 }))

	option.Set(45)
	require.Equal(t, 45, option.Unwrap())

	option.Unset()
	require.False(t, option.IsSet())
	val, _ = option.Get()
	require.Equal(t, 0, val)
}

func TestIfSetAndMap(t *testing.T) {
	called := 0
	require.True(t, optional.Some("room").IfSet(func(s string) {
		require.Equal(t, "room", s)
		called++
	}))
	require.False(t, optional.None[string]().IfSet(func(string) { called++ }))
	require.Equal(t, 1, called)

	n := optional.Map(optional.Some("505"), func(s string) int { return len(s) })
	require.Equal(t, 3, n.Unwrap())
	require.False(t, optional.Map(optional.None[string](), func(s string) int { return 1 }).IsSet())
}
