package log_test

import (
	"bytes"
	"testing"

	"github.com/arcmem/arcmem/std/log"
	"github.com/stretchr/testify/require"
)

type tag struct{}

func (tag) String() string { return "registry-7" }

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"trace", "DEBUG", "Info", "warn", "ERROR", "fatal", "off"} {
		level, err := log.ParseLevel(s)
		require.NoError(t, err)
		back, err := log.ParseLevel(level.String())
		require.NoError(t, err)
		require.Equal(t, level, back)
	}

	_, err := log.ParseLevel("verbose")
	require.ErrorIs(t, err, log.ErrInvalidLevel)
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := log.NewText(&buf)

	l.Debug(tag{}, "hidden")
	require.Empty(t, buf.String())

	l.Info(tag{}, "Object torn down", "id", 3)
	require.Contains(t, buf.String(), "level=INFO")
	require.Contains(t, buf.String(), "tag=registry-7")
	require.Contains(t, buf.String(), "id=3")

	prev := l.SetLevel(log.LevelTrace)
	require.Equal(t, log.LevelInfo, prev)
	require.True(t, l.Enabled(log.LevelTrace))

	buf.Reset()
	l.Trace(nil, "Retain", "strong", 2)
	require.Contains(t, buf.String(), "level=TRACE")
}

func TestDiscard(t *testing.T) {
	l := log.NewDiscard()
	require.False(t, l.Enabled(log.LevelFatal))
	l.Fatal(nil, "nothing")

	prev := log.SetDefault(l)
	defer log.SetDefault(prev)
	require.Same(t, l, log.Default())
	require.False(t, log.HasTrace())
}
