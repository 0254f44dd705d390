package utils_test

import (
	"testing"

	"github.com/arcmem/arcmem/std/utils"
	"github.com/stretchr/testify/require"
)

func TestIf(t *testing.T) {
	require.Equal(t, "strong", utils.If(true, "strong", "weak"))
	require.Equal(t, 0, utils.If(false, 1, 0))
}
