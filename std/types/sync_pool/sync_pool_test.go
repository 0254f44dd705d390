package sync_pool_test

import (
	"testing"

	"github.com/arcmem/arcmem/std/types/sync_pool"
	"github.com/stretchr/testify/require"
)

type block struct {
	n    int
	name string
}

func TestGetResets(t *testing.T) {
	p := sync_pool.New(
		func() *block { return &block{n: -1} },
		func(b *block) { *b = block{} })

	b := p.Get()
	require.Equal(t, block{}, *b)
	require.Equal(t, uint64(1), p.Made())

	b.n, b.name = 7, "dirty"
	p.Put(b)

	// whether or not the pool kept it, the next value is clean
	b = p.Get()
	require.Equal(t, block{}, *b)
	require.LessOrEqual(t, p.Made(), uint64(2))
}
