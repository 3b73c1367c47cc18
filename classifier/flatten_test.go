package classifier

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestFlattenImages(t *testing.T) {
	backend := graphtest.BuildTestBackend()

	// A full MNIST-sized batch: (512, 1, 28, 28) flattens to (512, 784).
	got := ExecOnce(backend, func(g *Graph) *Node {
		images := Zeros(g, shapes.Make(dtypes.Float32, 512, 1, 28, 28))
		return FlattenImages(images)
	})
	require.True(t, got.Shape().Equal(shapes.Make(dtypes.Float32, 512, 784)),
		"got shape %s", got.Shape())

	// Axis order after the batch axis doesn't matter for the size.
	got = ExecOnce(backend, func(g *Graph) *Node {
		images := Zeros(g, shapes.Make(dtypes.Float32, 3, 28, 28, 1))
		return FlattenImages(images)
	})
	require.True(t, got.Shape().Equal(shapes.Make(dtypes.Float32, 3, 784)))

	// Already-flat input is a no-op shape-wise, and values are preserved
	// in row-major order.
	got = ExecOnce(backend, func(g *Graph) *Node {
		return FlattenImages(Const(g, [][]float32{{1, 2}, {3, 4}}))
	})
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, got.Value())

	got = ExecOnce(backend, func(g *Graph) *Node {
		return FlattenImages(Const(g, [][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}}))
	})
	assert.Equal(t, [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}, got.Value())
}
