package gradients

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

// parabola is f(x) = (x-3)^2 + 1, minimum at x=3.
func parabola(x *Node) *Node {
	d := AddScalar(x, -3)
	return AddScalar(Mul(d, d), 1)
}

func TestValueAndGrad(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	values, grads := ValueAndGrad(backend, parabola, []float64{0, 3, 5})

	// f(0)=10, f(3)=1, f(5)=5.
	assert.InDeltaSlice(t, []float64{10, 1, 5}, values, 1e-6)
	// f'(x) = 2(x-3): f'(0)=-6, f'(3)=0, f'(5)=4.
	assert.InDeltaSlice(t, []float64{-6, 0, 4}, grads, 1e-6)
}

func TestDescend(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	xs, values := Descend(backend, parabola, 0, 0.1, 50)
	require.Len(t, xs, 51)
	require.Len(t, values, 51)

	// Every step of gradient descent on a convex function with a small
	// enough learning rate decreases the loss.
	for i := 1; i < len(values); i++ {
		require.LessOrEqualf(t, values[i], values[i-1], "step %d increased the loss", i)
	}

	// With lr=0.1, x converges to the minimum at 3 and f to 1.
	assert.InDelta(t, 3.0, xs[len(xs)-1], 1e-3)
	assert.InDelta(t, 1.0, values[len(values)-1], 1e-3)
}

func TestGradOfNonScalar(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	err := GradOfNonScalar(backend)
	require.Error(t, err, "gradient of a non-scalar output must be rejected")
	assert.Contains(t, err.Error(), "scalar")
}
