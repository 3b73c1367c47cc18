package classifier

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/mnist-primer/mnist"
)

// buildLogits runs one forward pass of modelFn on a zeroed batch of
// images and returns the logits tensor.
func buildLogits(t *testing.T, modelFn train.ModelFn, batchSize int) *tensors.Tensor {
	t.Helper()
	backend := graphtest.BuildTestBackend()
	ctx := CreateDefaultContext()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, images *Node) *Node {
		return modelFn(ctx, nil, []*Node{images})[0]
	})
	images := tensors.FromShape(shapes.Make(dtypes.Float32, batchSize, mnist.Height, mnist.Width, 1))
	return exec.Call(images)[0]
}

func TestSequential(t *testing.T) {
	logits := buildLogits(t, Sequential, 7)
	require.True(t, logits.Shape().Equal(shapes.Make(dtypes.Float32, 7, mnist.NumClasses)),
		"got logits shaped %s", logits.Shape())
}

func TestMLPForward(t *testing.T) {
	logits := buildLogits(t, NewMLP().Forward, 7)
	require.True(t, logits.Shape().Equal(shapes.Make(dtypes.Float32, 7, mnist.NumClasses)),
		"got logits shaped %s", logits.Shape())

	// Deeper explicit topology still projects to NumClasses logits.
	deep := &MLP{HiddenDims: []int{128, 64}, Activation: activations.TypeTanh, DropoutRate: 0.5}
	logits = buildLogits(t, deep.Forward, 3)
	require.True(t, logits.Shape().Equal(shapes.Make(dtypes.Float32, 3, mnist.NumClasses)))

	// No hidden layers degenerates to logistic regression on the pixels.
	logistic := &MLP{HiddenDims: []int{}}
	logits = buildLogits(t, logistic.Forward, 3)
	require.True(t, logits.Shape().Equal(shapes.Make(dtypes.Float32, 3, mnist.NumClasses)))
}

func TestModelsRegistry(t *testing.T) {
	assert.Contains(t, Models, "sequential")
	assert.Contains(t, Models, "mlp")
}

func TestCreateDefaultContext(t *testing.T) {
	ctx := CreateDefaultContext()
	assert.Equal(t, "sequential", context.GetParamOr(ctx, "model", ""))
	assert.Equal(t, 256, context.GetParamOr(ctx, ParamHiddenDim, 0))
	assert.Greater(t, context.GetParamOr(ctx, ParamNumTrainSteps, 0), 0)
}

func TestDatasetsConfigFromContext(t *testing.T) {
	ctx := CreateDefaultContext()
	config := DatasetsConfigFromContext(ctx, "/tmp/mnist")
	assert.Equal(t, 512, config.BatchSize)
	assert.Equal(t, 1000, config.EvalBatchSize)
	assert.True(t, config.UseParallelism)
	assert.Equal(t, 32, config.BufferSize)

	// Every knob is a context setting.
	ctx.SetParams(map[string]any{
		"batch_size":      64,
		"eval_batch_size": 128,
		"use_parallelism": false,
		"buffer_size":     4,
	})
	config = DatasetsConfigFromContext(ctx, "/tmp/mnist")
	assert.Equal(t, 64, config.BatchSize)
	assert.Equal(t, 128, config.EvalBatchSize)
	assert.False(t, config.UseParallelism)
	assert.Equal(t, 4, config.BufferSize)
}
