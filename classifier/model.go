// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package classifier

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/gonb/plotly"

	"github.com/gomlx/mnist-primer/mnist"
)

// Hyperparameter names used by the models in this package, read from the
// context with context.GetParamOr.
const (
	// ParamHiddenDim is the width of the hidden dense layer.
	ParamHiddenDim = "hidden_dim"

	// ParamNumTrainSteps is how many batches TrainModel runs.
	ParamNumTrainSteps = "train_steps"

	// ParamNumCheckpoints is how many checkpoints to keep.
	ParamNumCheckpoints = "num_checkpoints"
)

// Sequential is the classifier written as a fixed stack of layers in one
// graph function: flatten, a hidden dense layer with a ReLU, and a dense
// projection to one logit per digit.
//
// It implements train.ModelFn: inputs is one tensor shaped
// [batchSize, 28, 28, 1], and it returns one logits tensor shaped
// [batchSize, 10].
func Sequential(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec
	ctx = ctx.In("model")
	hiddenDim := context.GetParamOr(ctx, ParamHiddenDim, 256)

	hidden := FlattenImages(inputs[0])
	hidden = layers.DenseWithBias(ctx.In("hidden"), hidden, hiddenDim)
	hidden = activations.Relu(hidden)
	logits := layers.DenseWithBias(ctx.In("logits"), hidden, mnist.NumClasses)
	return []*Node{logits}
}

var _ train.ModelFn = Sequential

// Models maps the model names accepted by TrainModel to their graph
// building functions.
var Models = map[string]train.ModelFn{
	"sequential": Sequential,
	"mlp":        NewMLP().Forward,
}

// CreateDefaultContext returns a context with the default
// hyperparameters for both classifiers. Flags or notebook cells override
// them with ui/commandline's context settings.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		"model":             "sequential",
		ParamHiddenDim:      256,
		ParamNumTrainSteps:  2000,
		ParamNumCheckpoints: 3,

		"batch_size":      512,
		"eval_batch_size": 1000,

		// Parallel prefetching of batches.
		"use_parallelism": true,
		"buffer_size":     32,

		// "plots" triggers collection of intermediary eval metrics and,
		// when running under GoNB, live Plotly charts.
		plotly.ParamPlots: false,

		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: 1e-3,

		layers.ParamDropoutRate: 0.0,
	})
	return ctx
}
