// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package classifier

import (
	"fmt"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"

	"github.com/gomlx/mnist-primer/mnist"
)

// MLP is the same classifier as Sequential, restructured as a value with
// explicit configuration: layer sizes, activation and dropout are fields
// instead of being baked into one function. Its Forward method is a
// train.ModelFn, so an MLP plugs into the trainer exactly like
// Sequential does.
//
// The variables (weights) still live in the context, scoped under the
// layer names -- the struct holds topology, not parameters.
type MLP struct {
	// HiddenDims of each hidden layer, in order. An empty slice makes
	// the model logistic regression on the raw pixels.
	HiddenDims []int

	// Activation applied after each hidden layer.
	Activation activations.Type

	// DropoutRate after each hidden activation. Zero disables dropout;
	// negative falls back to the layers.ParamDropoutRate context param.
	DropoutRate float64
}

// NewMLP returns an MLP with the topology used throughout the lessons:
// one hidden layer of ParamHiddenDim (default 256) units with ReLU.
// The hidden width is resolved from the context at graph building time,
// so a checkpointed "hidden_dim" is honored.
func NewMLP() *MLP {
	return &MLP{
		HiddenDims:  nil, // Resolved from context in Forward.
		Activation:  activations.TypeRelu,
		DropoutRate: -1,
	}
}

// Forward builds the model graph for one batch of images, shaped
// [batchSize, 28, 28, 1], returning logits shaped [batchSize, 10].
// It implements train.ModelFn.
func (m *MLP) Forward(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec
	ctx = ctx.In("model")

	hiddenDims := m.HiddenDims
	if hiddenDims == nil {
		hiddenDims = []int{context.GetParamOr(ctx, ParamHiddenDim, 256)}
	}
	dropoutRate := m.DropoutRate
	if dropoutRate < 0 {
		dropoutRate = context.GetParamOr(ctx, layers.ParamDropoutRate, 0.0)
	}

	hidden := FlattenImages(inputs[0])
	for i, dim := range hiddenDims {
		layerCtx := ctx.In(fmt.Sprintf("hidden_%d", i))
		hidden = layers.DenseWithBias(layerCtx, hidden, dim)
		hidden = activations.Apply(m.Activation, hidden)
		if dropoutRate > 0 {
			hidden = layers.DropoutStatic(layerCtx, hidden, dropoutRate)
		}
	}
	logits := layers.DenseWithBias(ctx.In("logits"), hidden, mnist.NumClasses)
	return []*Node{logits}
}
