// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package classifier builds and trains MNIST digit classifiers.
//
// The same MLP is defined twice on purpose: once as a plain graph
// function chaining layers (Sequential), the beginner's fixed-topology
// stack, and once as a Module value with explicit fields (MLP), the
// object-oriented style that scales to configurable models. Both are
// train.ModelFn compatible and interchangeable in TrainModel.
package classifier

import (
	. "github.com/gomlx/gomlx/graph"
)

// FlattenImages collapses all axes after the batch axis into one:
// a [batchSize, d1, ..., dn] batch becomes [batchSize, d1*...*dn].
// An MNIST batch [batchSize, 28, 28, 1] becomes [batchSize, 784],
// which is what a dense layer consumes.
//
// The input must have rank >= 1; the framework panics otherwise.
func FlattenImages(images *Node) *Node {
	batchSize := images.Shape().Dimensions[0]
	return Reshape(images, batchSize, -1)
}
