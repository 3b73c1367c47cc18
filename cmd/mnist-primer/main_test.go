// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"testing"

	"github.com/gomlx/gomlx/backends"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/mnist-primer/classifier"
)

func init() {
	if _, found := os.LookupEnv(backends.ConfigEnvVar); !found {
		// For testing, use the CPU backend (avoid a GPU if not explicitly requested).
		must.M(os.Setenv(backends.ConfigEnvVar, "xla:cpu"))
	}
}

// TestTrainModel downloads MNIST and trains the default classifier for a
// handful of steps, end to end. It needs network access for the first
// run and an XLA backend, so it is skipped in short mode.
func TestTrainModel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end training test in short mode")
	}
	dataDir := t.TempDir()
	for _, model := range []string{"sequential", "mlp"} {
		ctx := classifier.CreateDefaultContext()
		ctx.SetParam(classifier.ParamNumTrainSteps, 10)
		ctx.SetParam("batch_size", 32)
		ctx.SetParam("eval_batch_size", 100)
		ctx.SetParam("model", model)
		history, err := classifier.TrainModel(ctx, dataDir, "")
		require.NoErrorf(t, err, "failed to train %q for 10 steps", model)
		require.NotEmpty(t, history.Points(), "training must collect metric points")
	}
}

// TestUnknownModel checks the error path of the model registry: it is
// rejected before anything is downloaded or compiled.
func TestUnknownModel(t *testing.T) {
	ctx := classifier.CreateDefaultContext()
	ctx.SetParam("model", "transformer")
	_, err := classifier.TrainModel(ctx, t.TempDir(), "")
	require.ErrorContains(t, err, "unknown model")
}
