// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package classifier

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/gomlx/ui/gonb/plotly"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/mnist-primer/mnist"
	"github.com/gomlx/mnist-primer/plots"
)

// Parameters that describe the run, not the model: excluded from
// checkpoints so a saved model can be trained further or evaluated with
// different settings.
var excludeFromCheckpoints = []string{ParamNumTrainSteps, ParamNumCheckpoints, plotly.ParamPlots}

// DatasetsConfigFromContext builds the mnist.Config from the
// hyperparameters in the context.
func DatasetsConfigFromContext(ctx *context.Context, dataDir string) *mnist.Config {
	return &mnist.Config{
		DataDir:        data.ReplaceTildeInDir(dataDir),
		BatchSize:      context.GetParamOr(ctx, "batch_size", 512),
		EvalBatchSize:  context.GetParamOr(ctx, "eval_batch_size", 1000),
		UseParallelism: context.GetParamOr(ctx, "use_parallelism", true),
		BufferSize:     context.GetParamOr(ctx, "buffer_size", 32),
		Dtype:          dtypes.Float32,
	}
}

// TrainModel trains the classifier selected by the context parameter
// "model" ("sequential" or "mlp") for the configured number of steps,
// evaluating and reporting at the end. If checkpointDir is not empty the
// model is periodically saved there, and training resumes from the saved
// global step.
//
// It returns the training history with the collected metric points.
func TrainModel(ctx *context.Context, dataDir, checkpointDir string) (history *plots.History, err error) {
	err = exceptions.TryCatch[error](func() {
		history = trainModel(ctx, dataDir, checkpointDir)
	})
	return
}

func trainModel(ctx *context.Context, dataDir, checkpointDir string) *plots.History {
	modelName := context.GetParamOr(ctx, "model", "sequential")
	modelFn, found := Models[modelName]
	if !found {
		exceptions.Panicf("unknown model %q, available models: %q", modelName, modelNames())
	}

	dataDir = data.ReplaceTildeInDir(dataDir)
	if !data.FileExists(dataDir) {
		must.M(os.MkdirAll(dataDir, 0777))
	}
	must.M(mnist.Download(dataDir))

	backend := backends.New()
	klog.V(1).Infof("Backend %q: %s", backend.Name(), backend.Description())

	shuffle := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	dsConfig := DatasetsConfigFromContext(ctx, dataDir)
	trainDS, trainEvalDS, testEvalDS := mnist.CreateDatasets(dsConfig, shuffle)

	// Accuracy over a moving window during training, plain mean accuracy
	// during evaluation.
	movingAccuracy := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)
	meanAccuracy := metrics.NewSparseCategoricalAccuracy("Mean Accuracy", "#acc")

	trainer := train.NewTrainer(backend, ctx, modelFn,
		losses.SparseCategoricalCrossEntropyLogits,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracy}, // trainMetrics
		[]metrics.Interface{meanAccuracy})   // evalMetrics

	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	// Checkpoints saving.
	var checkpoint *checkpoints.Handler
	if checkpointDir != "" {
		numCheckpoints := context.GetParamOr(ctx, ParamNumCheckpoints, 3)
		checkpoint = must.M1(checkpoints.Build(ctx).
			DirFromBase(checkpointDir, dataDir).
			Keep(numCheckpoints).
			ExcludeParams(excludeFromCheckpoints...).
			Done())
		klog.Infof("Checkpointing model to %q", checkpoint.Dir())
	}

	// Metrics history for the loss/accuracy curves, plus the live Plotly
	// chart when running in a notebook with "plots" set.
	history := plots.NewHistory(trainEvalDS, testEvalDS)
	history.Attach(loop, 20)
	if context.GetParamOr(ctx, plotly.ParamPlots, false) {
		_ = plotly.New().
			WithCheckpoint(checkpoint).
			Dynamic().
			WithDatasets(trainEvalDS, testEvalDS).
			ScheduleExponential(loop, 100, 1.2)
	}

	// Loop for the given number of steps, resuming from the checkpointed
	// global step if any.
	numTrainSteps := context.GetParamOr(ctx, ParamNumTrainSteps, 0)
	globalStep := int(optimizers.GetGlobalStep(ctx))
	if globalStep > 0 {
		trainer.SetContext(ctx.Reuse())
	}
	if globalStep < numTrainSteps {
		_ = must.M1(loop.RunSteps(trainDS, numTrainSteps-globalStep))
		klog.V(1).Infof("[Step %d] median train step: %d microseconds",
			loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())
		if checkpoint != nil {
			must.M(checkpoint.Save())
		}
	} else {
		fmt.Printf("\t - target train_steps=%d already reached. To train further, set a number additional "+
			"to current global step.\n", numTrainSteps)
	}

	// Final evaluation on train and test data.
	fmt.Println()
	must.M(commandline.ReportEval(trainer, trainEvalDS, testEvalDS))
	fmt.Println()
	fmt.Println(history.Summary())
	return history
}

func modelNames() []string {
	names := make([]string, 0, len(Models))
	for name := range Models {
		names = append(names, name)
	}
	return names
}
