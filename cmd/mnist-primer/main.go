// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// mnist-primer is the command-line companion of the lessons:
//
//  1. `mnist-primer -download`: downloads and caches the MNIST files.
//  2. `mnist-primer -gradients`: runs the automatic differentiation tour.
//  3. `mnist-primer -train`: trains a classifier ("sequential" or "mlp",
//     selected with -set model=...) and reports train/test accuracy.
//
// Hyperparameters are context settings, e.g.:
//
//	mnist-primer -train -set "model=mlp;train_steps=3000;learning_rate=0.001"
//
// When run from a GoNB notebook cell with plots=true, training draws the
// loss/accuracy curves live.
package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/mnist-primer/classifier"
	"github.com/gomlx/mnist-primer/gradients"
	"github.com/gomlx/mnist-primer/mnist"

	_ "github.com/gomlx/gomlx/backends/xla"
)

var (
	flagDownload  = flag.Bool("download", false, "Download the MNIST dataset and exit.")
	flagGradients = flag.Bool("gradients", false, "Run the automatic differentiation tour.")
	flagTrain     = flag.Bool("train", true, "Train the classifier selected by the \"model\" setting.")

	flagDataDir    = flag.String("data", "~/work/mnist", "Directory to cache the downloaded dataset.")
	flagCheckpoint = flag.String("checkpoint", "", "Directory to save and restore checkpoints from, relative to -data. Empty disables checkpointing.")
	flagPlotsFile  = flag.String("plots_html", "", "Base file name to export the training curves as Plotly HTML. Empty disables the export.")
)

func main() {
	ctx := classifier.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	must.M(commandline.ParseContextSettings(ctx, *settings))

	*flagDataDir = data.ReplaceTildeInDir(*flagDataDir)
	err := exceptions.TryCatch[error](func() {
		if *flagDownload {
			must.M(mnist.Download(*flagDataDir))
			klog.Infof("MNIST dataset cached in %s", *flagDataDir)
			return
		}
		if *flagGradients {
			gradientsTour()
			return
		}
		if *flagTrain {
			history := must.M1(classifier.TrainModel(ctx, *flagDataDir, *flagCheckpoint))
			if *flagPlotsFile != "" {
				must.M(history.SaveHTML(*flagPlotsFile))
				klog.Infof("Training curves exported to %s", *flagPlotsFile)
			}
			return
		}
		klog.Info("nothing to do: use -download, -gradients and/or -train")
	})
	if err != nil {
		klog.Fatalf("Error:\n%+v", err)
	}
}

// gradientsTour prints the automatic differentiation lesson: values and
// derivatives of f(x) = (x-3)^2 + 1, a few steps of gradient descent on
// it, and the framework error raised by a gradient of a non-scalar.
func gradientsTour() {
	backend := backends.New()
	fmt.Printf("Backend %q: %s\n\n", backend.Name(), backend.Description())

	parabola := func(x *Node) *Node {
		d := AddScalar(x, -3)
		return AddScalar(Mul(d, d), 1)
	}

	xs := []float64{0, 1, 3, 5}
	values, grads := gradients.ValueAndGrad(backend, parabola, xs)
	fmt.Println("f(x) = (x-3)² + 1")
	for i, x := range xs {
		fmt.Printf("\tf(%g) = %g,\tf'(%g) = %g\n", x, values[i], x, grads[i])
	}

	fmt.Println("\nGradient descent from x=0, learning rate 0.1:")
	positions, fValues := gradients.Descend(backend, parabola, 0, 0.1, 20)
	for i := 0; i < len(positions); i += 5 {
		fmt.Printf("\tstep %2d: x=%.4f, f(x)=%.4f\n", i, positions[i], fValues[i])
	}

	fmt.Println("\nAsking for the gradient of a non-scalar output fails:")
	err := gradients.GradOfNonScalar(backend)
	fmt.Printf("\tframework says: %s\n", firstLine(err.Error()))
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
