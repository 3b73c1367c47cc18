// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gradients is a guided tour of GoMLX's automatic
// differentiation, the machinery the training loop drives.
//
// GoMLX computes gradients at graph building time: graph.Gradient takes
// the node holding a scalar output and returns new nodes holding the
// derivatives with respect to the requested inputs. There is no tape and
// no backward call -- a graph is built, compiled and executed, and the
// gradients are just extra outputs of the same graph.
package gradients

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
)

// ScalarFn is a differentiable scalar function of one scalar variable,
// expressed as a graph computation.
type ScalarFn func(x *Node) *Node

// ValueAndGrad evaluates fn and dfn/dx at each of the given points.
//
// One graph computes both: the forward value and, through
// graph.Gradient, its derivative.
func ValueAndGrad(backend backends.Backend, fn ScalarFn, xs []float64) (values, grads []float64) {
	exec := NewExec(backend, func(x *Node) (y, dydx *Node) {
		y = fn(x)
		dydx = Gradient(y, x)[0]
		return
	})
	values = make([]float64, len(xs))
	grads = make([]float64, len(xs))
	for i, x := range xs {
		results := exec.Call(x)
		values[i] = results[0].Value().(float64)
		grads[i] = results[1].Value().(float64)
	}
	return
}

// Descend runs numSteps of plain gradient descent on fn, starting at x0
// with the given learning rate. It returns the visited positions and the
// value of fn at each of them, x0 included.
//
// This is the training loop in miniature: the optimizers used by the
// trainer do exactly this update, just with more bookkeeping.
func Descend(backend backends.Backend, fn ScalarFn, x0, learningRate float64, numSteps int) (xs, values []float64) {
	step := NewExec(backend, func(x *Node) (next, y *Node) {
		y = fn(x)
		dydx := Gradient(y, x)[0]
		next = Sub(x, MulScalar(dydx, learningRate))
		return
	})
	xs = append(xs, x0)
	x := x0
	for range numSteps {
		results := step.Call(x)
		values = append(values, results[1].Value().(float64))
		x = results[0].Value().(float64)
		xs = append(xs, x)
	}
	// Value at the final position, without stepping further.
	final := NewExec(backend, func(x *Node) *Node { return fn(x) })
	values = append(values, final.Call(x)[0].Value().(float64))
	return
}

// GradOfNonScalar asks for the gradient of a vector-valued output, which
// the framework rejects: gradients are only defined from a scalar (that
// would be a Jacobian). GoMLX reports this kind of misuse by panicking
// with an exception, and exceptions.TryCatch converts it into an error
// the caller can inspect.
func GradOfNonScalar(backend backends.Backend) error {
	return exceptions.TryCatch[error](func() {
		exec := NewExec(backend, func(x *Node) *Node {
			y := Mul(x, x) // Still a vector, not reduced to a scalar.
			return Gradient(y, x)[0]
		})
		exec.Call([]float64{1, 2, 3})
	})
}
