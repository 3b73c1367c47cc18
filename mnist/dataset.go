// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mnist

import (
	"io"
	"math/rand"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"golang.org/x/exp/constraints"
)

// Dataset implements train.Dataset, yielding batches of MNIST images and
// their labels. Images are yielded shaped [batchSize, 28, 28, 1] and
// labels shaped [batchSize, 1].
//
// It is safe for concurrent use -- required when wrapped by
// data.CustomParallel.
type Dataset struct {
	name   string
	images []Image
	labels []Label
	dtype  dtypes.DType

	batchSize     int
	shuffle       *rand.Rand
	infinite      bool
	dropRemainder bool

	mu       sync.Mutex
	indices  []int
	position int
}

var _ train.Dataset = (*Dataset)(nil)

// NewDataset loads the given partition from baseDir and returns a Dataset
// for it. With a nil shuffle the examples are yielded in file order.
// Only Float32 and Float64 image dtypes are supported.
func NewDataset(name, baseDir string, p Partition, batchSize int, shuffle *rand.Rand, dtype dtypes.DType) (*Dataset, error) {
	images, labels, err := Load(baseDir, p)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{
		name:      name,
		images:    images,
		labels:    labels,
		dtype:     dtype,
		batchSize: batchSize,
		shuffle:   shuffle,
	}
	ds.reshuffle()
	return ds, nil
}

// Infinite sets whether the dataset loops forever, reshuffling at each
// epoch, as opposed to returning io.EOF after one pass. Default is false.
func (ds *Dataset) Infinite(infinite bool) *Dataset {
	ds.infinite = infinite
	return ds
}

// DropRemainder sets whether a last batch smaller than the batch size is
// dropped, keeping all yielded batches the same shape -- which saves
// re-compilations of the computation graph. Default is false.
func (ds *Dataset) DropRemainder(drop bool) *Dataset {
	ds.dropRemainder = drop
	return ds
}

// NumExamples loaded in the dataset.
func (ds *Dataset) NumExamples() int { return len(ds.images) }

// Name implements train.Dataset.
func (ds *Dataset) Name() string { return ds.name }

// reshuffle regenerates the iteration order. Call with ds.mu held (or
// before the dataset is shared).
func (ds *Dataset) reshuffle() {
	if ds.shuffle != nil {
		ds.indices = ds.shuffle.Perm(len(ds.images))
		return
	}
	if ds.indices == nil {
		ds.indices = make([]int, len(ds.images))
		for i := range ds.indices {
			ds.indices[i] = i
		}
	}
}

// Yield implements train.Dataset. It returns:
//   - spec: the dataset itself (unused by the models here).
//   - inputs: a single tensor shaped [batchSize, 28, 28, 1].
//   - labels: a single tensor shaped [batchSize, 1].
//
// When not infinite, the last batch of an epoch is returned along with
// io.EOF; if the epoch size is not a multiple of the batch size the last
// batch is smaller, unless DropRemainder was set.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.position >= len(ds.indices) {
		ds.position = 0
		ds.reshuffle()
		if !ds.infinite {
			return nil, nil, nil, io.EOF
		}
	}

	start := ds.position
	end := start + ds.batchSize
	ds.position = end
	if end > len(ds.indices) {
		if ds.infinite || ds.dropRemainder {
			// Wrap around instead of yielding a short batch.
			ds.position = 0
			ds.reshuffle()
			if !ds.infinite {
				return nil, nil, nil, io.EOF
			}
			start, end = 0, ds.batchSize
			ds.position = end
		} else {
			end = len(ds.indices)
		}
	}

	batch := ds.indices[start:end]
	inputs = []*tensors.Tensor{ds.imagesBatch(batch)}
	batchLabels := make([]int64, 0, len(batch))
	for _, label := range Select(ds.labels, batch) {
		batchLabels = append(batchLabels, int64(label))
	}
	// Labels are shaped [batchSize, 1]: sparse categorical losses and
	// metrics expect the same rank as the logits, with a trailing axis
	// holding the true category.
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(batchLabels, len(batch), 1)}
	return ds, inputs, labels, nil
}

// imagesBatch converts the selected images into a tensor shaped
// [batchSize, Height, Width, 1], with pixel values scaled to [0, 1].
func (ds *Dataset) imagesBatch(batch []int) *tensors.Tensor {
	switch ds.dtype {
	case dtypes.Float32:
		return imagesBatchImpl[float32](ds.images, batch)
	case dtypes.Float64:
		return imagesBatchImpl[float64](ds.images, batch)
	default:
		exceptions.Panicf("mnist.Dataset does not support images dtype %s, use Float32 or Float64", ds.dtype)
	}
	return nil
}

func imagesBatchImpl[T float32 | float64](images []Image, batch []int) *tensors.Tensor {
	flat := make([]T, 0, len(batch)*Height*Width)
	for _, img := range Select(images, batch) {
		for _, pixel := range img {
			flat = append(flat, T(pixel)/255)
		}
	}
	return tensors.FromFlatDataAndDimensions(flat, len(batch), Height, Width, 1)
}

// Reset implements train.Dataset, restarting the epoch.
func (ds *Dataset) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.position = 0
	ds.reshuffle()
}

// Select returns items[i] for each index in idx.
func Select[T any, I constraints.Integer](items []T, idx []I) []T {
	selected := make([]T, 0, len(idx))
	for _, i := range idx {
		selected = append(selected, items[i])
	}
	return selected
}

// Config holds how the train and eval datasets are to be built. The
// parallelism knobs are passed straight to data.CustomParallel, which
// owns the worker goroutines and buffering.
type Config struct {
	// DataDir is where the downloaded files are cached.
	DataDir string

	// BatchSize for training; EvalBatchSize can be larger, it is more efficient.
	BatchSize, EvalBatchSize int

	// UseParallelism wraps each dataset with a parallel prefetcher.
	UseParallelism bool

	// BufferSize of prefetched batches, per dataset. Only used with UseParallelism.
	BufferSize int

	Dtype dtypes.DType
}

// CreateDatasets returns the three datasets used by a training session:
// the (infinite, shuffled) training dataset, and one-epoch eval datasets
// over the train and test partitions.
func CreateDatasets(config *Config, shuffle *rand.Rand) (trainDS, trainEvalDS, testEvalDS train.Dataset) {
	newDS := func(name string, p Partition, batchSize int, shuffle *rand.Rand) *Dataset {
		ds, err := NewDataset(name, config.DataDir, p, batchSize, shuffle, config.Dtype)
		if err != nil {
			exceptions.Panicf("mnist.NewDataset(%q): %v", name, err)
		}
		return ds
	}
	trainDS = newDS("train", Train, config.BatchSize, shuffle).Infinite(true)
	trainEvalDS = newDS("train-eval", Train, config.EvalBatchSize, nil)
	testEvalDS = newDS("test-eval", Test, config.EvalBatchSize, nil)
	if config.UseParallelism {
		trainDS = data.CustomParallel(trainDS).Buffer(config.BufferSize).Start()
		trainEvalDS = data.CustomParallel(trainEvalDS).Buffer(config.BufferSize).Start()
		testEvalDS = data.CustomParallel(testEvalDS).Buffer(config.BufferSize).Start()
	}
	return
}
