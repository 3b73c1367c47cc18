// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mnist downloads and parses the MNIST database of handwritten
// digits (http://yann.lecun.com/exdb/mnist/), and exposes it as a
// train.Dataset that can be fed directly to a train.Loop.
//
// The dataset ships as four gzip-compressed IDX files: images and labels,
// for 60000 train and 10000 test examples. Images are 28x28 grayscale,
// labels are the digits 0 to 9.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/color"
	"net/url"
	"os"
	"path"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	downloadURL = "https://storage.googleapis.com/cvdf-datasets/mnist"

	// Width and Height of every MNIST image.
	Width  = 28
	Height = 28

	// NumClasses is the number of different digits.
	NumClasses = 10

	// NumTrainExamples and NumTestExamples are the fixed sizes of the two splits.
	NumTrainExamples = 60000
	NumTestExamples  = 10000

	imagesMagic = 0x00000803
	labelsMagic = 0x00000801
)

// Partition of the dataset: train or test split.
type Partition int

const (
	Train Partition = iota
	Test
)

// String implements fmt.Stringer.
func (p Partition) String() string {
	if p == Train {
		return "train"
	}
	return "test"
}

// NumExamples in the partition.
func (p Partition) NumExamples() int {
	if p == Train {
		return NumTrainExamples
	}
	return NumTestExamples
}

func (p Partition) imagesFile() string {
	if p == Train {
		return "train-images-idx3-ubyte.gz"
	}
	return "t10k-images-idx3-ubyte.gz"
}

func (p Partition) labelsFile() string {
	if p == Train {
		return "train-labels-idx1-ubyte.gz"
	}
	return "t10k-labels-idx1-ubyte.gz"
}

// Image is one MNIST digit: a 28x28 grayscale bitmap, 0 is background and
// 255 is the pen color. It implements image.Image.
type Image [Width * Height]byte

// Label is the digit drawn on the corresponding Image, from 0 to 9.
type Label = int8

var _ image.Image = Image{}

// ColorModel implements image.Image.
func (img Image) ColorModel() color.Model { return color.GrayModel }

// Bounds implements image.Image.
func (img Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

// At implements image.Image.
func (img Image) At(x, y int) color.Color {
	return color.Gray{Y: img[y*Width+x]}
}

// Download fetches the four MNIST files into baseDir, if they are not
// there yet. It is safe to call it every time before using the dataset.
func Download(baseDir string) error {
	baseDir = data.ReplaceTildeInDir(baseDir)
	if !data.FileExists(baseDir) {
		if err := os.MkdirAll(baseDir, 0777); err != nil {
			return errors.Wrapf(err, "failed to create directory %q for MNIST data", baseDir)
		}
	}
	for _, p := range []Partition{Train, Test} {
		for _, file := range []string{p.imagesFile(), p.labelsFile()} {
			fileURL, _ := url.JoinPath(downloadURL, file)
			filePath := path.Join(baseDir, file)
			if err := data.DownloadIfMissing(fileURL, filePath, ""); err != nil {
				return errors.WithMessagef(err, "failed to download %q", fileURL)
			}
			if stat, err := os.Stat(filePath); err == nil {
				klog.V(1).Infof("MNIST: %s cached, %s", file, humanize.Bytes(uint64(stat.Size())))
			}
		}
	}
	return nil
}

type imagesHeader struct {
	Magic     int32
	NumImages int32
	Height    int32
	Width     int32
}

type labelsHeader struct {
	Magic     int32
	NumLabels int32
}

// loadImages parses a gzip-compressed IDX3 images file.
func loadImages(filePath string) ([]Image, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open MNIST images file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%q is not a gzip file", filePath)
	}
	defer func() { _ = reader.Close() }()

	var header imagesHeader
	if err = binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "failed to read IDX header from %q", filePath)
	}
	if header.Magic != imagesMagic || header.Width != Width || header.Height != Height {
		return nil, errors.Errorf("%q is not an MNIST images file (magic=%#x, %dx%d images)",
			filePath, header.Magic, header.Width, header.Height)
	}

	images := make([]Image, header.NumImages)
	for i := range images {
		if err = binary.Read(reader, binary.BigEndian, &images[i]); err != nil {
			return nil, errors.Wrapf(err, "MNIST images file %q truncated at image %d of %d",
				filePath, i, header.NumImages)
		}
	}
	return images, nil
}

// loadLabels parses a gzip-compressed IDX1 labels file.
func loadLabels(filePath string) ([]Label, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open MNIST labels file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%q is not a gzip file", filePath)
	}
	defer func() { _ = reader.Close() }()

	var header labelsHeader
	if err = binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "failed to read IDX header from %q", filePath)
	}
	if header.Magic != labelsMagic {
		return nil, errors.Errorf("%q is not an MNIST labels file (magic=%#x)", filePath, header.Magic)
	}

	labels := make([]Label, header.NumLabels)
	if err = binary.Read(reader, binary.BigEndian, labels); err != nil {
		return nil, errors.Wrapf(err, "MNIST labels file %q truncated", filePath)
	}
	return labels, nil
}

// Load parses the images and labels of the given partition from baseDir.
// Call Download first to make sure the files are there.
func Load(baseDir string, p Partition) ([]Image, []Label, error) {
	baseDir = data.ReplaceTildeInDir(baseDir)
	images, err := loadImages(path.Join(baseDir, p.imagesFile()))
	if err != nil {
		return nil, nil, err
	}
	labels, err := loadLabels(path.Join(baseDir, p.labelsFile()))
	if err != nil {
		return nil, nil, err
	}
	if len(images) != len(labels) {
		return nil, nil, errors.Errorf("MNIST %s partition has %d images but %d labels",
			p, len(images), len(labels))
	}
	return images, labels, nil
}
