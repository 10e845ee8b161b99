package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/born-ml/tinyfnn/fnn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// dataFile is the JSON layout of a dataset: one row per sample. Targets may
// be omitted for inference and calibration inputs.
type dataFile struct {
	Inputs  [][]float32 `json:"inputs"`
	Targets [][]float32 `json:"targets,omitempty"`
}

func readDataFile(path string) (*dataFile, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var d dataFile
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(d.Inputs) == 0 {
		return nil, fmt.Errorf("%s: no input rows", path)
	}
	return &d, nil
}

// flatten checks every row has width columns and concatenates them.
func flatten(name string, rows [][]float32, width int) ([]float32, error) {
	for i, row := range rows {
		if len(row) != width {
			return nil, tensor.Errorf(tensor.ShapeMismatch, "data", "%s row %d has %d values, want %d", name, i, len(row), width)
		}
	}
	return lo.Flatten(rows), nil
}

func (d *dataFile) inputs(width int) (*tensor.Tensor, error) {
	x, err := flatten("inputs", d.Inputs, width)
	if err != nil {
		return nil, err
	}
	return tensor.FromFloat32(tensor.Shape{len(d.Inputs), width}, x)
}

func (d *dataFile) dataset(inputs, outputs int) (*fnn.Dataset, error) {
	if len(d.Targets) != len(d.Inputs) {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "data", "%d input rows but %d target rows", len(d.Inputs), len(d.Targets))
	}
	x, err := flatten("inputs", d.Inputs, inputs)
	if err != nil {
		return nil, err
	}
	y, err := flatten("targets", d.Targets, outputs)
	if err != nil {
		return nil, err
	}
	return fnn.NewDataset(x, inputs, y, outputs)
}

// writeRows prints a [N, C] float32 tensor as {"outputs": [[...], ...]}.
func writeRows(w io.Writer, t *tensor.Tensor) error {
	cols := t.Shape()[1]
	out := struct {
		Outputs [][]float32 `json:"outputs"`
	}{Outputs: lo.Chunk(t.Float32(), cols)}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
