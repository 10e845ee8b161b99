package train

import (
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Dataset pairs float32 inputs [N, in] with targets [N, out].
type Dataset struct {
	X *tensor.Tensor
	Y *tensor.Tensor
}

// NewDataset wraps flat row-major inputs and targets without copying.
func NewDataset(x []float32, inputs int, y []float32, outputs int) (*Dataset, error) {
	if inputs <= 0 || outputs <= 0 || len(x)%inputs != 0 || len(y)%outputs != 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "train.dataset", "cannot split %d inputs by %d or %d targets by %d", len(x), inputs, len(y), outputs)
	}
	rows := len(x) / inputs
	if rows == 0 || len(y)/outputs != rows {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "train.dataset", "%d input rows, %d target rows", rows, len(y)/outputs)
	}
	xt, err := tensor.ViewFloat32(tensor.Shape{rows, inputs}, x)
	if err != nil {
		return nil, err
	}
	yt, err := tensor.ViewFloat32(tensor.Shape{rows, outputs}, y)
	if err != nil {
		return nil, err
	}
	return &Dataset{X: xt, Y: yt}, nil
}

// Rows returns the number of samples.
func (d *Dataset) Rows() int { return d.X.Shape()[0] }

func (d *Dataset) check(inputs, outputs int) error {
	xs, ys := d.X.Shape(), d.Y.Shape()
	if d.X.DType() != tensor.Float32 || d.Y.DType() != tensor.Float32 ||
		len(xs) != 2 || len(ys) != 2 || xs[1] != inputs || ys[1] != outputs || xs[0] != ys[0] || xs[0] == 0 {
		return tensor.Errorf(tensor.ShapeMismatch, "train.dataset", "got X %v Y %v, want float32 [N, %d] and [N, %d]", xs, ys, inputs, outputs)
	}
	return nil
}

// batch returns the row views of batch b of size rows.
func (d *Dataset) batch(b, size int) (*tensor.Tensor, *tensor.Tensor) {
	from := b * size
	to := min(from+size, d.Rows())
	x, _ := d.X.Rows(from, to)
	y, _ := d.Y.Rows(from, to)
	return x, y
}

func (d *Dataset) batches(size int) int {
	return (d.Rows() + size - 1) / size
}
