package quant

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Report compares a Q7 model against its float32 source.
type Report struct {
	Rows         int     `json:"rows"`
	MaxAbsError  float64 `json:"max_abs_error"`
	MeanAbsError float64 `json:"mean_abs_error"`
	// Agreement is the fraction of rows whose argmax output matches. It is
	// only meaningful for classifiers.
	Agreement float64 `json:"agreement"`
}

// Compare runs both models over x and measures the dequantized output error.
func Compare(m *nn.Model, q *nn.QModel, x *tensor.Tensor) (Report, error) {
	s := x.Shape()
	if x.DType() != tensor.Float32 || len(s) != 2 || s[1] != m.Inputs() || s[0] == 0 {
		return Report{}, tensor.Errorf(tensor.ShapeMismatch, "quant.compare", "input %s %v, want float32 [N, %d]", x.DType(), s, m.Inputs())
	}
	if q.Inputs() != m.Inputs() || q.Outputs() != m.Outputs() {
		return Report{}, tensor.Errorf(tensor.ShapeMismatch, "quant.compare", "models differ: %dx%d vs %dx%d", m.Inputs(), m.Outputs(), q.Inputs(), q.Outputs())
	}
	rows, cols := s[0], m.Outputs()

	layout := m.PlanInference(rows)
	exec, err := nn.NewExecutor(m, layout, rows, make([]byte, layout.Total))
	if err != nil {
		return Report{}, err
	}
	want, err := exec.Forward(x)
	if err != nil {
		return Report{}, err
	}

	qx, err := QuantizeInput(q, x)
	if err != nil {
		return Report{}, err
	}
	qout, err := Inference(q, qx, make([]byte, q.InferenceMemory(rows)))
	if err != nil {
		return Report{}, err
	}
	got, err := Dequantize(qout)
	if err != nil {
		return Report{}, err
	}

	wantF, gotF := toFloat64(want.Float32()), toFloat64(got.Float32())
	diff := make([]float64, len(wantF))
	floats.SubTo(diff, gotF, wantF)
	for i, d := range diff {
		diff[i] = math.Abs(d)
	}

	agree := 0
	for r := 0; r < rows; r++ {
		if floats.MaxIdx(wantF[r*cols:(r+1)*cols]) == floats.MaxIdx(gotF[r*cols:(r+1)*cols]) {
			agree++
		}
	}
	return Report{
		Rows:         rows,
		MaxAbsError:  floats.Max(diff),
		MeanAbsError: stat.Mean(diff, nil),
		Agreement:    float64(agree) / float64(rows),
	}, nil
}

func toFloat64(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
