package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/tinyfnn/fnn"
	"github.com/born-ml/tinyfnn/internal/logger"
	"github.com/born-ml/tinyfnn/internal/serialization"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

func inferCmd() *cli.Command {
	var (
		modelPath string
		dataPath  string
	)

	return &cli.Command{
		Name:  "infer",
		Usage: "Run a saved float32 or Q7 model over input rows",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "model file", Destination: &modelPath, Required: true},
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "input rows JSON (\"-\" for stdin)", Value: "-", Destination: &dataPath},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			setupLogging()
			f, err := serialization.Load(modelPath)
			if err != nil {
				return err
			}
			raw, err := readDataFile(dataPath)
			if err != nil {
				return err
			}
			rows := len(raw.Inputs)

			var out *tensor.Tensor
			switch f.Header.Payload {
			case serialization.PayloadFloat32:
				m, params, err := f.Float()
				if err != nil {
					return err
				}
				x, err := raw.inputs(m.Inputs())
				if err != nil {
					return err
				}
				if out, err = fnn.Inference(m, params, x, make([]byte, fnn.InferenceMemory(m, rows))); err != nil {
					return err
				}
			case serialization.PayloadQ7:
				q, packed, err := f.Q7()
				if err != nil {
					return err
				}
				x, err := raw.inputs(q.Inputs())
				if err != nil {
					return err
				}
				qx, err := fnn.QuantizeInput(q, x)
				if err != nil {
					return err
				}
				qout, err := fnn.InferenceQ7(q, packed, qx, make([]byte, fnn.InferenceQ7Memory(q, rows)))
				if err != nil {
					return err
				}
				if out, err = fnn.Dequantize(qout); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%w: %s", serialization.ErrWrongPayload, f.Header.Payload)
			}
			logger.Log.Debug("inference done", "model", modelPath, "payload", f.Header.Payload, "rows", rows)
			return writeRows(os.Stdout, out)
		},
	}
}
