package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/tinyfnn/fnn"
	"github.com/born-ml/tinyfnn/internal/config"
	"github.com/born-ml/tinyfnn/internal/logger"
	"github.com/born-ml/tinyfnn/internal/quant"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

func quantizeCmd() *cli.Command {
	var (
		configPath string
		modelPath  string
		dataPath   string
		outPath    string
		scheme     string
	)

	return &cli.Command{
		Name:  "quantize",
		Usage: "Convert a trained float32 model to Q7",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "trained float32 model file", Destination: &modelPath, Required: true},
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "calibration rows JSON", Destination: &dataPath},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output Q7 model file", Value: "model.q7.tfnn", Destination: &outPath},
			&cli.StringFlag{Name: "scheme", Usage: "quantization scheme (affine, symmetric, pow2)", Value: "affine", Destination: &scheme},
			configFlag(&configPath, false),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = loadConfig(c, configPath); err != nil {
					return err
				}
			} else {
				setupLogging()
			}
			if c.IsSet("scheme") || configPath == "" {
				cfg.Quantization.Scheme = scheme
			}
			s, err := cfg.Scheme()
			if err != nil {
				return err
			}

			m, params, err := fnn.LoadModel(modelPath)
			if err != nil {
				return err
			}

			var calib *tensor.Tensor
			if dataPath != "" {
				raw, err := readDataFile(dataPath)
				if err != nil {
					return err
				}
				if calib, err = raw.inputs(m.Inputs()); err != nil {
					return err
				}
			}

			var res *fnn.QuantResult
			if ranges, ok := cfg.Ranges(); ok {
				logger.Log.Info("quantizing with fixed ranges", "scheme", s.Name(), "layers", len(ranges.Layers))
				res, err = quant.Quantize(m, ranges, s)
			} else {
				if calib == nil {
					return fmt.Errorf("quantize: --data is required unless the config sets quantization.ranges")
				}
				logger.Log.Info("calibrating", "scheme", s.Name(), "rows", calib.Shape()[0])
				res, err = fnn.Quantize(m, params, calib, s)
			}
			if err != nil {
				return err
			}
			if err := fnn.SaveQ7(outPath, res); err != nil {
				return err
			}
			logger.Log.Info("q7 model saved", "path", outPath, "bytes", len(res.Params))

			if calib != nil {
				report, err := quant.Compare(m, res.Model, calib)
				if err != nil {
					return err
				}
				fmt.Printf("rows %d: max abs error %.4g, mean abs error %.4g, argmax agreement %.1f%%\n",
					report.Rows, report.MaxAbsError, report.MeanAbsError, 100*report.Agreement)
			}
			return nil
		},
	}
}
