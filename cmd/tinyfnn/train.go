package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/tinyfnn/fnn"
	"github.com/born-ml/tinyfnn/internal/logger"
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/train"
)

func trainCmd() *cli.Command {
	var (
		configPath   string
		dataPath     string
		valPath      string
		outPath      string
		resumePath   string
		epochs       int
		batchSize    int
		learningRate float64
		seed         int64
		restoreBest  bool
	)

	return &cli.Command{
		Name:  "train",
		Usage: "Train a model and save its parameters",
		Flags: []cli.Flag{
			configFlag(&configPath, true),
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "training set JSON (\"-\" for stdin)", Destination: &dataPath, Required: true},
			&cli.StringFlag{Name: "val", Usage: "validation set JSON", Destination: &valPath},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output model file", Value: "model.tfnn", Destination: &outPath},
			&cli.StringFlag{Name: "resume", Usage: "continue from the parameters of a saved model", Destination: &resumePath},
			&cli.IntFlag{Name: "epochs", Usage: "override training.epochs", Destination: &epochs},
			&cli.IntFlag{Name: "batch-size", Usage: "override training.batch_size", Destination: &batchSize},
			&cli.Float64Flag{Name: "learning-rate", Aliases: []string{"lr"}, Usage: "override training.learning_rate", Destination: &learningRate},
			&cli.Int64Flag{Name: "seed", Usage: "override training.seed", Destination: &seed},
			&cli.BoolFlag{Name: "restore-best", Usage: "override training.restore_best", Destination: &restoreBest},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c, configPath)
			if err != nil {
				return err
			}
			if c.IsSet("epochs") {
				cfg.Training.Epochs = epochs
			}
			if c.IsSet("batch-size") {
				cfg.Training.BatchSize = batchSize
			}
			if c.IsSet("learning-rate") {
				cfg.Training.LearningRate = float32(learningRate)
			}
			if c.IsSet("seed") {
				cfg.Training.Seed = seed
			}
			if c.IsSet("restore-best") {
				cfg.Training.RestoreBest = restoreBest
			}

			raw, err := readDataFile(dataPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(len(raw.Inputs)); err != nil {
				return err
			}
			m, err := cfg.Build()
			if err != nil {
				return err
			}
			tc, err := cfg.TrainConfig()
			if err != nil {
				return err
			}
			trainSet, err := raw.dataset(m.Inputs(), m.Outputs())
			if err != nil {
				return err
			}
			var valSet *fnn.Dataset
			if valPath != "" {
				rawVal, err := readDataFile(valPath)
				if err != nil {
					return err
				}
				if valSet, err = rawVal.dataset(m.Inputs(), m.Outputs()); err != nil {
					return err
				}
			}

			params := make([]float32, fnn.ParameterCount(m))
			if resumePath != "" {
				prev, prevParams, err := fnn.LoadModel(resumePath)
				if err != nil {
					return err
				}
				if prev.Inputs() != m.Inputs() || !slices.Equal(prev.Specs(), m.Specs()) {
					return fmt.Errorf("resume: %s does not match the configured model", resumePath)
				}
				copy(params, prevParams)
				tc.Init = nn.Init{Method: nn.InitNone}
			}

			need, err := fnn.TrainingMemory(m, tc)
			if err != nil {
				return err
			}
			logger.Log.Info("planned training arena",
				"parameters", len(params),
				"arena", formatBytes(need),
				"rows", trainSet.Rows(),
			)

			res, err := fnn.Train(m, tc, trainSet, valSet, params, make([]byte, need), train.WithLogger(logger.Log))
			if err != nil {
				return err
			}
			if err := fnn.SaveModel(outPath, m, params, &res); err != nil {
				return err
			}
			logger.Log.Info("model saved", "path", outPath, "state", res.Outcome, "epochs", res.Epochs)
			fmt.Printf("%s after %d epochs: train loss %.6g", res.Outcome, res.Epochs, res.TrainLoss)
			if res.HasVal {
				fmt.Printf(", val loss %.6g", res.ValLoss)
			}
			fmt.Printf(" (best epoch %d)\n", res.BestEpoch)
			return nil
		},
	}
}
