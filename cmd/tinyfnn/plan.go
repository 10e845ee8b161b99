package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/tinyfnn/fnn"
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/plan"
	"github.com/born-ml/tinyfnn/internal/quant"
	"github.com/born-ml/tinyfnn/internal/train"
)

type planReport struct {
	Inputs          int         `json:"inputs"`
	Layers          []nn.Spec   `json:"layers"`
	Structure       []int       `json:"structure"`
	Parameters      int         `json:"parameters"`
	ParameterBytes  int         `json:"parameter_bytes"`
	Q7Bytes         int         `json:"q7_parameter_bytes"`
	Batch           int         `json:"batch"`
	InferenceMemory int         `json:"inference_memory"`
	TrainingMemory  int         `json:"training_memory"`
	Inference       plan.Layout `json:"inference_layout"`
	Training        plan.Layout `json:"training_layout"`
}

func planCmd() *cli.Command {
	var (
		configPath string
		batch      int
		asJSON     bool
	)

	return &cli.Command{
		Name:  "plan",
		Usage: "Print parameter counts and arena sizes for a configuration",
		Flags: []cli.Flag{
			configFlag(&configPath, true),
			&cli.IntFlag{Name: "batch", Aliases: []string{"b"}, Usage: "batch size (default: training.batch_size)", Destination: &batch},
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c, configPath)
			if err != nil {
				return err
			}
			if c.IsSet("batch") {
				cfg.Training.BatchSize = batch
			}
			if err := cfg.Validate(0); err != nil {
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
			tl, err := train.Layout(m, tc)
			if err != nil {
				return err
			}

			r := planReport{
				Inputs:          m.Inputs(),
				Layers:          m.Specs(),
				Structure:       m.Structure(),
				Parameters:      fnn.ParameterCount(m),
				ParameterBytes:  4 * fnn.ParameterCount(m),
				Q7Bytes:         quant.PackedSize(m),
				Batch:           tc.BatchSize,
				InferenceMemory: fnn.InferenceMemory(m, tc.BatchSize),
				TrainingMemory:  tl.Total,
				Inference:       m.PlanInference(tc.BatchSize),
				Training:        tl,
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			printPlan(r)
			return nil
		},
	}
}

func printPlan(r planReport) {
	layers := lo.Map(r.Layers, func(s nn.Spec, _ int) string { return s.String() })
	fmt.Printf("Model:            %d -> %s\n", r.Inputs, strings.Join(layers, " -> "))
	fmt.Printf("Structure:        %v\n", r.Structure)
	fmt.Printf("Parameters:       %d (%s float32, %s q7)\n", r.Parameters, formatBytes(r.ParameterBytes), formatBytes(r.Q7Bytes))
	fmt.Printf("Batch:            %d\n", r.Batch)
	fmt.Printf("Inference arena:  %s\n", formatBytes(r.InferenceMemory))
	fmt.Printf("Training arena:   %s\n", formatBytes(r.TrainingMemory))
	fmt.Println()
	fmt.Printf("%-6s %-14s %12s %12s %12s\n", "LAYER", "TYPE", "ACT OFFSET", "DELTA OFFSET", "BYTES")
	for i, s := range r.Layers {
		delta := "-"
		if i < len(r.Training.Deltas) && r.Training.Deltas[i].Size > 0 {
			delta = fmt.Sprint(r.Training.Deltas[i].Offset)
		}
		act := r.Training.Activations[i]
		fmt.Printf("%-6d %-14s %12d %12s %12d\n", i, s.String(), act.Offset, delta, act.Size)
	}
	names := [...]string{"gradients", "optimizer", "snapshot"}
	for i, p := range r.Training.Persistent {
		label := fmt.Sprintf("persistent %d", i)
		if i < len(names) {
			label = names[i]
		}
		fmt.Printf("%-21s %12d %12s %12d\n", label, p.Offset, "-", p.Size)
	}
}
