// Package config loads tinyfnn YAML configuration files.
//
// A file describes the model topology, the training run and the
// quantization scheme:
//
//	model:
//	  inputs: 2
//	  layers:
//	    - {type: dense, units: 8}
//	    - {type: tanh}
//	    - {type: dense, units: 2}
//	    - {type: softmax}
//	training:
//	  loss: cross_entropy
//	  optimizer: adam
//	  learning_rate: 0.01
//	  epochs: 200
//	  batch_size: 16
//	  early_stopping: {enabled: true, patience: 10}
//	quantization:
//	  scheme: affine
//
// Fields left out keep the values of Default.
package config

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/optim"
	"github.com/born-ml/tinyfnn/internal/quant"
	"github.com/born-ml/tinyfnn/internal/tensor"
	"github.com/born-ml/tinyfnn/internal/train"
)

// Config represents a tinyfnn configuration file.
type Config struct {
	Model        Model        `yaml:"model"`
	Training     Training     `yaml:"training"`
	Quantization Quantization `yaml:"quantization"`
	Log          Log          `yaml:"log"`
}

// Model is the topology section.
type Model struct {
	Inputs int     `yaml:"inputs"`
	Layers []Layer `yaml:"layers"`
}

// Layer is one entry of the topology.
type Layer struct {
	Type  string  `yaml:"type"`
	Units int     `yaml:"units,omitempty"`
	Alpha float32 `yaml:"alpha,omitempty"`
}

// Training is the training section.
type Training struct {
	Loss         string        `yaml:"loss"`
	Optimizer    string        `yaml:"optimizer"`
	LearningRate float32       `yaml:"learning_rate"`
	Momentum     float32       `yaml:"momentum"`
	Beta1        float32       `yaml:"beta1"`   // Zero selects 0.9
	Beta2        float32       `yaml:"beta2"`   // Zero selects 0.999
	Epsilon      float32       `yaml:"epsilon"` // Zero selects 1e-7
	Init         string        `yaml:"init"`
	InitMin      float32       `yaml:"init_min"`
	InitMax      float32       `yaml:"init_max"`
	Epochs       int           `yaml:"epochs"`
	BatchSize    int           `yaml:"batch_size"`
	Early        EarlyStopping `yaml:"early_stopping"`
	TargetLoss   float32       `yaml:"target_loss"`
	RestoreBest  bool          `yaml:"restore_best"`
	Seed         int64         `yaml:"seed"`
	LogInterval  int           `yaml:"log_interval"`
}

// EarlyStopping mirrors train.EarlyStopping.
type EarlyStopping struct {
	Enabled  bool    `yaml:"enabled"`
	Patience int     `yaml:"patience"`
	MinDelta float32 `yaml:"min_delta"`
}

// Quantization is the quantization section.
type Quantization struct {
	Scheme string         `yaml:"scheme"`
	Ranges []tensor.Range `yaml:"ranges,omitempty"` // Optional fixed ranges: input first, then one per layer
}

// Log selects logger output.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration applied beneath every file.
func Default() Config {
	return Config{
		Training: Training{
			Loss:         "mse",
			Optimizer:    "adam",
			LearningRate: 1e-3,
			Init:         "glorot_uniform",
			Epochs:       100,
			BatchSize:    32,
			Early:        EarlyStopping{Patience: 10},
			LogInterval:  10,
		},
		Quantization: Quantization{Scheme: "affine"},
		Log:          Log{Level: "info", Format: "console"},
	}
}

// Load reads the YAML file at path over Default.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: config path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Specs converts the topology into layer specs.
func (c Config) Specs() ([]nn.Spec, error) {
	var errs error
	specs := lo.Map(c.Model.Layers, func(l Layer, i int) nn.Spec {
		kind, err := nn.ParseKind(l.Type)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("layer %d: %w", i, err))
		}
		return nn.Spec{Kind: kind, Units: l.Units, Alpha: l.Alpha}
	})
	return specs, errs
}

// Build creates the model described by the topology section.
func (c Config) Build() (*nn.Model, error) {
	specs, err := c.Specs()
	if err != nil {
		return nil, err
	}
	return nn.NewModel(c.Model.Inputs, specs...)
}

// TrainConfig converts the training section.
func (c Config) TrainConfig() (train.Config, error) {
	t := c.Training
	var errs error
	loss, err := nn.ParseLossKind(t.Loss)
	errs = multierr.Append(errs, err)
	kind, err := optim.ParseKind(t.Optimizer)
	errs = multierr.Append(errs, err)
	method, err := nn.ParseInitMethod(t.Init)
	errs = multierr.Append(errs, err)
	if errs != nil {
		return train.Config{}, errs
	}
	return train.Config{
		Loss: loss,
		Optimizer: optim.Config{
			Kind:     kind,
			LR:       t.LearningRate,
			Momentum: t.Momentum,
			Betas:    [2]float32{t.Beta1, t.Beta2},
			Eps:      t.Epsilon,
		},
		Init:      nn.Init{Method: method, Min: t.InitMin, Max: t.InitMax},
		Epochs:    t.Epochs,
		BatchSize: t.BatchSize,
		EarlyStopping: train.EarlyStopping{
			Enabled:  t.Early.Enabled,
			Patience: t.Early.Patience,
			MinDelta: t.Early.MinDelta,
		},
		TargetLoss:  t.TargetLoss,
		RestoreBest: t.RestoreBest,
		Seed:        t.Seed,
		LogInterval: t.LogInterval,
	}, nil
}

// Scheme resolves the quantization scheme.
func (c Config) Scheme() (tensor.Scheme, error) {
	return tensor.SchemeByName(c.Quantization.Scheme)
}

// Ranges returns the fixed quantization ranges, if the file sets them.
func (c Config) Ranges() (quant.Ranges, bool) {
	r := c.Quantization.Ranges
	if len(r) == 0 {
		return quant.Ranges{}, false
	}
	return quant.Ranges{Input: r[0], Layers: r[1:]}, true
}

// Validate checks every section and reports all problems together. rows is
// the training set size used to bound the batch size; zero skips that
// check.
func (c Config) Validate(rows int) error {
	var errs error
	if c.Model.Inputs <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("model.inputs: %w", tensor.Errorf(tensor.ShapeMismatch, "config", "must be positive, got %d", c.Model.Inputs)))
	}
	if len(c.Model.Layers) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("model.layers: %w", tensor.Errorf(tensor.UnsupportedConfiguration, "config", "at least one layer is required")))
	}
	unknown := lo.Filter(c.Model.Layers, func(l Layer, _ int) bool {
		_, err := nn.ParseKind(l.Type)
		return err != nil
	})
	for _, l := range lo.UniqBy(unknown, func(l Layer) string { return l.Type }) {
		errs = multierr.Append(errs, fmt.Errorf("model.layers: %w", tensor.Errorf(tensor.UnsupportedConfiguration, "config", "unknown layer type %q", l.Type)))
	}
	if _, err := c.Scheme(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("quantization.scheme: %w", err))
	}
	if n := len(c.Quantization.Ranges); n > 0 && n != len(c.Model.Layers)+1 {
		errs = multierr.Append(errs, fmt.Errorf("quantization.ranges: %w", tensor.Errorf(tensor.ShapeMismatch, "config", "need %d ranges (input plus one per layer), got %d", len(c.Model.Layers)+1, n)))
	}

	tc, err := c.TrainConfig()
	if err != nil {
		return multierr.Append(errs, err)
	}
	if errs != nil {
		return errs
	}
	m, err := c.Build()
	if err != nil {
		return err
	}
	if rows == 0 {
		rows = max(tc.BatchSize, 1)
	}
	return tc.Validate(m, rows)
}
