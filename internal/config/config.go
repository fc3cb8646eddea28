package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AnthonyZalev/gridtrace/internal/cpf"
)

const (
	DefaultStep      = 0.01
	DefaultStepMin   = 1e-5
	DefaultStepMax   = 0.2
	DefaultErrorTol  = 1e-3
	DefaultTol       = 1e-6
	DefaultMaxIter   = 20
	DefaultLoadScale = 3.0
)

// Config is the YAML trace configuration.
type Config struct {
	Case      string  `yaml:"case"`
	Scheme    string  `yaml:"scheme"`
	Step      float64 `yaml:"step"`
	StepMin   float64 `yaml:"step_min"`
	StepMax   float64 `yaml:"step_max"`
	Adaptive  bool    `yaml:"adaptive"`
	ErrorTol  float64 `yaml:"error_tol"`
	Tol       float64 `yaml:"tol"`
	MaxIter   int     `yaml:"max_iter"`
	StopAt    string  `yaml:"stop_at"`
	QControl  string  `yaml:"q_control"`
	LoadScale float64 `yaml:"load_scale"` // target = loads scaled by this factor
}

func DefaultConfig() *Config {
	return &Config{
		Scheme:    "arc-length",
		Step:      DefaultStep,
		StepMin:   DefaultStepMin,
		StepMax:   DefaultStepMax,
		Adaptive:  true,
		ErrorTol:  DefaultErrorTol,
		Tol:       DefaultTol,
		MaxIter:   DefaultMaxIter,
		StopAt:    "nose",
		QControl:  "none",
		LoadScale: DefaultLoadScale,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Options translates the config into validated driver options. Unknown
// scheme, stop-mode or q-control spellings are configuration errors.
func (c *Config) Options() (cpf.Options, error) {
	opts := cpf.DefaultOptions()
	var err error
	if opts.Scheme, err = cpf.ParseParametrization(c.Scheme); err != nil {
		return opts, err
	}
	if opts.StopAt, err = cpf.ParseStopAt(c.StopAt); err != nil {
		return opts, err
	}
	if opts.QControl, err = cpf.ParseQControl(c.QControl); err != nil {
		return opts, err
	}
	opts.Step = c.Step
	opts.StepMin = c.StepMin
	opts.StepMax = c.StepMax
	opts.AdaptiveStep = c.Adaptive
	opts.ErrorTol = c.ErrorTol
	opts.Tol = c.Tol
	opts.MaxIter = c.MaxIter
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
