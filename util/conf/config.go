package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dense/nlp/parser/dependency/graph"
)

const (
	DEVICE_CPU = "cpu"

	ENV_DEVICE      = "DENSE_DEVICE"
	ENV_MODEL_DIR   = "DENSE_MODEL_DIR"
	ENV_RESULTS_DIR = "DENSE_RESULTS_DIR"
	ENV_HISTORY_DB  = "DENSE_HISTORY_DB"
	ENV_SEED        = "DENSE_SEED"
)

// Config is the run configuration. It is read once at startup and passed
// by value afterwards.
type Config struct {
	TrainFile  string `yaml:"train_file"`
	DevFile    string `yaml:"dev_file"`
	TestFile   string `yaml:"test_file"`
	LabelsFile string `yaml:"labels_file,omitempty"`
	// sentences read per file; 0 reads everything
	Limit int `yaml:"limit,omitempty"`

	BatchSize     int     `yaml:"batch_size"`
	WordEmbedSize int     `yaml:"word_embed_size"`
	POSEmbedSize  int     `yaml:"pos_embed_size"`
	HiddenSize    int     `yaml:"hidden_size"`
	ArcHidden     int     `yaml:"arc_hidden_size"`
	LabelHidden   int     `yaml:"label_hidden_size"`
	LearningRate  float64 `yaml:"learning_rate"`
	Epochs        int     `yaml:"n_epochs"`
	ClipNorm      float64 `yaml:"clip_norm"`
	Device        string  `yaml:"device"`

	UsePOS          bool    `yaml:"use_pos"`
	UseContext      bool    `yaml:"use_context"`
	SingleRoot      bool    `yaml:"single_root"`
	LabelLossWeight float64 `yaml:"label_loss_weight"`

	DecodeWorkers int   `yaml:"decode_workers"`
	Seed          int64 `yaml:"seed"`

	ModelDir   string `yaml:"model_dir"`
	ResultsDir string `yaml:"results_dir"`
	HistoryDB  string `yaml:"history_db"`
}

func Default() *Config {
	return &Config{
		BatchSize:       32,
		WordEmbedSize:   100,
		POSEmbedSize:    50,
		HiddenSize:      200,
		ArcHidden:       200,
		LabelHidden:     100,
		LearningRate:    0.001,
		Epochs:          10,
		ClipNorm:        5,
		Device:          DEVICE_CPU,
		UsePOS:          true,
		UseContext:      true,
		SingleRoot:      true,
		LabelLossWeight: 1,
		Seed:            1,
		ModelDir:        "models",
		ResultsDir:      "results",
		HistoryDB:       filepath.Join("results", "history.db"),
	}
}

// Load reads a YAML config; fields missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Environment merges the given .env files (missing ones are skipped) with
// the process environment; the process environment wins.
func Environment(files ...string) (map[string]string, error) {
	env := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	for _, key := range []string{ENV_DEVICE, ENV_MODEL_DIR, ENV_RESULTS_DIR, ENV_HISTORY_DB, ENV_SEED} {
		if v, exists := os.LookupEnv(key); exists {
			env[key] = v
		}
	}
	return env, nil
}

// ApplyEnv overrides settings from DENSE_* variables.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v, exists := env[ENV_DEVICE]; exists {
		c.Device = v
	}
	if v, exists := env[ENV_MODEL_DIR]; exists {
		c.ModelDir = v
	}
	if v, exists := env[ENV_RESULTS_DIR]; exists {
		c.ResultsDir = v
	}
	if v, exists := env[ENV_HISTORY_DB]; exists {
		c.HistoryDB = v
	}
	if v, exists := env[ENV_SEED]; exists {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", ENV_SEED, err)
		}
		c.Seed = seed
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Device != DEVICE_CPU {
		return fmt.Errorf("unsupported device %q: only %q is available", c.Device, DEVICE_CPU)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Epochs < 0 {
		return fmt.Errorf("n_epochs must not be negative, got %d", c.Epochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %v", c.LearningRate)
	}
	return c.Model().Validate()
}

// Model is the part of the configuration that shapes the parser; it is
// saved next to the parameters.
func (c *Config) Model() graph.Config {
	return graph.Config{
		WordDim:         c.WordEmbedSize,
		POSDim:          c.POSEmbedSize,
		HiddenSize:      c.HiddenSize,
		ArcHidden:       c.ArcHidden,
		LabelHidden:     c.LabelHidden,
		UsePOS:          c.UsePOS,
		UseContext:      c.UseContext,
		SingleRoot:      c.SingleRoot,
		LabelLossWeight: c.LabelLossWeight,
		DecodeWorkers:   c.DecodeWorkers,
		ClipNorm:        c.ClipNorm,
		Seed:            c.Seed,
	}
}
