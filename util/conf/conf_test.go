package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader("# relations\nnsubj\n\nadvmod\nroot\n"))
	if err != nil {
		t.Fatal(err.Error())
	}
	if len(c.Values) != 3 || c.Values[0] != "nsubj" || c.Values[2] != "root" {
		t.Errorf("Unexpected values %v", c.Values)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("train_file: train.conll\nbatch_size: 8\nuse_pos: false\n"), 0o644); err != nil {
		t.Fatal(err.Error())
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err.Error())
	}
	if cfg.TrainFile != "train.conll" || cfg.BatchSize != 8 || cfg.UsePOS {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.HiddenSize != 200 || cfg.Device != DEVICE_CPU || !cfg.SingleRoot {
		t.Errorf("Defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err.Error())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "model_config.yaml")
	cfg := Default()
	cfg.LearningRate = 0.5
	cfg.UseContext = false
	if err := Save(path, cfg); err != nil {
		t.Fatal(err.Error())
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err.Error())
	}
	if *loaded != *cfg {
		t.Errorf("Round trip differs:\n%+v\n%+v", loaded, cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Device = "cuda:0"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected non-cpu device to be rejected")
	}
	cfg = Default()
	cfg.BatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected zero batch size to be rejected")
	}
	cfg = Default()
	cfg.HiddenSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected zero hidden size to be rejected")
	}
}

func TestEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("DENSE_MODEL_DIR=/tmp/models\nDENSE_SEED=7\n"), 0o644); err != nil {
		t.Fatal(err.Error())
	}
	t.Setenv(ENV_SEED, "11")

	env, err := Environment(envFile, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatal(err.Error())
	}
	cfg := Default()
	if err := cfg.ApplyEnv(env); err != nil {
		t.Fatal(err.Error())
	}
	if cfg.ModelDir != "/tmp/models" {
		t.Errorf("Expected model dir from .env, got %s", cfg.ModelDir)
	}
	if cfg.Seed != 11 {
		t.Errorf("Expected process environment to win, got seed %d", cfg.Seed)
	}

	if err := cfg.ApplyEnv(map[string]string{ENV_SEED: "x"}); err == nil {
		t.Error("Expected bad seed to fail")
	}
}
