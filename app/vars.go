package app

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gonuts/commander"

	"dense/alg/nn"
	"dense/nlp/parser/dependency/graph"
	"dense/util"
	"dense/util/conf"
)

var (
	allOut bool = true
	quiet  bool

	// file names
	configFile string
	envFile    string
	input      string
	inputGold  string
	outConll   string
	modelDir   string
	historyDB  string
	runID      int64
)

// Artifact file names inside a model directory. Each is written and read
// on its own.
const (
	MODEL_CONFIG_FILE = "model_config.yaml"
	PARAMS_FILE       = "model.gob"
	OPTIMIZER_FILE    = "optim.gob"
	VOCAB_FILE        = "vocab.gob"
	POSSET_FILE       = "posset.gob"
	LABELS_FILE       = "labels.gob"
)

// An approximation of vocabulary sizes; pre-allocating the enumerations
// saves reallocation while reading the training set.
const (
	APPROX_WORDS, APPROX_POS, APPROX_RELS = 20000, 64, 64
)

// Serialization is everything needed to rebuild a trained parser.
type Serialization struct {
	Config    *conf.Config
	Params    nn.Snapshot
	Optimizer *nn.Adam
	EWord     *util.EnumSet
	EPOS      *util.EnumSet
	ERel      *util.EnumSet
}

func WriteModel(dir string, data *Serialization) error {
	if err := util.EnsureDir(dir); err != nil {
		return err
	}
	if err := conf.Save(filepath.Join(dir, MODEL_CONFIG_FILE), data.Config); err != nil {
		return fmt.Errorf("failed writing model config: %w", err)
	}
	if err := nn.WriteSnapshotFile(filepath.Join(dir, PARAMS_FILE), data.Params); err != nil {
		return fmt.Errorf("failed writing parameters: %w", err)
	}
	if data.Optimizer != nil {
		if err := nn.WriteAdamFile(filepath.Join(dir, OPTIMIZER_FILE), data.Optimizer); err != nil {
			return fmt.Errorf("failed writing optimizer state: %w", err)
		}
	}
	for name, e := range map[string]*util.EnumSet{VOCAB_FILE: data.EWord, POSSET_FILE: data.EPOS, LABELS_FILE: data.ERel} {
		if err := util.WriteEnumSetFile(filepath.Join(dir, name), e); err != nil {
			return fmt.Errorf("failed writing %s: %w", name, err)
		}
	}
	return nil
}

// ReadModel loads the artifacts of dir; the optimizer state is optional.
func ReadModel(dir string) (*Serialization, error) {
	var (
		data = &Serialization{}
		err  error
	)
	if data.Config, err = conf.Load(filepath.Join(dir, MODEL_CONFIG_FILE)); err != nil {
		return nil, fmt.Errorf("failed reading model config: %w", err)
	}
	if data.Params, err = nn.ReadSnapshotFile(filepath.Join(dir, PARAMS_FILE)); err != nil {
		return nil, fmt.Errorf("failed reading parameters: %w", err)
	}
	optFile := filepath.Join(dir, OPTIMIZER_FILE)
	if VerifyExists(optFile) {
		if data.Optimizer, err = nn.ReadAdamFile(optFile); err != nil {
			return nil, fmt.Errorf("failed reading optimizer state: %w", err)
		}
	}
	if data.EWord, err = util.ReadEnumSetFile(filepath.Join(dir, VOCAB_FILE)); err != nil {
		return nil, fmt.Errorf("failed reading vocabulary: %w", err)
	}
	if data.EPOS, err = util.ReadEnumSetFile(filepath.Join(dir, POSSET_FILE)); err != nil {
		return nil, fmt.Errorf("failed reading POS set: %w", err)
	}
	if data.ERel, err = util.ReadEnumSetFile(filepath.Join(dir, LABELS_FILE)); err != nil {
		return nil, fmt.Errorf("failed reading labels: %w", err)
	}
	return data, nil
}

// Parser rebuilds the parser the artifacts were saved from.
func (data *Serialization) Parser() (*graph.Parser, error) {
	parser, err := graph.NewParser(data.Config.Model(), data.EWord.Len(), data.EPOS.Len(), data.ERel.Len())
	if err != nil {
		return nil, err
	}
	if err := parser.Restore(data.Params); err != nil {
		return nil, err
	}
	return parser, nil
}

func VerifyExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

func VerifyFlags(cmd *commander.Command, required []string) error {
	for _, flag := range required {
		f := cmd.Flag.Lookup(flag)
		if f == nil || f.Value.String() == "" {
			cmd.Usage()
			return fmt.Errorf("required flag %s not set", flag)
		}
	}
	return nil
}

func verifyInputs(files ...string) error {
	for _, file := range files {
		if !VerifyExists(file) {
			return fmt.Errorf("error accessing file %s", file)
		}
	}
	return nil
}

func logf(format string, args ...interface{}) {
	if allOut && !quiet {
		log.Printf(format, args...)
	}
}
