package app

import (
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"gopkg.in/yaml.v3"

	"dense/alg/nn"
	"dense/history"
	"dense/nlp/format/conll"
	"dense/nlp/parser/dependency"
	"dense/nlp/parser/dependency/graph"
	"dense/util"
	"dense/util/conf"
)

func TrainConfigOut(cfg *conf.Config) {
	log.Println("Configuration")
	log.Printf("Device:\t\t\t%s", cfg.Device)
	log.Printf("Epochs:\t\t\t%d", cfg.Epochs)
	log.Printf("Batch Size:\t\t%d", cfg.BatchSize)
	log.Printf("Learning Rate:\t\t%v", cfg.LearningRate)
	log.Printf("Word Embedding:\t\t%d", cfg.WordEmbedSize)
	log.Printf("POS Embedding:\t\t%d", cfg.POSEmbedSize)
	log.Printf("Hidden Size:\t\t%d", cfg.HiddenSize)
	log.Printf("Arc/Label Hidden:\t%d/%d", cfg.ArcHidden, cfg.LabelHidden)
	log.Printf("Use POS:\t\t%v", cfg.UsePOS)
	log.Printf("Use Context:\t\t%v", cfg.UseContext)
	log.Printf("Single Root:\t\t%v", cfg.SingleRoot)
	log.Printf("Label Loss Weight:\t%v", cfg.LabelLossWeight)
	log.Printf("Seed:\t\t\t%d", cfg.Seed)
	log.Println()
	log.Println("Data")
	log.Printf("Train file (conll):\t%s", cfg.TrainFile)
	log.Printf("Dev file (conll):\t%s", cfg.DevFile)
	log.Printf("Test file (conll):\t%s", cfg.TestFile)
	if cfg.LabelsFile != "" {
		log.Printf("Labels File:\t\t%s", cfg.LabelsFile)
	}
	log.Printf("Model dir:\t\t%s", cfg.ModelDir)
	log.Printf("Results dir:\t\t%s", cfg.ResultsDir)
	log.Printf("History DB:\t\t%s", cfg.HistoryDB)
}

// LoadConfig reads the YAML config and applies .env and environment
// overrides.
func LoadConfig(path, dotEnv string) (*conf.Config, error) {
	cfg, err := conf.Load(path)
	if err != nil {
		return nil, err
	}
	env, err := conf.Environment(dotEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}
	// data files may be given relative to the config file
	dirs := []string{filepath.Dir(path)}
	for _, file := range []*string{&cfg.TrainFile, &cfg.DevFile, &cfg.TestFile, &cfg.LabelsFile} {
		if *file == "" {
			continue
		}
		if located, found := util.LocateFile(*file, dirs); found {
			*file = located
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// A corpus is one gold data set in both its file and its id form.
type corpus struct {
	name      string
	sents     conll.Sentences
	graphs    []*dependency.BasicDepGraph
	instances []*graph.Instance
}

func readCorpus(name, filename string, cfg *conf.Config) (*corpus, error) {
	sents, err := conll.ReadGoldFile(filename, cfg.Limit, cfg.SingleRoot)
	if err != nil {
		return nil, err
	}
	logf("Read %d sentences from %s", len(sents), filename)
	return &corpus{name: name, sents: sents}, nil
}

func (c *corpus) convert(eWord, ePOS, eRel *util.EnumSet) error {
	graphs, err := conll.Conll2GraphCorpus(c.sents, eWord, ePOS, eRel)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	c.graphs = graphs
	c.instances = graph.NewInstances(graphs)
	return nil
}

// convertHeldOut is convert for evaluation sets: relations the label set
// does not hold count as labeling errors instead of failing.
func (c *corpus) convertHeldOut(eWord, ePOS, eRel *util.EnumSet) {
	c.graphs = conll.Conll2HeldOutGraphCorpus(c.sents, eWord, ePOS, eRel)
	c.instances = graph.NewInstances(c.graphs)
}

// SetupRelationEnum builds the frozen label set, from the labels file when
// one is configured and otherwise from the relations seen in the corpora.
// Train passes only the training set.
func SetupRelationEnum(labelsFile string, corpora ...conll.Sentences) (*util.EnumSet, error) {
	var relations []string
	if labelsFile != "" {
		labels, err := conf.ReadFile(labelsFile)
		if err != nil {
			return nil, fmt.Errorf("failed reading dependency labels file %s: %w", labelsFile, err)
		}
		relations = labels.Values
	} else {
		var all conll.Sentences
		for _, c := range corpora {
			all = append(all, c...)
		}
		relations = conll.Relations(all)
	}
	eRel := util.NewEnumSet(util.Max(len(relations), APPROX_RELS))
	for _, rel := range relations {
		eRel.Add(rel)
	}
	eRel.Freeze()
	return eRel, nil
}

// writeResults writes the gold, predicted and side by side comparison
// files of a decoded data set.
func writeResults(dir, name string, c *corpus, trees []*graph.Tree, eRel *util.EnumSet) error {
	pred := make(conll.Sentences, len(c.sents))
	for i, tree := range trees {
		sent, err := conll.Relabel(c.sents[i], tree.Graph(c.graphs[i].Nodes, eRel))
		if err != nil {
			return fmt.Errorf("%s sentence %d: %w", name, i+1, err)
		}
		pred[i] = sent
	}
	compare, err := conll.CompareCorpus(c.sents, pred)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for suffix, sents := range map[string]conll.Sentences{"gold": c.sents, "pred": pred, "compare": compare} {
		filename := filepath.Join(dir, fmt.Sprintf("%s_%s", name, suffix))
		if err := conll.WriteFile(filename, sents); err != nil {
			return err
		}
		logf("Wrote %s", filename)
	}
	return nil
}

func startHistory(cfg *conf.Config) (*history.Store, int64, error) {
	if cfg.HistoryDB == "" {
		return nil, 0, nil
	}
	if err := util.EnsureDir(filepath.Dir(cfg.HistoryDB)); err != nil {
		return nil, 0, err
	}
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return nil, 0, err
	}
	checksum, err := util.MD5File(cfg.TrainFile)
	if err != nil {
		store.Close()
		return nil, 0, err
	}
	cfgText, err := yaml.Marshal(cfg)
	if err != nil {
		store.Close()
		return nil, 0, err
	}
	id, err := store.StartRun(history.Run{TrainFile: cfg.TrainFile, TrainMD5: checksum, Config: string(cfgText)})
	if err != nil {
		store.Close()
		return nil, 0, err
	}
	return store, id, nil
}

func recordEpoch(store *history.Store, id int64, result *EpochResult) error {
	if store == nil {
		return nil
	}
	return store.RecordEpoch(id, history.EpochRecord{
		Epoch:    result.Epoch,
		Phase:    result.Phase.String(),
		Loss:     result.Acc.MeanLoss(),
		UAS:      result.Acc.UAS(),
		LAS:      result.Acc.LAS(),
		UEM:      result.Acc.UEM(),
		Duration: result.Duration,
	})
}

// Train runs the whole TRAIN/DEV schedule, a final TEST pass, and writes
// results and model artifacts.
func Train(cfg *conf.Config) error {
	for _, dir := range []string{cfg.ResultsDir, cfg.ModelDir} {
		if err := util.EnsureDir(dir); err != nil {
			return err
		}
	}

	var (
		sets = make([]*corpus, 3)
		err  error
	)
	for i, file := range []string{cfg.TrainFile, cfg.DevFile, cfg.TestFile} {
		if sets[i], err = readCorpus([]string{"train", "dev", "test"}[i], file, cfg); err != nil {
			return err
		}
	}
	train, dev, test := sets[0], sets[1], sets[2]

	eRel, err := SetupRelationEnum(cfg.LabelsFile, train.sents)
	if err != nil {
		return err
	}
	eWord, ePOS := util.NewVocabulary(APPROX_WORDS), util.NewVocabulary(APPROX_POS)
	if err := train.convert(eWord, ePOS, eRel); err != nil {
		return err
	}
	eWord.Freeze()
	ePOS.Freeze()
	for _, c := range []*corpus{dev, test} {
		c.convertHeldOut(eWord, ePOS, eRel)
	}
	logf("Vocabulary: %d words, %d POS tags, %d relations", eWord.Len(), ePOS.Len(), eRel.Len())

	parser, err := graph.NewParser(cfg.Model(), eWord.Len(), ePOS.Len(), eRel.Len())
	if err != nil {
		return err
	}
	opt := nn.NewAdam(cfg.LearningRate)

	store, id, err := startHistory(cfg)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	rnd := rand.New(rand.NewSource(cfg.Seed))
	devBatches := graph.Batches(dev.instances, cfg.BatchSize)
	var devResult *EpochResult
	startTime := time.Now()
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		trainBatches := graph.Batches(graph.Shuffle(rnd, train.instances), cfg.BatchSize)
		trainResult, err := RunEpoch(TRAIN, epoch, parser, opt, trainBatches)
		if err != nil {
			return err
		}
		if devResult, err = RunEpoch(DEV, epoch, parser, opt, devBatches); err != nil {
			return err
		}
		log.Printf("epoch %d\tTRAIN Loss: %.2f\tDEV Loss: %.2f\tDEV UAS: %.4f\tDEV LAS: %.4f",
			epoch, trainResult.Acc.MeanLoss(), devResult.Acc.MeanLoss(), devResult.Acc.UAS(), devResult.Acc.LAS())
		for _, result := range []*EpochResult{trainResult, devResult} {
			if err := recordEpoch(store, id, result); err != nil {
				return fmt.Errorf("history: %w", err)
			}
		}
	}
	logf("TRAIN Total Time: %v", time.Since(startTime))
	if allOut && !quiet {
		util.LogMemory()
	}

	if devResult == nil {
		if devResult, err = RunEpoch(DEV, 0, parser, opt, devBatches); err != nil {
			return err
		}
	}
	if err := writeResults(cfg.ResultsDir, "dev", dev, devResult.Trees, eRel); err != nil {
		return err
	}

	testResult, err := RunEpoch(TEST, cfg.Epochs, parser, opt, graph.Batches(test.instances, cfg.BatchSize))
	if err != nil {
		return err
	}
	log.Printf("TEST Loss: %.2f\tUAS: %.4f\tLAS: %.4f\tUEM: %.4f",
		testResult.Acc.MeanLoss(), testResult.Acc.UAS(), testResult.Acc.LAS(), testResult.Acc.UEM())
	if err := recordEpoch(store, id, testResult); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := writeResults(cfg.ResultsDir, "test", test, testResult.Trees, eRel); err != nil {
		return err
	}

	err = WriteModel(cfg.ModelDir, &Serialization{
		Config:    cfg,
		Params:    parser.Snapshot(),
		Optimizer: opt,
		EWord:     eWord,
		EPOS:      ePOS,
		ERel:      eRel,
	})
	if err != nil {
		return err
	}
	logf("Wrote model artifacts to %s", cfg.ModelDir)
	return nil
}

func TrainCmdRun(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"c"}); err != nil {
		return err
	}
	cfg, err := LoadConfig(configFile, envFile)
	if err != nil {
		return err
	}
	if err := verifyInputs(cfg.TrainFile, cfg.DevFile, cfg.TestFile); err != nil {
		return err
	}
	if allOut {
		TrainConfigOut(cfg)
	}
	return Train(cfg)
}

func TrainCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       TrainCmdRun,
		UsageLine: "train <file options> [arguments]",
		Short:     "trains the parser and evaluates it on dev and test",
		Long: `
trains a graph-based dependency parser on a CoNLL-X treebank

	$ ./dense train -c <config.yaml> [options]

Each epoch trains on the train file and evaluates on the dev file; the
test file is evaluated once at the end. Predictions are written to the
results directory and model artifacts to the model directory.

`,
		Flag: *flag.NewFlagSet("train", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&configFile, "c", "", "YAML configuration file")
	cmd.Flag.StringVar(&envFile, "env", ".env", "Environment overrides file")
	cmd.Flag.BoolVar(&quiet, "quiet", false, "Turn off the progress bar and per phase lines")
	return cmd
}
