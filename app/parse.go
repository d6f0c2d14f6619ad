package app

import (
	"fmt"
	"log"
	"time"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"dense/nlp/format/conll"
	"dense/nlp/format/taggedsentence"
	"dense/nlp/parser/dependency"
	"dense/nlp/parser/dependency/graph"
)

var (
	parseBatchSize int
	inputTagged    string
)

func ParseConfigOut() {
	log.Println("Configuration")
	log.Printf("Model dir:\t\t%s", modelDir)
	log.Printf("Batch Size:\t\t%d", parseBatchSize)
	log.Println()
	log.Println("Data")
	if inputTagged != "" {
		log.Printf("Input file (tagged):\t%s", inputTagged)
	} else {
		log.Printf("Input file (conll):\t%s", input)
	}
	log.Printf("Out (conll) file:\t%s", outConll)
}

// Parse decodes every sentence of sents with the parser saved in data. HEAD
// and DEPREL columns of the input are ignored.
func Parse(data *Serialization, sents conll.Sentences, batchSize int) (conll.Sentences, error) {
	parser, err := data.Parser()
	if err != nil {
		return nil, err
	}
	graphs := make([]*dependency.BasicDepGraph, len(sents))
	for i, sent := range sents {
		graphs[i] = &dependency.BasicDepGraph{Nodes: conll.Conll2Nodes(sent, data.EWord, data.EPOS)}
	}
	parsed := make(conll.Sentences, 0, len(sents))
	for _, batch := range graph.Batches(graph.NewInstances(graphs), batchSize) {
		trees, err := parser.Parse(batch)
		if err != nil {
			return nil, err
		}
		for _, tree := range trees {
			i := len(parsed)
			sent, err := conll.Relabel(sents[i], tree.Graph(graphs[i].Nodes, data.ERel))
			if err != nil {
				return nil, fmt.Errorf("sentence %d: %w", i+1, err)
			}
			parsed = append(parsed, sent)
		}
	}
	return parsed, nil
}

func ParseCmdRun(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"m", "oc"}); err != nil {
		return err
	}
	inFile := input
	switch {
	case input != "" && inputTagged != "":
		return fmt.Errorf("flags in and it are mutually exclusive")
	case inputTagged != "":
		inFile = inputTagged
	case input == "":
		cmd.Usage()
		return fmt.Errorf("one of the flags in or it is required")
	}
	if err := verifyInputs(modelDir, inFile); err != nil {
		return err
	}
	if allOut {
		ParseConfigOut()
	}
	data, err := ReadModel(modelDir)
	if err != nil {
		return err
	}
	sents, err := readParseInput(input, inputTagged)
	if err != nil {
		return err
	}
	logf("Read %d sentences from %s", len(sents), inFile)

	startTime := time.Now()
	parsed, err := Parse(data, sents, parseBatchSize)
	if err != nil {
		return err
	}
	logf("PARSE Total Time: %v", time.Since(startTime))
	if err := conll.WriteFile(outConll, parsed); err != nil {
		return err
	}
	logf("Wrote %d parsed sentences to %s", len(parsed), outConll)
	return nil
}

func readParseInput(conllFile, taggedFile string) (conll.Sentences, error) {
	if taggedFile == "" {
		return conll.ReadFile(conllFile, 0)
	}
	tagged, err := taggedsentence.ReadFile(taggedFile, 0)
	if err != nil {
		return nil, err
	}
	sents := make(conll.Sentences, len(tagged))
	for i, sent := range tagged {
		sents[i] = conll.FromTagged(sent)
	}
	return sents, nil
}

func ParseCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       ParseCmdRun,
		UsageLine: "parse <file options> [arguments]",
		Short:     "parses tagged sentences with a trained model",
		Long: `
parses POS tagged CoNLL-X sentences with a trained model

	$ ./dense parse -m <model dir> -in <conll> -oc <conll> [options]
	$ ./dense parse -m <model dir> -it <tagged sentences> -oc <conll> [options]

tagged input holds one sentence per line of space separated word/TAG tokens

`,
		Flag: *flag.NewFlagSet("parse", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&modelDir, "m", "models", "Model directory written by train")
	cmd.Flag.StringVar(&input, "in", "", "Input CoNLL file")
	cmd.Flag.StringVar(&inputTagged, "it", "", "Input tagged sentences file")
	cmd.Flag.StringVar(&outConll, "oc", "", "Output CoNLL file")
	cmd.Flag.IntVar(&parseBatchSize, "bs", 32, "Sentences per batch")
	cmd.Flag.BoolVar(&quiet, "quiet", false, "Only log errors")
	return cmd
}
