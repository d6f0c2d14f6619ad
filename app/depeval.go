package app

import (
	"fmt"
	"log"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"dense/eval"
	"dense/nlp/format/conll"
	"dense/util"
)

func DepEvalConfigOut() {
	log.Println("Configuration")
	log.Println()
	log.Println("Data")
	log.Printf("Parsed result file:\t%s", input)
	log.Printf("Gold file:\t\t%s", inputGold)
}

// headsAndLabels maps a sentence onto parallel head and relation id slices
// indexed by token, ROOT at 0.
func headsAndLabels(sent conll.Sentence, eRel *util.EnumSet) ([]int, []int) {
	heads := sent.Heads()
	labels := make([]int, len(sent)+1)
	for i, row := range sent {
		labels[i+1], _ = eRel.Add(row.DepRel)
	}
	return heads, labels
}

// DepEvalConll scores predicted sentences against gold, which must hold
// the same sentences in the same order.
func DepEvalConll(pred, gold conll.Sentences) (*eval.Accumulator, error) {
	if len(pred) != len(gold) {
		return nil, fmt.Errorf("evaluation set sizes are different: %d predicted, %d gold", len(pred), len(gold))
	}
	eRel := util.NewEnumSet(APPROX_RELS)
	acc := eval.NewAccumulator()
	for i := range gold {
		if len(pred[i]) != len(gold[i]) {
			return nil, fmt.Errorf("sentence %d: %d predicted tokens, %d gold", i+1, len(pred[i]), len(gold[i]))
		}
		predHeads, predLabels := headsAndLabels(pred[i], eRel)
		goldHeads, goldLabels := headsAndLabels(gold[i], eRel)
		if err := acc.AddSentence(predHeads, predLabels, goldHeads, goldLabels); err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i+1, err)
		}
	}
	return acc, nil
}

func DepEvalCmdRun(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"p", "g"}); err != nil {
		return err
	}
	if err := verifyInputs(input, inputGold); err != nil {
		return err
	}
	if allOut {
		DepEvalConfigOut()
	}
	pred, err := conll.ReadFile(input, 0)
	if err != nil {
		return err
	}
	logf("Read %d sentences from %s", len(pred), input)
	gold, err := conll.ReadFile(inputGold, 0)
	if err != nil {
		return err
	}
	logf("Read %d sentences from %s", len(gold), inputGold)

	acc, err := DepEvalConll(pred, gold)
	if err != nil {
		return err
	}
	log.Println("Result (UAS, LAS, UEM #, UEM %): ", acc.UAS(), acc.LAS(), acc.Exact, acc.UEM(), "TruePos:", acc.LabeledCorrect, "in", acc.Tokens)
	return nil
}

func DepEvalCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       DepEvalCmdRun,
		UsageLine: "depeval <file options> [arguments]",
		Short:     "runs dependency eval",
		Long: `
runs dependency eval

	$ ./dense depeval -p <conll> -g <conll> [options]

`,
		Flag: *flag.NewFlagSet("depeval", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&input, "p", "", "Parse Result Conll File")
	cmd.Flag.StringVar(&inputGold, "g", "", "Gold Conll File")
	return cmd
}
