package app

import (
	"fmt"
	"log"
	"time"

	"github.com/gosuri/uiprogress"

	"dense/alg/nn"
	"dense/eval"
	"dense/nlp/parser/dependency/graph"
)

type Phase int

const (
	TRAIN Phase = iota
	DEV
	TEST
)

func (p Phase) String() string {
	switch p {
	case TRAIN:
		return "TRAIN"
	case DEV:
		return "DEV"
	case TEST:
		return "TEST"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// EpochResult is what one pass over a data set produces. Trees is nil for
// TRAIN and otherwise holds one decoded tree per sentence, in batch order.
type EpochResult struct {
	Phase    Phase
	Epoch    int
	Acc      *eval.Accumulator
	Trees    []*graph.Tree
	Duration time.Duration
}

// RunEpoch makes one pass over batches. TRAIN updates the parameters after
// every batch; DEV and TEST only report loss and decode. The parser is not
// shared with anything else while this runs.
func RunEpoch(phase Phase, epoch int, parser *graph.Parser, opt *nn.Adam, batches []*graph.Batch) (*EpochResult, error) {
	prefix := log.Prefix()
	log.SetPrefix(fmt.Sprintf("IT #%d ", epoch))
	defer log.SetPrefix(prefix)

	var bar *uiprogress.Bar
	if !quiet {
		progress := uiprogress.New()
		progress.Start()
		defer progress.Stop()
		bar = progress.AddBar(len(batches))
		bar.AppendCompleted()
		bar.PrependElapsed()
	}

	result := &EpochResult{Phase: phase, Epoch: epoch, Acc: eval.NewAccumulator()}
	startTime := time.Now()
	for i, batch := range batches {
		switch phase {
		case TRAIN:
			loss, err := parser.TrainStep(batch, opt)
			if err != nil {
				return nil, fmt.Errorf("%v batch %d: %w", phase, i, err)
			}
			result.Acc.AddLoss(loss.Loss, loss.Tokens)
		default:
			loss, trees, err := parser.Evaluate(batch)
			if err != nil {
				return nil, fmt.Errorf("%v batch %d: %w", phase, i, err)
			}
			result.Acc.AddLoss(loss.Loss, loss.Tokens)
			for j, tree := range trees {
				gold, n := batch.Instances[j], batch.Lengths[j]
				if err := result.Acc.AddSentence(tree.Heads, tree.Labels, gold.Heads[:n], gold.Labels[:n]); err != nil {
					return nil, fmt.Errorf("%v batch %d sentence %d: %w", phase, i, j, err)
				}
			}
			result.Trees = append(result.Trees, trees...)
		}
		if bar != nil {
			bar.Incr()
		}
	}
	result.Duration = time.Since(startTime)
	if allOut && !quiet {
		log.Printf("%v done in %v: %d batches, mean loss %.4f", phase, result.Duration, len(batches), result.Acc.MeanLoss())
	}
	return result, nil
}
