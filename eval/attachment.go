package eval

import "fmt"

// AttachmentResult compares the heads and labels of one predicted sentence
// with gold, both indexed by token with ROOT at 0. The returned Result
// counts labeled attachments; its Other field holds the unlabeled Result.
// Every token counts, punctuation included.
func AttachmentResult(predHeads, predLabels, goldHeads, goldLabels []int) (*Result, error) {
	if len(predHeads) != len(goldHeads) || len(predLabels) != len(goldLabels) || len(predHeads) != len(predLabels) {
		return nil, fmt.Errorf("sentence length mismatch: %d predicted, %d gold", len(predHeads), len(goldHeads))
	}
	las, uas := &Result{}, &Result{}
	las.Other = uas
	for d := 1; d < len(goldHeads); d++ {
		if predHeads[d] != goldHeads[d] {
			las.FP++
			uas.FP++
			continue
		}
		uas.TP++
		if predLabels[d] == goldLabels[d] {
			las.TP++
		} else {
			las.FP++
		}
	}
	return las, nil
}

// An Accumulator collects the loss and attachment counts of one epoch
// phase. A fresh one is made per phase and handed back to the caller.
type Accumulator struct {
	Loss    float64
	Batches int

	Tokens           int
	UnlabeledCorrect int
	LabeledCorrect   int
	Exact            int
	Sentences        int

	Labeled, Unlabeled Total

	lossTokens int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// AddLoss records the mean loss of one batch weighted by its token count.
func (a *Accumulator) AddLoss(loss float64, tokens int) {
	a.Loss += loss * float64(tokens)
	a.Batches++
	a.lossTokens += tokens
}

func (a *Accumulator) AddSentence(predHeads, predLabels, goldHeads, goldLabels []int) error {
	result, err := AttachmentResult(predHeads, predLabels, goldHeads, goldLabels)
	if err != nil {
		return err
	}
	unlabeled := result.Other.(*Result)
	a.Labeled.Add(result)
	a.Unlabeled.Add(unlabeled)
	a.Tokens += len(goldHeads) - 1
	a.UnlabeledCorrect += unlabeled.TP
	a.LabeledCorrect += result.TP
	if unlabeled.Incorrect() == 0 {
		a.Exact++
	}
	a.Sentences++
	return nil
}

// MeanLoss is the loss per real token over the batches seen.
func (a *Accumulator) MeanLoss() float64 {
	if a.lossTokens == 0 {
		return 0
	}
	return a.Loss / float64(a.lossTokens)
}

func (a *Accumulator) UAS() float64 {
	return ratio(a.UnlabeledCorrect, a.Tokens)
}

func (a *Accumulator) LAS() float64 {
	return ratio(a.LabeledCorrect, a.Tokens)
}

func (a *Accumulator) UEM() float64 {
	return ratio(a.Exact, a.Sentences)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
