package graph

import (
	"fmt"
	"math/rand"

	"dense/alg/nn"
	"dense/nlp/parser/dependency"
	nlp "dense/nlp/types"
	"dense/util"
)

// Parser is a graph-based dependency parser that selects a head for every
// token from the scores of all candidate arcs, then decodes a tree.
type Parser struct {
	Config   Config
	Features FeatureProvider
	Scorer   *ArcScorer
	Decoder  *Decoder
}

// NewParser initializes parameters from cfg.Seed for vocabularies of the
// given sizes.
func NewParser(cfg Config, words, tags, labels int) (*Parser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if labels <= 0 {
		return nil, fmt.Errorf("parser needs at least one relation label")
	}
	rnd := rand.New(rand.NewSource(cfg.Seed))
	features := NewEmbeddingFeatures(cfg, words, tags, rnd)
	return &Parser{
		Config:   cfg,
		Features: features,
		Scorer:   NewArcScorer(cfg, features.Dim(), labels, rnd),
		Decoder:  &Decoder{SingleRoot: cfg.SingleRoot},
	}, nil
}

func (p *Parser) Params() []*nn.Param {
	return append(p.Features.Params(), p.Scorer.Params()...)
}

func (p *Parser) Snapshot() nn.Snapshot {
	return nn.TakeSnapshot(p.Params())
}

func (p *Parser) Restore(snap nn.Snapshot) error {
	return snap.Restore(p.Params())
}

// Forward scores every sentence of the batch.
func (p *Parser) Forward(batch *Batch) ([]*Scores, []*Encoded) {
	scores := make([]*Scores, len(batch.Instances))
	encoded := make([]*Encoded, len(batch.Instances))
	for i, inst := range batch.Instances {
		encoded[i] = p.Features.Features(inst)
		scores[i] = p.Scorer.Forward(encoded[i].Vectors)
	}
	return scores, encoded
}

// TrainStep runs one forward/backward pass over a gold batch and applies
// an optimizer step. On a non-finite loss or gradient it returns
// ErrNumericInstability and leaves the parameters untouched.
func (p *Parser) TrainStep(batch *Batch, opt *nn.Adam) (*LossResult, error) {
	params := p.Params()
	nn.ZeroGrads(params)
	scores, encoded := p.Forward(batch)
	loss := Loss(scores, batch, p.Config.LabelLossWeight)
	if !loss.Finite() {
		return loss, fmt.Errorf("training loss %v: %w", loss.Loss, ErrNumericInstability)
	}
	for i, sc := range scores {
		dvec := p.Scorer.Backward(sc, loss.ArcGrads[i], loss.LabelGrads[i])
		p.Features.Backward(encoded[i], dvec)
	}
	nn.ClipGradNorm(params, p.Config.ClipNorm)
	if !nn.Finite(params) {
		return loss, fmt.Errorf("gradient: %w", ErrNumericInstability)
	}
	opt.Step(params)
	return loss, nil
}

// Evaluate scores a gold batch, reports its loss without touching the
// parameters, and decodes it.
func (p *Parser) Evaluate(batch *Batch) (*LossResult, []*Tree, error) {
	scores, _ := p.Forward(batch)
	loss := Loss(scores, batch, p.Config.LabelLossWeight)
	if !loss.Finite() {
		return loss, nil, fmt.Errorf("evaluation loss %v: %w", loss.Loss, ErrNumericInstability)
	}
	trees, err := p.Decoder.DecodeBatch(scores, batch.Lengths, p.Config.DecodeWorkers)
	return loss, trees, err
}

// Parse decodes a batch that may carry no gold trees.
func (p *Parser) Parse(batch *Batch) ([]*Tree, error) {
	scores, _ := p.Forward(batch)
	return p.Decoder.DecodeBatch(scores, batch.Lengths, p.Config.DecodeWorkers)
}

// Graph attaches a decoded tree to the nodes of the sentence it was
// decoded from.
func (t *Tree) Graph(nodes []nlp.DepNode, eRel *util.EnumSet) *dependency.BasicDepGraph {
	return dependency.NewBasicDepGraph(nodes, t.Heads, t.Labels, eRel)
}
