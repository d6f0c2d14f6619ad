package graph

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	arborescence "dense/alg/graph"
	"dense/alg/nn"
	"dense/nlp/parser/dependency"
)

// labels of the "Dogs bark loudly" fixture
const (
	relRoot = iota
	relNsubj
	relAdvmod
	numRels
)

func testConfig() Config {
	return Config{
		WordDim:         8,
		POSDim:          4,
		HiddenSize:      12,
		ArcHidden:       10,
		LabelHidden:     6,
		UsePOS:          true,
		UseContext:      true,
		SingleRoot:      true,
		LabelLossWeight: 1,
		DecodeWorkers:   2,
		Seed:            1,
	}
}

// ROOT Dogs bark loudly
func dogsBark() *Instance {
	return &Instance{
		Words:  []int{2, 3, 4, 5},
		POS:    []int{2, 3, 4, 5},
		Heads:  []int{arborescence.NoHead, 2, 0, 2},
		Labels: []int{0, relNsubj, relRoot, relAdvmod},
	}
}

func randomInstance(rnd *rand.Rand, n int) *Instance {
	inst := &Instance{
		Words:  make([]int, n+1),
		POS:    make([]int, n+1),
		Heads:  make([]int, n+1),
		Labels: make([]int, n+1),
	}
	inst.Words[0], inst.POS[0], inst.Heads[0] = 2, 2, arborescence.NoHead
	for i := 1; i <= n; i++ {
		inst.Words[i] = 3 + rnd.Intn(7)
		inst.POS[i] = 3 + rnd.Intn(3)
		// attach to an earlier token: always a tree
		inst.Heads[i] = rnd.Intn(i)
		inst.Labels[i] = rnd.Intn(numRels)
	}
	return inst
}

func newTestParser(t *testing.T) *Parser {
	p, err := NewParser(testConfig(), 10, 6, numRels)
	if err != nil {
		t.Fatal(err.Error())
	}
	return p
}

// fixedScores gives every arc of heads a score of 5 and every other arc 0;
// label vectors favor labels[d] for every head.
func fixedScores(heads, labels []int) *Scores {
	n := len(heads)
	arc := make([][]float64, n)
	lbl := make([][][]float64, n)
	for h := range arc {
		arc[h] = make([]float64, n)
		lbl[h] = make([][]float64, n)
		for d := range arc[h] {
			if masked(h, d) {
				arc[h][d] = math.Inf(-1)
				continue
			}
			if heads[d] == h {
				arc[h][d] = 5
			}
			lbl[h][d] = make([]float64, numRels)
			lbl[h][d][labels[d]] = 5
		}
	}
	return NewScores(arc, lbl)
}

func TestDogsBarkLoudly(t *testing.T) {
	inst := dogsBark()
	batch := NewBatch([]*Instance{inst})

	gold := fixedScores(inst.Heads, inst.Labels)
	// everything chained left to right, every label wrong
	other := fixedScores([]int{arborescence.NoHead, 0, 1, 2}, []int{0, relRoot, relAdvmod, relNsubj})

	goldLoss := Loss([]*Scores{gold}, batch, 1)
	otherLoss := Loss([]*Scores{other}, batch, 1)
	if goldLoss.Tokens != 3 {
		t.Errorf("Expected 3 tokens, got %d", goldLoss.Tokens)
	}
	if !(goldLoss.Loss < otherLoss.Loss) {
		t.Errorf("Expected gold favoring loss %v below %v", goldLoss.Loss, otherLoss.Loss)
	}
	if !(goldLoss.ArcLoss < otherLoss.ArcLoss) || !(goldLoss.LabelLoss < otherLoss.LabelLoss) {
		t.Errorf("Expected both terms lower: arc %v/%v label %v/%v",
			goldLoss.ArcLoss, otherLoss.ArcLoss, goldLoss.LabelLoss, otherLoss.LabelLoss)
	}

	// every other head assignment, trees or not, scores a higher loss
	others := 0
	heads := []int{arborescence.NoHead, 0, 0, 0}
	for h1 := 0; h1 < 4; h1++ {
		for h2 := 0; h2 < 4; h2++ {
			for h3 := 0; h3 < 4; h3++ {
				heads[1], heads[2], heads[3] = h1, h2, h3
				if h1 == 1 || h2 == 2 || h3 == 3 || reflect.DeepEqual(heads, inst.Heads) {
					continue
				}
				others++
				loss := Loss([]*Scores{fixedScores(heads, inst.Labels)}, batch, 1)
				if !(goldLoss.Loss < loss.Loss) {
					t.Errorf("Expected gold favoring loss %v below %v for heads %v", goldLoss.Loss, loss.Loss, heads)
				}
			}
		}
	}
	if others != 26 {
		t.Errorf("Expected 26 other head assignments, got %d", others)
	}

	dec := &Decoder{SingleRoot: true}
	tree := dec.Decode(gold, inst.Len())
	if !reflect.DeepEqual(tree.Heads, inst.Heads) {
		t.Errorf("Expected heads %v, got %v", inst.Heads, tree.Heads)
	}
	if !reflect.DeepEqual(tree.Labels[1:], inst.Labels[1:]) {
		t.Errorf("Expected labels %v, got %v", inst.Labels[1:], tree.Labels[1:])
	}
	if tree.Score != 15 {
		t.Errorf("Expected tree score 15, got %v", tree.Score)
	}
}

func TestLossSkipsUnknownRelation(t *testing.T) {
	inst := dogsBark()
	scores := fixedScores(inst.Heads, inst.Labels)
	known := Loss([]*Scores{scores}, NewBatch([]*Instance{inst}), 1)

	inst.Labels[3] = dependency.NoRelation
	unknown := Loss([]*Scores{scores}, NewBatch([]*Instance{inst}), 1)
	if !unknown.Finite() || unknown.ArcLoss != known.ArcLoss {
		t.Errorf("Expected the same arc loss, got %v and %v", unknown.ArcLoss, known.ArcLoss)
	}
	if len(unknown.LabelGrads[0]) != 2 {
		t.Errorf("Expected label gradients for 2 tokens, got %d", len(unknown.LabelGrads[0]))
	}
	for _, lg := range unknown.LabelGrads[0] {
		if lg.Dependent == 3 {
			t.Error("Token without a known relation got a label gradient")
		}
	}
}

func TestLossIgnoresPadding(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	inst := randomInstance(rnd, 4)
	unpadded := NewBatch([]*Instance{inst})
	base := fixedScores(inst.Heads, inst.Labels)

	width := inst.Len() + 3
	padded := &Batch{
		Instances: []*Instance{pad(inst, width)},
		Lengths:   []int{inst.Len()},
		Mask:      [][]bool{make([]bool, width)},
		Width:     width,
	}
	for i := 1; i < inst.Len(); i++ {
		padded.Mask[0][i] = true
	}
	arc := make([][]float64, width)
	lbl := make([][][]float64, width)
	for h := range arc {
		arc[h] = make([]float64, width)
		lbl[h] = make([][]float64, width)
		for d := range arc[h] {
			switch {
			case masked(h, d):
				arc[h][d] = math.Inf(-1)
			case h < inst.Len() && d < inst.Len():
				arc[h][d] = base.Arc[h][d]
				lbl[h][d] = base.Label(h, d)
			default:
				arc[h][d] = rnd.NormFloat64() * 100
				lbl[h][d] = []float64{rnd.NormFloat64(), rnd.NormFloat64(), rnd.NormFloat64()}
			}
		}
	}

	expected := Loss([]*Scores{base}, unpadded, 0.5)
	got := Loss([]*Scores{NewScores(arc, lbl)}, padded, 0.5)
	if math.Abs(expected.Loss-got.Loss) > 1e-12 {
		t.Errorf("Padding changed the loss: %v vs %v", expected.Loss, got.Loss)
	}
	for h := range got.ArcGrads[0] {
		for d, g := range got.ArcGrads[0][h] {
			if h >= inst.Len() || d >= inst.Len() {
				if g != 0 {
					t.Errorf("Padding arc %d -> %d got gradient %v", h, d, g)
				}
			} else if math.Abs(g-expected.ArcGrads[0][h][d]) > 1e-12 {
				t.Errorf("Arc %d -> %d gradient %v, expected %v", h, d, g, expected.ArcGrads[0][h][d])
			}
		}
	}
}

func TestParserLossIgnoresBatchPadding(t *testing.T) {
	p := newTestParser(t)
	rnd := rand.New(rand.NewSource(9))
	short, long := randomInstance(rnd, 2), randomInstance(rnd, 7)

	alone := NewBatch([]*Instance{short})
	scores, _ := p.Forward(alone)
	expected := Loss(scores, alone, 1)

	together := NewBatch([]*Instance{short, long})
	scores, _ = p.Forward(together)
	// score the short sentence's padded view on its own
	shortOnly := &Batch{
		Instances: together.Instances[:1],
		Lengths:   together.Lengths[:1],
		Mask:      together.Mask[:1],
		Width:     together.Width,
	}
	got := Loss(scores[:1], shortOnly, 1)
	if math.Abs(expected.Loss-got.Loss) > 1e-12 {
		t.Errorf("Batch padding changed the loss: %v vs %v", expected.Loss, got.Loss)
	}
}

func batchLoss(p *Parser, batch *Batch) float64 {
	scores, _ := p.Forward(batch)
	return Loss(scores, batch, p.Config.LabelLossWeight).Loss
}

func TestGradients(t *testing.T) {
	p := newTestParser(t)
	rnd := rand.New(rand.NewSource(11))
	batch := NewBatch([]*Instance{randomInstance(rnd, 3), randomInstance(rnd, 5)})

	params := p.Params()
	nn.ZeroGrads(params)
	scores, encoded := p.Forward(batch)
	loss := Loss(scores, batch, p.Config.LabelLossWeight)
	for i, sc := range scores {
		p.Features.Backward(encoded[i], p.Scorer.Backward(sc, loss.ArcGrads[i], loss.LabelGrads[i]))
	}

	const eps = 1e-6
	for _, param := range params {
		values := param.Value.RawMatrix().Data
		grads := param.Grad.RawMatrix().Data
		for k := 0; k < 5; k++ {
			j := rnd.Intn(len(values))
			orig := values[j]
			values[j] = orig + eps
			plus := batchLoss(p, batch)
			values[j] = orig - eps
			minus := batchLoss(p, batch)
			values[j] = orig

			numeric := (plus - minus) / (2 * eps)
			if math.Abs(numeric-grads[j]) > 1e-6+1e-4*math.Abs(numeric) {
				t.Errorf("%s[%d]: analytic gradient %v, numeric %v", param.Name, j, grads[j], numeric)
			}
		}
	}
}

func TestTrainingFitsSentence(t *testing.T) {
	p := newTestParser(t)
	opt := nn.NewAdam(0.01)
	inst := dogsBark()
	batch := NewBatch([]*Instance{inst})

	initial := batchLoss(p, batch)
	for i := 0; i < 300; i++ {
		if _, err := p.TrainStep(batch, opt); err != nil {
			t.Fatal(err.Error())
		}
	}
	final, trees, err := p.Evaluate(batch)
	if err != nil {
		t.Fatal(err.Error())
	}
	if !(final.Loss < initial) {
		t.Errorf("Expected training to lower the loss: %v -> %v", initial, final.Loss)
	}
	if !reflect.DeepEqual(trees[0].Heads, inst.Heads) || !reflect.DeepEqual(trees[0].Labels[1:], inst.Labels[1:]) {
		t.Errorf("Expected the gold tree, got heads %v labels %v", trees[0].Heads, trees[0].Labels)
	}
}

func TestDecodedTreesAreValid(t *testing.T) {
	p := newTestParser(t)
	rnd := rand.New(rand.NewSource(13))
	var instances []*Instance
	for i := 0; i < 20; i++ {
		instances = append(instances, randomInstance(rnd, rnd.Intn(9)))
	}
	for _, batch := range Batches(instances, 6) {
		trees, err := p.Parse(batch)
		if err != nil {
			t.Fatal(err.Error())
		}
		again, _ := p.Parse(batch)
		for i, tree := range trees {
			if len(tree.Heads) != batch.Lengths[i] {
				t.Errorf("Expected %d heads, got %d", batch.Lengths[i], len(tree.Heads))
			}
			if err := dependency.Validate(tree.Heads, true); err != nil {
				t.Errorf("Decoded tree %v is invalid: %v", tree.Heads, err)
			}
			if !reflect.DeepEqual(tree, again[i]) {
				t.Errorf("Decoding is not deterministic: %v vs %v", tree, again[i])
			}
		}
	}
}

func TestRootOnlySentence(t *testing.T) {
	p := newTestParser(t)
	inst := &Instance{Words: []int{2}, POS: []int{2}, Heads: []int{arborescence.NoHead}, Labels: []int{0}}
	batch := NewBatch([]*Instance{inst})
	loss, trees, err := p.Evaluate(batch)
	if err != nil {
		t.Fatal(err.Error())
	}
	if loss.Loss != 0 || loss.Tokens != 0 {
		t.Errorf("Expected empty loss, got %v over %d tokens", loss.Loss, loss.Tokens)
	}
	if len(trees[0].Heads) != 1 || trees[0].Heads[0] != arborescence.NoHead {
		t.Errorf("Expected an empty tree, got %v", trees[0].Heads)
	}
}

func TestNumericInstability(t *testing.T) {
	p := newTestParser(t)
	opt := nn.NewAdam(0.01)
	batch := NewBatch([]*Instance{dogsBark()})

	p.Scorer.V.Value.Set(0, 0, math.NaN())
	before := p.Snapshot()
	if _, err := p.TrainStep(batch, opt); !errors.Is(err, ErrNumericInstability) {
		t.Fatalf("Expected ErrNumericInstability, got %v", err)
	}
	if opt.Steps() != 0 {
		t.Error("Optimizer stepped on a NaN loss")
	}
	after := p.Snapshot()
	for name, data := range before {
		for i, v := range data.Data {
			w := after[name].Data[i]
			if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
				t.Errorf("Parameter %s changed at %d", name, i)
			}
		}
	}
	if _, err := p.Parse(batch); !errors.Is(err, ErrNumericInstability) {
		t.Errorf("Expected decoding NaN scores to fail, got %v", err)
	}
}

func TestSnapshotRebuildsParser(t *testing.T) {
	p := newTestParser(t)
	opt := nn.NewAdam(0.01)
	batch := NewBatch([]*Instance{dogsBark()})
	for i := 0; i < 3; i++ {
		if _, err := p.TrainStep(batch, opt); err != nil {
			t.Fatal(err.Error())
		}
	}
	cfg := testConfig()
	cfg.Seed = 99
	rebuilt, err := NewParser(cfg, 10, 6, numRels)
	if err != nil {
		t.Fatal(err.Error())
	}
	if err := rebuilt.Restore(p.Snapshot()); err != nil {
		t.Fatal(err.Error())
	}
	if batchLoss(p, batch) != batchLoss(rebuilt, batch) {
		t.Error("Restored parser scores differently")
	}
}

func TestConfigValidateReportsFirstField(t *testing.T) {
	cfg := testConfig()
	cfg.ArcHidden, cfg.LabelHidden, cfg.HiddenSize = 0, 0, 0
	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		if err == nil || !strings.HasPrefix(err.Error(), "hidden_size") {
			t.Fatalf("Expected the hidden_size error first, got %v", err)
		}
	}
	if err := testConfig().Validate(); err != nil {
		t.Error(err.Error())
	}
}
