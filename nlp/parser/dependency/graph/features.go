package graph

import (
	"math/rand"

	"dense/alg/nn"
	"dense/util"
)

// A FeatureProvider turns a sentence into one vector per token, ROOT
// included. Given fixed parameters it is deterministic.
type FeatureProvider interface {
	Features(inst *Instance) *Encoded
	// Backward accumulates parameter gradients given the gradient of the
	// loss with respect to each token vector.
	Backward(enc *Encoded, grads [][]float64)
	Params() []*nn.Param
	Dim() int
}

// Encoded holds the token vectors of one sentence and what Backward needs.
type Encoded struct {
	Vectors [][]float64
	inputs  [][]float64
	inst    *Instance
}

// EmbeddingFeatures concatenates word (and POS) embeddings, optionally over
// a window of one token to each side, and projects them through tanh.
type EmbeddingFeatures struct {
	Words, Tags *nn.Embedding
	Proj, Bias  *nn.Param

	usePOS, useContext bool
}

var _ FeatureProvider = &EmbeddingFeatures{}

func NewEmbeddingFeatures(cfg Config, words, tags int, rnd *rand.Rand) *EmbeddingFeatures {
	f := &EmbeddingFeatures{
		Words:      nn.NewEmbedding("word_emb", words, cfg.WordDim, rnd),
		usePOS:     cfg.UsePOS,
		useContext: cfg.UseContext,
	}
	tokenDim := cfg.WordDim
	if cfg.UsePOS {
		f.Tags = nn.NewEmbedding("pos_emb", tags, cfg.POSDim, rnd)
		tokenDim += cfg.POSDim
	}
	inDim := tokenDim
	if cfg.UseContext {
		inDim *= 3
	}
	f.Proj = nn.NewParam("feat_W", cfg.HiddenSize, inDim, rnd, nn.GlorotScale(cfg.HiddenSize, inDim))
	f.Bias = nn.NewParam("feat_b", cfg.HiddenSize, 1, nil, 0)
	return f
}

func (f *EmbeddingFeatures) Dim() int {
	r, _ := f.Proj.Value.Dims()
	return r
}

func (f *EmbeddingFeatures) Params() []*nn.Param {
	params := []*nn.Param{f.Words.Param}
	if f.usePOS {
		params = append(params, f.Tags.Param)
	}
	return append(params, f.Proj, f.Bias)
}

// window positions outside the sentence read the PAD token
func (f *EmbeddingFeatures) window(i int) []int {
	if !f.useContext {
		return []int{i}
	}
	return []int{i - 1, i, i + 1}
}

func (f *EmbeddingFeatures) token(inst *Instance, i int) []float64 {
	word, tag := util.PAD_ID, util.PAD_ID
	if i >= 0 && i < inst.Len() {
		word, tag = inst.Words[i], inst.POS[i]
	}
	if !f.usePOS {
		return f.Words.Lookup(word)
	}
	return nn.Concat(f.Words.Lookup(word), f.Tags.Lookup(tag))
}

func (f *EmbeddingFeatures) Features(inst *Instance) *Encoded {
	enc := &Encoded{
		Vectors: make([][]float64, inst.Len()),
		inputs:  make([][]float64, inst.Len()),
		inst:    inst,
	}
	for i := range enc.Vectors {
		window := f.window(i)
		tokens := make([][]float64, len(window))
		for k, j := range window {
			tokens[k] = f.token(inst, j)
		}
		input := nn.Concat(tokens...)
		enc.inputs[i] = input
		enc.Vectors[i] = nn.Tanh(nn.Affine(f.Proj.Value, f.Bias.Value, input))
	}
	return enc
}

func (f *EmbeddingFeatures) Backward(enc *Encoded, grads [][]float64) {
	wordDim := f.Words.Dim()
	for i, g := range grads {
		if g == nil {
			continue
		}
		dz := nn.TanhGrad(enc.Vectors[i], g)
		nn.AccumulateOuter(f.Proj, dz, enc.inputs[i])
		nn.AccumulateBias(f.Bias, dz)
		dx := nn.MulT(f.Proj.Value, dz)

		offset := 0
		for _, j := range f.window(i) {
			word, tag := util.PAD_ID, util.PAD_ID
			if j >= 0 && j < enc.inst.Len() {
				word, tag = enc.inst.Words[j], enc.inst.POS[j]
			}
			f.Words.Backward(word, dx[offset:offset+wordDim])
			offset += wordDim
			if f.usePOS {
				tagDim := f.Tags.Dim()
				f.Tags.Backward(tag, dx[offset:offset+tagDim])
				offset += tagDim
			}
		}
	}
}
