package nn

import (
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"os"
)

// Adam keeps first and second moment estimates per parameter name. With a
// non-zero WeightDecay it applies decoupled (AdamW) decay.
type Adam struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64

	step int
	m    map[string][]float64
	v    map[string][]float64
}

func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		m:       make(map[string][]float64),
		v:       make(map[string][]float64),
	}
}

func (opt *Adam) Steps() int {
	return opt.step
}

// Step updates params in place from their accumulated gradients.
func (opt *Adam) Step(params []*Param) {
	opt.step++
	biasCorrection1 := 1.0 - math.Pow(opt.Beta1, float64(opt.step))
	biasCorrection2 := 1.0 - math.Pow(opt.Beta2, float64(opt.step))

	for _, p := range params {
		values, grads := p.Value.RawMatrix().Data, p.Grad.RawMatrix().Data
		if opt.m[p.Name] == nil {
			opt.m[p.Name] = make([]float64, len(values))
			opt.v[p.Name] = make([]float64, len(values))
		}
		m, v := opt.m[p.Name], opt.v[p.Name]
		for j, grad := range grads {
			m[j] = opt.Beta1*m[j] + (1-opt.Beta1)*grad
			v[j] = opt.Beta2*v[j] + (1-opt.Beta2)*grad*grad
			mHat := m[j] / biasCorrection1
			vHat := v[j] / biasCorrection2
			values[j] -= opt.LR * (mHat/(math.Sqrt(vHat)+opt.Epsilon) + opt.WeightDecay*values[j])
		}
	}
}

// AdamState is the serializable form of an Adam optimizer.
type AdamState struct {
	LR, Beta1, Beta2, Epsilon, WeightDecay float64
	Step                                   int
	M, V                                   map[string][]float64
}

func (opt *Adam) State() *AdamState {
	state := &AdamState{
		LR:          opt.LR,
		Beta1:       opt.Beta1,
		Beta2:       opt.Beta2,
		Epsilon:     opt.Epsilon,
		WeightDecay: opt.WeightDecay,
		Step:        opt.step,
		M:           make(map[string][]float64, len(opt.m)),
		V:           make(map[string][]float64, len(opt.v)),
	}
	for k, m := range opt.m {
		state.M[k] = append([]float64(nil), m...)
		state.V[k] = append([]float64(nil), opt.v[k]...)
	}
	return state
}

func (opt *Adam) LoadState(state *AdamState) error {
	if state == nil {
		return fmt.Errorf("nil optimizer state")
	}
	for k, m := range state.M {
		if v, exists := state.V[k]; !exists || len(v) != len(m) {
			return fmt.Errorf("optimizer state for %s has mismatched moments", k)
		}
	}
	opt.LR, opt.Beta1, opt.Beta2 = state.LR, state.Beta1, state.Beta2
	opt.Epsilon, opt.WeightDecay = state.Epsilon, state.WeightDecay
	opt.step = state.Step
	opt.m = make(map[string][]float64, len(state.M))
	opt.v = make(map[string][]float64, len(state.V))
	for k, m := range state.M {
		opt.m[k] = append([]float64(nil), m...)
		opt.v[k] = append([]float64(nil), state.V[k]...)
	}
	return nil
}

func WriteAdamFile(filename string, opt *Adam) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteAdam(file, opt)
}

func WriteAdam(writer io.Writer, opt *Adam) error {
	return gob.NewEncoder(writer).Encode(opt.State())
}

func ReadAdam(reader io.Reader) (*Adam, error) {
	state := new(AdamState)
	if err := gob.NewDecoder(reader).Decode(state); err != nil {
		return nil, err
	}
	opt := NewAdam(state.LR)
	if err := opt.LoadState(state); err != nil {
		return nil, err
	}
	return opt, nil
}

func ReadAdamFile(filename string) (*Adam, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadAdam(file)
}
