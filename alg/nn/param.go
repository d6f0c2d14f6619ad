package nn

import (
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// A Param is a named trainable matrix with its accumulated gradient.
// Column vectors (biases) are r x 1.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam draws values uniformly from [-scale, scale]; a nil rnd leaves
// them at zero.
func NewParam(name string, r, c int, rnd *rand.Rand, scale float64) *Param {
	p := &Param{
		Name:  name,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
	if rnd != nil {
		data := p.Value.RawMatrix().Data
		for i := range data {
			data[i] = (2*rnd.Float64() - 1) * scale
		}
	}
	return p
}

// GlorotScale is the uniform Xavier/Glorot bound for an r x c matrix.
func GlorotScale(r, c int) float64 {
	return math.Sqrt(6.0 / float64(r+c))
}

func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

func (p *Param) Size() int {
	r, c := p.Value.Dims()
	return r * c
}

func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// GradNorm is the L2 norm of all gradients taken together.
func GradNorm(params []*Param) float64 {
	var sum float64
	for _, p := range params {
		n := floats.Norm(p.Grad.RawMatrix().Data, 2)
		sum += n * n
	}
	return math.Sqrt(sum)
}

// ClipGradNorm rescales all gradients so their joint norm is at most
// maxNorm, and returns the norm before clipping. maxNorm <= 0 disables it.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	norm := GradNorm(params)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}
	scale := maxNorm / norm
	for _, p := range params {
		p.Grad.Scale(scale, p.Grad)
	}
	return norm
}

// Finite reports whether every value and gradient is a finite number.
func Finite(params []*Param) bool {
	for _, p := range params {
		for _, m := range []*mat.Dense{p.Value, p.Grad} {
			for _, x := range m.RawMatrix().Data {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					return false
				}
			}
		}
	}
	return true
}

type ParamData struct {
	Rows, Cols int
	Data       []float64
}

// A Snapshot is a detached copy of parameter values keyed by name.
type Snapshot map[string]ParamData

func TakeSnapshot(params []*Param) Snapshot {
	snap := make(Snapshot, len(params))
	for _, p := range params {
		r, c := p.Value.Dims()
		data := make([]float64, r*c)
		copy(data, p.Value.RawMatrix().Data)
		snap[p.Name] = ParamData{Rows: r, Cols: c, Data: data}
	}
	return snap
}

// Restore copies snapshot values into params; every param must be present
// with the same shape.
func (s Snapshot) Restore(params []*Param) error {
	for _, p := range params {
		data, exists := s[p.Name]
		if !exists {
			return fmt.Errorf("parameter %s missing from snapshot", p.Name)
		}
		r, c := p.Value.Dims()
		if data.Rows != r || data.Cols != c {
			return fmt.Errorf("parameter %s: snapshot shape %dx%d, model shape %dx%d", p.Name, data.Rows, data.Cols, r, c)
		}
		copy(p.Value.RawMatrix().Data, data.Data)
	}
	return nil
}

func (s Snapshot) Write(writer io.Writer) error {
	return gob.NewEncoder(writer).Encode(s)
}

func ReadSnapshot(reader io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(reader).Decode(&snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func WriteSnapshotFile(filename string, s Snapshot) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return s.Write(file)
}

func ReadSnapshotFile(filename string) (Snapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadSnapshot(file)
}
