package graph

import (
	"errors"
	"fmt"
)

// ErrNumericInstability is returned when a loss or gradient stops being a
// finite number; no parameter update happens after it.
var ErrNumericInstability = errors.New("numeric instability: loss or gradient is NaN or Inf")

// Config fixes the shape and behavior of a Parser. It is built once from
// the run configuration and not modified afterwards.
type Config struct {
	WordDim     int
	POSDim      int
	HiddenSize  int
	ArcHidden   int
	LabelHidden int

	UsePOS     bool
	UseContext bool
	SingleRoot bool

	LabelLossWeight float64
	DecodeWorkers   int
	ClipNorm        float64
	Seed            int64
}

func (c Config) Validate() error {
	dims := []struct {
		name string
		dim  int
	}{
		{"word_dim", c.WordDim},
		{"hidden_size", c.HiddenSize},
		{"arc_hidden", c.ArcHidden},
		{"label_hidden", c.LabelHidden},
	}
	for _, d := range dims {
		if d.dim <= 0 {
			return fmt.Errorf("%s must be positive, got %d", d.name, d.dim)
		}
	}
	if c.UsePOS && c.POSDim <= 0 {
		return fmt.Errorf("pos_dim must be positive when POS features are used, got %d", c.POSDim)
	}
	if c.LabelLossWeight < 0 {
		return fmt.Errorf("label_loss_weight must not be negative, got %v", c.LabelLossWeight)
	}
	return nil
}
