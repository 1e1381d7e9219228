package optim

import (
	"fmt"
	"sort"
)

var baselines = map[string]func() Optimizer{
	"sgd":      func() Optimizer { return NewSGD(SGDConfig{}) },
	"momentum": func() Optimizer { return NewMomentum(MomentumConfig{}) },
	"adam":     func() Optimizer { return NewAdam(AdamConfig{}) },
}

// Baseline returns a hand-designed optimizer with default hyperparameters.
func Baseline(name string) (Optimizer, error) {
	f, ok := baselines[name]
	if !ok {
		return nil, fmt.Errorf("unknown baseline optimizer %q", name)
	}
	return f(), nil
}

// BaselineNames lists the names accepted by Baseline.
func BaselineNames() []string {
	names := make([]string, 0, len(baselines))
	for n := range baselines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
