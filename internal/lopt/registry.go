package lopt

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicate is returned when a name is registered twice.
var ErrDuplicate = errors.New("learned optimizer already registered")

// Factory builds a learned optimizer with default configuration.
type Factory func() LearnedOptimizer

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func init() {
	list := map[string]Factory{
		"meta_sgd_momentum": func() LearnedOptimizer {
			return NewMetaSGDMomentum(MetaSGDMomentumConfig{})
		},
		"per_param_mlp": func() LearnedOptimizer {
			return NewPerParamMLP(PerParamMLPConfig{})
		},
		"rnn_hyper_controller": func() LearnedOptimizer {
			return NewRNNHyperController(RNNHyperControllerConfig{})
		},
	}
	for name, f := range list {
		if err := Register(name, f); err != nil {
			panic(err.Error())
		}
	}
}

// Register adds a learned optimizer under name.
func Register(name string, f Factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if name == "" || f == nil {
		return fmt.Errorf("register %q: name and factory are required", name)
	}
	if _, ok := registry[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	registry[name] = f
	return nil
}

// New returns the registered learned optimizer called name.
func New(name string) (LearnedOptimizer, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown learned optimizer %q", name)
	}
	return f(), nil
}

// Names lists registered learned optimizers in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
