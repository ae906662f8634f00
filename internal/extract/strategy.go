package extract

import "context"

// Strategy is one way of extracting a single entity kind from text.
// Attempt reports ok=false when the entity is absent.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, text string) (string, bool)
}

type funcStrategy struct {
	name string
	fn   func(text string) (string, bool)
}

func (s funcStrategy) Name() string { return s.name }

func (s funcStrategy) Attempt(_ context.Context, text string) (string, bool) {
	return s.fn(text)
}

// StrategyFunc wraps a pure function as a Strategy.
func StrategyFunc(name string, fn func(text string) (string, bool)) Strategy {
	return funcStrategy{name: name, fn: fn}
}
