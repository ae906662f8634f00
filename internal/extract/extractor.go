package extract

import (
	"context"
	"strings"
)

// Extractor resolves each kind through its ordered strategy chain.
type Extractor struct {
	chains map[Kind][]Strategy
}

// New builds an Extractor from explicit chains.
func New(chains map[Kind][]Strategy) *Extractor {
	cp := make(map[Kind][]Strategy, len(chains))
	for k, v := range chains {
		cp[k] = append([]Strategy(nil), v...)
	}
	return &Extractor{chains: cp}
}

// DefaultChains wires the LLM strategy ahead of the regex fallback for
// every kind except contact information, which is regex-only. A nil
// model yields regex-only chains.
func DefaultChains(model *LLM) map[Kind][]Strategy {
	chains := make(map[Kind][]Strategy, len(Kinds))
	for _, kind := range Kinds {
		var chain []Strategy
		if model != nil && kind != ContactInformation {
			chain = append(chain, model.For(kind))
		}
		chain = append(chain, Regex(kind))
		chains[kind] = chain
	}
	return chains
}

// Extract walks the chain for kind and returns the first present value,
// or nil when every strategy reports absence.
func (e *Extractor) Extract(ctx context.Context, text string, kind Kind) *string {
	for _, s := range e.chains[kind] {
		if v, ok := s.Attempt(ctx, text); ok {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			return &v
		}
	}
	return nil
}

// Chain returns the strategy names configured for kind.
func (e *Extractor) Chain(kind Kind) []string {
	names := make([]string, 0, len(e.chains[kind]))
	for _, s := range e.chains[kind] {
		names = append(names, s.Name())
	}
	return names
}
