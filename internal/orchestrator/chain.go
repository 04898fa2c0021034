package orchestrator

import (
	"fmt"

	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
)

// Pricing is the per-1K-token price of a provider.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost prices a call.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*p.InputPer1K + float64(outputTokens)/1000*p.OutputPer1K
}

// Entry is one provider in the chain.
type Entry struct {
	Provider provider.Provider
	Pricing  Pricing
}

// Chain is an immutable, ordered provider list. Replace it as a whole with
// Orchestrator.SetChain.
type Chain struct {
	entries []Entry
}

// NewChain builds a chain in the given order. Nil providers and repeated
// names are dropped; the first occurrence wins.
func NewChain(entries ...Entry) *Chain {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Provider == nil || seen[e.Provider.Name()] {
			continue
		}
		seen[e.Provider.Name()] = true
		out = append(out, e)
	}
	return &Chain{entries: out}
}

// ProvidersChain builds a chain without pricing.
func ProvidersChain(providers ...provider.Provider) *Chain {
	entries := make([]Entry, len(providers))
	for i, p := range providers {
		entries[i] = Entry{Provider: p}
	}
	return NewChain(entries...)
}

// BuildChain pairs provider configs (already ordered and filtered, see
// config.Config.ChainProviders) with the providers created from them.
func BuildChain(cfgs []config.ProviderConfig, providers []provider.Provider) (*Chain, error) {
	if len(cfgs) != len(providers) {
		return nil, fmt.Errorf("chain has %d configs but %d providers", len(cfgs), len(providers))
	}
	entries := make([]Entry, len(cfgs))
	for i, cfg := range cfgs {
		if providers[i].Name() != cfg.Name {
			return nil, fmt.Errorf("chain position %d: provider %q does not match config %q", i, providers[i].Name(), cfg.Name)
		}
		entries[i] = Entry{
			Provider: providers[i],
			Pricing: Pricing{
				InputPer1K:  cfg.InputCostPer1K,
				OutputPer1K: cfg.OutputCostPer1K,
			},
		}
	}
	return NewChain(entries...), nil
}

// Entries returns a copy of the chain entries.
func (c *Chain) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of providers.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Names returns provider names in chain order.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Provider.Name()
	}
	return names
}
