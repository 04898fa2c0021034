package session

import (
	"context"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// Stats summarises the sessions currently held by a store.
type Stats struct {
	Total          int                  `json:"total"`
	ByState        map[domain.State]int `json:"by_state"`
	Completed      int                  `json:"completed"`
	FallbackFlags  map[string]int       `json:"fallback_flags"`
	ProviderErrors int                  `json:"provider_errors"`
	AverageChoices float64              `json:"average_choices"`
}

// Stats computes statistics over a snapshot of the store. Scene flags
// such as "scenario:2" are counted under their operation.
func (s *Store) Stats(ctx context.Context) Stats {
	st := Stats{
		ByState: map[domain.State]int{
			domain.StateInit:   0,
			domain.StatePlay:   0,
			domain.StateResult: 0,
		},
		FallbackFlags: make(map[string]int),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	choices := 0
	for _, sess := range s.sessions {
		st.Total++
		st.ByState[sess.State]++
		if sess.CompletedAt != nil {
			st.Completed++
		}
		for _, flag := range sess.FallbackFlags {
			st.FallbackFlags[string(domain.Operation(flag).Base())]++
		}
		st.ProviderErrors += len(sess.ProviderErrors)
		choices += len(sess.Choices)
	}
	if st.Total > 0 {
		st.AverageChoices = float64(choices) / float64(st.Total)
	}
	return st
}
