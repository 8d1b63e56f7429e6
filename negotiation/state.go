package negotiation

import (
	"maps"

	"procureagent"
)

// RunPhase is the orchestrator-owned position of a run.
type RunPhase string

const (
	RunValidating  RunPhase = "validating"
	RunScreening   RunPhase = "screening"
	RunStrategy    RunPhase = "strategizing"
	RunNegotiating RunPhase = "negotiating"
	RunAnalyzing   RunPhase = "analyzing"
	RunComplete    RunPhase = "complete"
)

// State is the aggregate of one procurement run. Vendor-keyed maps are only ever replaced
// through MergeKeyed after a barrier; the scalar fields belong to the Orchestrator.
type State struct {
	RunID   string
	Phase   RunPhase
	Order   procureagent.OrderRequirement
	Vendors []procureagent.Vendor

	Screening   map[string]procureagent.ScreeningResult
	Strategies  map[string]procureagent.StrategyPlan
	Offers      map[string]procureagent.OfferSnapshot
	Transcripts map[string][]procureagent.Turn
	Outcomes    map[string]procureagent.Outcome

	Analysis procureagent.MarketAnalysis
	Report   procureagent.FinalComparisonReport
}

func NewState(runID string, order procureagent.OrderRequirement) *State {
	return &State{
		RunID:       runID,
		Phase:       RunValidating,
		Order:       order,
		Screening:   map[string]procureagent.ScreeningResult{},
		Strategies:  map[string]procureagent.StrategyPlan{},
		Offers:      map[string]procureagent.OfferSnapshot{},
		Transcripts: map[string][]procureagent.Turn{},
		Outcomes:    map[string]procureagent.Outcome{},
	}
}

// MergeKeyed returns the key-wise union of a and b. Neither input is modified; b wins on
// a shared key.
func MergeKeyed[K comparable, V any](a, b map[K]V) map[K]V {
	out := make(map[K]V, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}

// RelevantVendors returns vendors screened suitable, in directory order, with their
// matched product id applied.
func (s *State) RelevantVendors() []procureagent.Vendor {
	var out []procureagent.Vendor
	for _, v := range s.Vendors {
		r, ok := s.Screening[v.ID]
		if !ok || !r.Suitable {
			continue
		}
		v.MatchedProductID = r.MatchedProductID
		out = append(out, v)
	}
	return out
}

// OffersInOrder lists session offers following directory order, which makes ranking ties
// deterministic.
func (s *State) OffersInOrder() []procureagent.OfferSnapshot {
	var out []procureagent.OfferSnapshot
	for _, v := range s.Vendors {
		if o, ok := s.Offers[v.ID]; ok {
			out = append(out, o)
		}
	}
	return out
}
