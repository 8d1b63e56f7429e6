package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"procureagent"
	"procureagent/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	directory  *fakeDirectory
	capability *fakeCapability
	messenger  *fakeMessenger
	sink       *recordingSink
	archive    *storage.TestReportStore
	orch       *Orchestrator
}

func newHarness(vendors ...procureagent.Vendor) *harness {
	h := &harness{
		directory:  &fakeDirectory{vendors: vendors},
		capability: newFakeCapability(),
		messenger:  newFakeMessenger(),
		sink:       &recordingSink{},
		archive:    storage.NewTestReportStore(),
	}
	h.orch = NewOrchestrator(
		h.directory,
		NewScreener(h.capability, nil),
		NewPlanner(h.capability, nil),
		NewSessionRunner(h.messenger, h.capability, nil, 0),
		WithProgressSink(h.sink),
		WithReportArchive(h.archive),
		WithRunID(func() string { return "run-1" }),
	)
	return h
}

func TestOrchestratorRejectsInvalidOrder(t *testing.T) {
	for name, order := range map[string]procureagent.OrderRequirement{
		"zero budget":     {Item: "boards", Budget: 0, Quantity: procureagent.Quantity{Preferred: 10}},
		"negative budget": {Item: "boards", Budget: -5, Quantity: procureagent.Quantity{Preferred: 10}},
		"zero preferred":  {Item: "boards", Budget: 100, Quantity: procureagent.Quantity{Preferred: 0}},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(procureagent.Vendor{ID: "v1"})
			_, err := h.orch.Run(context.Background(), order)

			require.Error(t, err)
			assert.True(t, errors.Is(err, procureagent.ErrInvalidOrder))
			assert.Equal(t, 0, h.directory.calls)
			assert.Equal(t, 0, h.messenger.contacts())
			assert.Empty(t, h.sink.types())
		})
	}
}

func TestOrchestratorDirectoryFailure(t *testing.T) {
	h := newHarness()
	h.directory.err = errors.New("dial tcp: connection refused")

	_, err := h.orch.Run(context.Background(), arduinoOrder())

	require.Error(t, err)
	assert.True(t, errors.Is(err, procureagent.ErrDirectoryUnavailable))
	assert.Equal(t, 0, h.messenger.contacts())
}

func TestOrchestratorEmptyDirectory(t *testing.T) {
	h := newHarness()

	state, err := h.orch.Run(context.Background(), arduinoOrder())

	require.NoError(t, err)
	assert.Equal(t, procureagent.NoRecommendation, state.Report.RecommendedVendorID)
	assert.Equal(t, "no vendors available", state.Report.Reason)
	assert.Equal(t, RunComplete, state.Phase)
	assert.Equal(t, []procureagent.EventType{procureagent.EventReportReady}, h.sink.types())
	_, archived := h.archive.Get("run-1")
	assert.True(t, archived)
}

func TestOrchestratorEndToEnd(t *testing.T) {
	h := newHarness(
		procureagent.Vendor{ID: "furniture", Name: "Chairs R Us"},
		procureagent.Vendor{ID: "maker", Name: "Maker Supply"},
	)
	h.capability.match = func(req procureagent.MatchRequest) (procureagent.MatchResult, error) {
		if req.Vendor.ID == "maker" {
			return procureagent.MatchResult{Suitable: true, ProductID: "ARD-UNO-R3", Reasoning: "stocks Arduino Uno"}, nil
		}
		return procureagent.MatchResult{Suitable: false, Reasoning: "no electronics"}, nil
	}
	h.capability.script["maker"] = []procureagent.ReplyClassification{
		{Sentiment: procureagent.SentimentFlexible, SuggestedAction: procureagent.ActionContinue, ExtractedPrice: ptr(2900.0)},
		cls(procureagent.SentimentDealAgreed, procureagent.ActionAccept),
	}

	state, err := h.orch.Run(context.Background(), arduinoOrder())
	require.NoError(t, err)

	assert.Len(t, state.Screening, 2)
	assert.Len(t, state.Strategies, 1)
	assert.Contains(t, state.Strategies, "maker")
	assert.Len(t, state.Offers, 1)
	assert.Equal(t, procureagent.OutcomeDealAgreed, state.Outcomes["maker"])
	assert.Equal(t, 1, h.messenger.contacts())

	report := state.Report
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "maker", report.RecommendedVendorID)
	assert.Equal(t, "Maker Supply", report.RecommendedVendorName)
	assert.Equal(t, "Best Value Option: 150 boards for $2500 (Within Budget) - DEAL AGREED", report.Reason)
	require.Len(t, report.Comparisons, 1)
	assert.Equal(t, 1, state.Analysis.Benchmarks.TotalVendors)

	assert.Equal(t, []procureagent.EventType{
		procureagent.EventScreeningComplete,
		procureagent.EventStrategiesComplete,
		procureagent.EventSessionComplete,
		procureagent.EventReportReady,
	}, h.sink.types())

	var archived procureagent.FinalComparisonReport
	data, ok := h.archive.Get("run-1")
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(data, &archived))
	assert.Equal(t, "maker", archived.RecommendedVendorID)
}

func TestOrchestratorNoValidOffers(t *testing.T) {
	h := newHarness(
		procureagent.Vendor{ID: "a", Name: "A"},
		procureagent.Vendor{ID: "b", Name: "B"},
	)
	h.messenger.createErr["a"] = errors.New("503")
	h.capability.extract = func(procureagent.ExtractRequest) (procureagent.DealExtraction, error) {
		return procureagent.DealExtraction{DealStatus: "no_deal", Summary: "no price agreed"}, nil
	}
	h.sink.err = errors.New("webhook down")

	state, err := h.orch.Run(context.Background(), arduinoOrder())
	require.NoError(t, err)

	assert.Equal(t, procureagent.OutcomeError, state.Outcomes["a"])
	assert.Equal(t, procureagent.OutcomeExhausted, state.Outcomes["b"])
	assert.Equal(t, procureagent.NoRecommendation, state.Report.RecommendedVendorID)
	assert.Empty(t, state.Report.Comparisons)
	assert.Equal(t, "No valid offers received", state.Report.Reason)
	assert.ElementsMatch(t, []string{"a", "b"}, state.Report.NoOffer)
}

func TestOrchestratorNoRelevantVendors(t *testing.T) {
	h := newHarness(procureagent.Vendor{ID: "a"}, procureagent.Vendor{ID: "b"})
	h.capability.match = func(procureagent.MatchRequest) (procureagent.MatchResult, error) {
		return procureagent.MatchResult{}, errors.New("capability offline")
	}

	state, err := h.orch.Run(context.Background(), arduinoOrder())
	require.NoError(t, err)

	assert.Len(t, state.Screening, 2)
	assert.Empty(t, state.Strategies)
	assert.Equal(t, 0, h.messenger.contacts())
	assert.Equal(t, procureagent.NoRecommendation, state.Report.RecommendedVendorID)
}

func TestOrchestratorRanksAcrossVendors(t *testing.T) {
	h := newHarness(
		procureagent.Vendor{ID: "a", Name: "A"},
		procureagent.Vendor{ID: "b", Name: "B"},
	)
	h.capability.script["a"] = []procureagent.ReplyClassification{cls(procureagent.SentimentDealAgreed, procureagent.ActionAccept)}
	h.capability.script["b"] = []procureagent.ReplyClassification{cls(procureagent.SentimentDealAgreed, procureagent.ActionAccept)}
	h.capability.extract = func(req procureagent.ExtractRequest) (procureagent.DealExtraction, error) {
		price := 2700.0
		if req.Vendor.ID == "b" {
			price = 2400.0
		}
		return procureagent.DealExtraction{FinalPrice: &price, DealStatus: "finalized"}, nil
	}

	state, err := h.orch.Run(context.Background(), arduinoOrder())
	require.NoError(t, err)

	assert.Equal(t, "b", state.Report.RecommendedVendorID)
	require.Len(t, state.Analysis.Rankings, 2)
	assert.Equal(t, "a", state.Analysis.Rankings[1].VendorID)
	assert.Equal(t, procureagent.PressureMedium, state.Analysis.VendorOverrides["a"].PressureLevel)
}

func TestOrchestratorArchiveFailureIsBestEffort(t *testing.T) {
	h := newHarness()
	orch := NewOrchestrator(
		h.directory,
		NewScreener(h.capability, nil),
		NewPlanner(h.capability, nil),
		NewSessionRunner(h.messenger, h.capability, nil, 0),
		WithProgressSink(h.sink),
		WithReportArchive(storage.NewTestReportStoreWithError()),
	)

	state, err := orch.Run(context.Background(), arduinoOrder())

	require.NoError(t, err)
	assert.Equal(t, RunComplete, state.Phase)
	assert.Equal(t, []procureagent.EventType{procureagent.EventReportReady}, h.sink.types())
}

func TestOrchestratorDropsDuplicateVendorIDs(t *testing.T) {
	h := newHarness(
		procureagent.Vendor{ID: "v1", Name: "Acme"},
		procureagent.Vendor{ID: "v1", Name: "Acme (listed twice)"},
		procureagent.Vendor{ID: "v2", Name: "Globex"},
	)
	h.capability.script["v1"] = []procureagent.ReplyClassification{cls(procureagent.SentimentDealAgreed, procureagent.ActionAccept)}
	h.capability.script["v2"] = []procureagent.ReplyClassification{cls(procureagent.SentimentDealAgreed, procureagent.ActionAccept)}

	state, err := h.orch.Run(context.Background(), arduinoOrder())
	require.NoError(t, err)

	require.Len(t, state.Vendors, 2)
	assert.Equal(t, "Acme", state.Vendors[0].Name)
	assert.Len(t, state.Screening, len(state.Vendors))
	assert.Len(t, state.RelevantVendors(), 2)
	assert.Len(t, state.OffersInOrder(), 2)
	assert.Equal(t, 2, h.messenger.contacts())
	assert.Len(t, state.Report.Comparisons, 2)
	assert.Equal(t, 2, state.Analysis.Benchmarks.TotalVendors)
}

func TestUniqueVendors(t *testing.T) {
	got := uniqueVendors([]procureagent.Vendor{{ID: "a", Name: "first"}, {ID: "b"}, {ID: "a", Name: "second"}})
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "b", got[1].ID)
}

func TestOrchestratorSurvivesVendorPanics(t *testing.T) {
	h := newHarness(
		procureagent.Vendor{ID: "a", Name: "A"},
		procureagent.Vendor{ID: "b", Name: "B"},
		procureagent.Vendor{ID: "c", Name: "C"},
		procureagent.Vendor{ID: "d", Name: "D"},
	)
	h.capability.match = func(req procureagent.MatchRequest) (procureagent.MatchResult, error) {
		if req.Vendor.ID == "a" {
			panic("catalog index out of range")
		}
		return procureagent.MatchResult{Suitable: true, ProductID: "P-" + req.Vendor.ID}, nil
	}
	h.capability.draft = func(req procureagent.StrategyRequest) (procureagent.StrategyPlan, error) {
		if req.Vendor.ID == "b" {
			panic("nil strategy")
		}
		return testPlan(req.Vendor.ID), nil
	}
	h.capability.generate = func(req procureagent.MessageRequest) (string, error) {
		if req.Vendor.ID == "c" {
			panic("template missing")
		}
		return "hello", nil
	}
	h.capability.script["b"] = []procureagent.ReplyClassification{cls(procureagent.SentimentDealAgreed, procureagent.ActionAccept)}
	h.capability.script["d"] = []procureagent.ReplyClassification{cls(procureagent.SentimentDealAgreed, procureagent.ActionAccept)}

	state, err := h.orch.Run(context.Background(), arduinoOrder())
	require.NoError(t, err)

	assert.Equal(t, RunComplete, state.Phase)
	require.Len(t, state.Screening, 4)
	assert.False(t, state.Screening["a"].Suitable)
	assert.Contains(t, state.Screening["a"].Err, "catalog index out of range")

	require.Contains(t, state.Strategies, "b")
	assert.True(t, state.Strategies["b"].Fallback)

	assert.Equal(t, procureagent.OutcomeError, state.Outcomes["c"])
	assert.Equal(t, procureagent.StatusNoDeal, state.Offers["c"].Status)
	assert.Zero(t, state.Offers["c"].Price)

	assert.Equal(t, procureagent.OutcomeDealAgreed, state.Outcomes["d"])
	assert.NotEqual(t, procureagent.NoRecommendation, state.Report.RecommendedVendorID)
}
