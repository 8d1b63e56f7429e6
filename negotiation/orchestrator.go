// Package negotiation runs a procurement: screening the vendor pool, planning a strategy per
// relevant vendor, negotiating with each one in parallel and ranking the results.
package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"procureagent"
	"procureagent/market"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator sequences the phases of a run across join-all barriers.
type Orchestrator struct {
	directory   procureagent.VendorDirectory
	screener    *Screener
	planner     *Planner
	sessions    *SessionRunner
	sink        procureagent.ProgressSink
	archive     procureagent.ReportArchive
	teamID      string
	concurrency int
	newRunID    func() string
	inst        instruments
}

type Option func(*Orchestrator)

// WithProgressSink sets where phase notifications go.
func WithProgressSink(sink procureagent.ProgressSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithReportArchive stores every final report.
func WithReportArchive(archive procureagent.ReportArchive) Option {
	return func(o *Orchestrator) { o.archive = archive }
}

// WithTeamID filters the vendor directory.
func WithTeamID(teamID string) Option {
	return func(o *Orchestrator) { o.teamID = teamID }
}

// WithConcurrency bounds the number of vendors worked on at once in each phase.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

func NewOrchestrator(directory procureagent.VendorDirectory, screener *Screener, planner *Planner, sessions *SessionRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		directory: directory,
		screener:  screener,
		planner:   planner,
		sessions:  sessions,
		newRunID:  uuid.NewString,
		inst:      newInstruments(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes a full procurement for order. Only an invalid order or an unreachable vendor
// directory produce an error; every vendor-level failure is absorbed into the report.
func (o *Orchestrator) Run(ctx context.Context, order procureagent.OrderRequirement) (*State, error) {
	tracer := otel.Tracer(procureagent.TracerNameOrchestrator)
	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()

	state := NewState(o.newRunID(), order)
	span.SetAttributes(attribute.String("run.id", state.RunID), attribute.String("order.item", order.Item))

	slog.Info("ORCHESTRATOR: starting run", "run_id", state.RunID, "item", order.Item, "budget", order.Budget, "quantity", order.Quantity.Preferred)

	if err := order.Validate(); err != nil {
		slog.Error("ORCHESTRATOR: rejecting order", "run_id", state.RunID, "error", err)
		return state, err
	}

	vendors, err := o.directory.ListVendors(ctx, o.teamID)
	if err != nil {
		slog.Error("ORCHESTRATOR: vendor directory unavailable", "run_id", state.RunID, "error", err)
		return state, fmt.Errorf("%w: %w", procureagent.ErrDirectoryUnavailable, err)
	}
	vendors = uniqueVendors(vendors)
	state.Vendors = vendors

	if len(vendors) == 0 {
		slog.Warn("ORCHESTRATOR: no vendors available, negotiation not possible", "run_id", state.RunID)
		state.Report = procureagent.FinalComparisonReport{
			RunID:                 state.RunID,
			RecommendedVendorID:   procureagent.NoRecommendation,
			RecommendedVendorName: "None",
			Reason:                "no vendors available",
			Comparisons:           []procureagent.VendorComparison{},
			MarketSummary:         "no offers",
			HumanAction:           "Add vendors to the directory and start a new run",
		}
		state.Phase = RunComplete
		o.finish(ctx, state)
		return state, nil
	}

	o.screen(ctx, tracer, state)
	o.strategize(ctx, tracer, state)
	o.negotiate(ctx, tracer, state)

	state.Phase = RunAnalyzing
	offers := state.OffersInOrder()
	state.Analysis = market.Analyze(offers, order)
	state.Report = market.Report(offers, order)
	state.Report.RunID = state.RunID
	o.inst.offersValid.Record(ctx, int64(len(market.ValidOffers(offers))))

	state.Phase = RunComplete
	o.finish(ctx, state)

	slog.Info("ORCHESTRATOR: run complete",
		"run_id", state.RunID,
		"recommended", state.Report.RecommendedVendorID,
		"reason", state.Report.Reason,
	)
	return state, nil
}

// uniqueVendors keeps the first vendor listed under each id. Every later phase is keyed
// by vendor id.
func uniqueVendors(vendors []procureagent.Vendor) []procureagent.Vendor {
	seen := make(map[string]bool, len(vendors))
	out := make([]procureagent.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if seen[v.ID] {
			slog.Warn("ORCHESTRATOR: dropping duplicate vendor id", "vendor_id", v.ID, "name", v.Name)
			continue
		}
		seen[v.ID] = true
		out = append(out, v)
	}
	return out
}

func (o *Orchestrator) screen(ctx context.Context, tracer trace.Tracer, state *State) {
	state.Phase = RunScreening
	ctx, span := tracer.Start(ctx, "Orchestrator.Screen")
	defer span.End()

	results := Gather(ctx, state.Vendors, o.concurrency, func(ctx context.Context, v procureagent.Vendor) procureagent.ScreeningResult {
		return o.screener.Screen(ctx, v, state.Order)
	}, ScreeningFailed)

	batch := make(map[string]procureagent.ScreeningResult, len(results))
	for _, r := range results {
		batch[r.VendorID] = r
		o.inst.vendorsScreened.Add(ctx, 1, metric.WithAttributes(attribute.Bool("suitable", r.Suitable)))
	}
	state.Screening = MergeKeyed(state.Screening, batch)

	relevant := len(state.RelevantVendors())
	span.SetAttributes(attribute.Int("vendors.screened", len(results)), attribute.Int("vendors.relevant", relevant))
	slog.Info("ORCHESTRATOR: screening complete", "run_id", state.RunID, "screened", len(results), "relevant", relevant)

	o.notify(ctx, procureagent.ProgressEvent{
		Type:    procureagent.EventScreeningComplete,
		RunID:   state.RunID,
		Message: fmt.Sprintf("%d of %d vendors can supply %s", relevant, len(results), state.Order.Item),
	})
}

func (o *Orchestrator) strategize(ctx context.Context, tracer trace.Tracer, state *State) {
	state.Phase = RunStrategy
	ctx, span := tracer.Start(ctx, "Orchestrator.Strategize")
	defer span.End()

	plans := Gather(ctx, state.RelevantVendors(), o.concurrency, func(ctx context.Context, v procureagent.Vendor) procureagent.StrategyPlan {
		return o.planner.Plan(ctx, v, state.Order)
	}, func(v procureagent.Vendor, _ error) procureagent.StrategyPlan {
		return FallbackPlan(v, state.Order)
	})

	batch := make(map[string]procureagent.StrategyPlan, len(plans))
	for _, p := range plans {
		batch[p.VendorID] = p
		if p.Fallback {
			o.inst.fallbackPlans.Add(ctx, 1)
		}
	}
	state.Strategies = MergeKeyed(state.Strategies, batch)

	slog.Info("ORCHESTRATOR: strategies complete", "run_id", state.RunID, "plans", len(plans))
	o.notify(ctx, procureagent.ProgressEvent{
		Type:    procureagent.EventStrategiesComplete,
		RunID:   state.RunID,
		Message: fmt.Sprintf("%d negotiation strategies ready", len(plans)),
	})
}

func (o *Orchestrator) negotiate(ctx context.Context, tracer trace.Tracer, state *State) {
	state.Phase = RunNegotiating
	ctx, span := tracer.Start(ctx, "Orchestrator.Negotiate")
	defer span.End()

	results := Gather(ctx, state.RelevantVendors(), o.concurrency, func(ctx context.Context, v procureagent.Vendor) SessionResult {
		res := o.sessions.Run(ctx, v, state.Order, state.Strategies[v.ID])
		offer := res.Offer
		o.notify(ctx, procureagent.ProgressEvent{
			Type:     procureagent.EventSessionComplete,
			RunID:    state.RunID,
			VendorID: v.ID,
			Message:  fmt.Sprintf("negotiation with %s ended: %s", v.Name, res.Outcome),
			Offer:    &offer,
		})
		return res
	}, func(v procureagent.Vendor, err error) SessionResult {
		return SessionFailed(v, state.Order, state.Strategies[v.ID], err)
	})

	offers := make(map[string]procureagent.OfferSnapshot, len(results))
	transcripts := make(map[string][]procureagent.Turn, len(results))
	outcomes := make(map[string]procureagent.Outcome, len(results))
	for _, r := range results {
		id := r.Offer.VendorID
		offers[id] = r.Offer
		transcripts[id] = r.Transcript
		outcomes[id] = r.Outcome
	}
	state.Offers = MergeKeyed(state.Offers, offers)
	state.Transcripts = MergeKeyed(state.Transcripts, transcripts)
	state.Outcomes = MergeKeyed(state.Outcomes, outcomes)

	slog.Info("ORCHESTRATOR: sessions complete", "run_id", state.RunID, "sessions", len(results))
}

// finish archives the report and announces it. Both are best-effort.
func (o *Orchestrator) finish(ctx context.Context, state *State) {
	if o.archive != nil {
		data, err := json.MarshalIndent(state.Report, "", "  ")
		if err == nil {
			err = o.archive.Save(ctx, state.RunID, data)
		}
		if err != nil {
			slog.Warn("ORCHESTRATOR: report archive failed", "run_id", state.RunID, "error", err)
		}
	}

	report := state.Report
	o.notify(ctx, procureagent.ProgressEvent{
		Type:    procureagent.EventReportReady,
		RunID:   state.RunID,
		Message: report.Reason,
		Report:  &report,
	})
}

func (o *Orchestrator) notify(ctx context.Context, event procureagent.ProgressEvent) {
	if o.sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := o.sink.Notify(ctx, event); err != nil {
		slog.Warn("ORCHESTRATOR: progress notification failed", "event", event.Type, "error", err)
	}
}
