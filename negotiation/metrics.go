package negotiation

import (
	"procureagent"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	sessions        metric.Int64Counter
	sessionTurns    metric.Int64Histogram
	vendorsScreened metric.Int64Counter
	offersValid     metric.Int64Gauge
	fallbackPlans   metric.Int64Counter
	sessionSeconds  metric.Float64Histogram
}

// newInstruments uses the global meter provider, which is a no-op until InitOtel runs.
func newInstruments() instruments {
	meter := otel.Meter(procureagent.TracerNameOrchestrator)

	var in instruments
	in.sessions, _ = meter.Int64Counter("sessions_total",
		metric.WithDescription("Negotiation sessions finished, by outcome"))
	in.sessionTurns, _ = meter.Int64Histogram("session_turns",
		metric.WithDescription("Exchanges per negotiation session"))
	in.vendorsScreened, _ = meter.Int64Counter("vendors_screened_total",
		metric.WithDescription("Vendors screened, by suitability"))
	in.offersValid, _ = meter.Int64Gauge("offers_valid",
		metric.WithDescription("Offers with a positive price in the latest run"))
	in.fallbackPlans, _ = meter.Int64Counter("strategy_fallbacks_total",
		metric.WithDescription("Strategy plans replaced by the budget-based fallback"))
	in.sessionSeconds, _ = meter.Float64Histogram("session_duration_seconds",
		metric.WithDescription("Wall time of a negotiation session in seconds"))
	return in
}
