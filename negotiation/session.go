package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"procureagent"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const stallAfterFirmReplies = 2

// SessionResult is the frozen outcome of one vendor session.
type SessionResult struct {
	Offer      procureagent.OfferSnapshot
	Transcript []procureagent.Turn
	Outcome    procureagent.Outcome
	Err        error
}

// SessionRunner drives one multi-turn negotiation per call. A runner holds no per-session
// state and may run many sessions in parallel.
type SessionRunner struct {
	messenger  procureagent.Messenger
	capability procureagent.Capability
	logger     procureagent.TranscriptLogger
	maxTurns   int
	inst       instruments
}

func NewSessionRunner(messenger procureagent.Messenger, capability procureagent.Capability, logger procureagent.TranscriptLogger, maxTurns int) *SessionRunner {
	if logger == nil {
		logger = procureagent.NewNoOpTranscriptLogger()
	}
	if maxTurns <= 0 || maxTurns > procureagent.MaxSessionTurns {
		maxTurns = procureagent.MaxSessionTurns
	}
	return &SessionRunner{
		messenger:  messenger,
		capability: capability,
		logger:     logger,
		maxTurns:   maxTurns,
		inst:       newInstruments(),
	}
}

// session is the mutable state of one running negotiation.
type session struct {
	vendor     procureagent.Vendor
	order      procureagent.OrderRequirement
	plan       procureagent.StrategyPlan
	offer      procureagent.OfferSnapshot
	transcript []procureagent.Turn
	last       procureagent.ReplyClassification
	firm       int
}

// Run negotiates with a single vendor until a terminal outcome is reached.
func (r *SessionRunner) Run(ctx context.Context, vendor procureagent.Vendor, order procureagent.OrderRequirement, plan procureagent.StrategyPlan) SessionResult {
	ctx, span := otel.Tracer(procureagent.TracerNameSession).Start(ctx, "SessionRunner.Run")
	defer span.End()
	span.SetAttributes(attribute.String("vendor.id", vendor.ID))

	started := time.Now()

	currency := plan.PriceTargets.Currency
	if currency == "" {
		currency = order.Currency
	}
	s := &session{
		vendor: vendor,
		order:  order,
		plan:   plan,
		last:   procureagent.NeutralClassification(),
		offer: procureagent.OfferSnapshot{
			VendorID:   vendor.ID,
			VendorName: vendor.Name,
			Currency:   currency,
			Status:     procureagent.StatusInProgress,
		},
	}

	outcome, err := r.negotiate(ctx, s)
	if outcome == procureagent.OutcomeError {
		// Errored sessions count as no offer in the market.
		s.offer.Price = 0
		s.offer.Status = procureagent.StatusNoDeal
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		r.finalize(ctx, s)
	}
	s.offer.Outcome = outcome

	slog.Info("SESSION: finished",
		"vendor_id", vendor.ID,
		"outcome", outcome,
		"turns", s.offer.Turns,
		"price", s.offer.Price,
		"status", s.offer.Status,
	)

	outcomeAttr := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	r.inst.sessions.Add(ctx, 1, outcomeAttr)
	r.inst.sessionTurns.Record(ctx, int64(s.offer.Turns), outcomeAttr)
	r.inst.sessionSeconds.Record(ctx, time.Since(started).Seconds(), outcomeAttr)
	span.SetAttributes(attribute.String("session.outcome", string(outcome)), attribute.Int("session.turns", s.offer.Turns))

	return SessionResult{
		Offer:      s.offer,
		Transcript: s.transcript,
		Outcome:    outcome,
		Err:        err,
	}
}

// SessionFailed is the result of a session that ended before any turn could be scored.
// It counts as no offer.
func SessionFailed(vendor procureagent.Vendor, order procureagent.OrderRequirement, plan procureagent.StrategyPlan, err error) SessionResult {
	currency := plan.PriceTargets.Currency
	if currency == "" {
		currency = order.Currency
	}
	return SessionResult{
		Offer: procureagent.OfferSnapshot{
			VendorID:   vendor.ID,
			VendorName: vendor.Name,
			Currency:   currency,
			Status:     procureagent.StatusNoDeal,
			Outcome:    procureagent.OutcomeError,
		},
		Outcome: procureagent.OutcomeError,
		Err:     err,
	}
}

func (r *SessionRunner) negotiate(ctx context.Context, s *session) (procureagent.Outcome, error) {
	convID, err := r.messenger.CreateConversation(ctx, s.vendor.ID, "Procurement Negotiation - "+s.vendor.Name)
	if err != nil {
		slog.Error("SESSION: could not open conversation", "vendor_id", s.vendor.ID, "error", err)
		return procureagent.OutcomeError, transportError("create conversation", err)
	}
	s.offer.ConversationID = convID

	for turn := 0; ; turn++ {
		if err := ctx.Err(); err != nil {
			return procureagent.OutcomeError, err
		}

		phase := procureagent.PhaseForTurn(turn)
		msg := r.compose(ctx, s, turn, phase)

		reply, err := r.messenger.SendMessage(ctx, convID, msg)
		if err != nil {
			slog.Error("SESSION: send failed", "vendor_id", s.vendor.ID, "turn", turn, "error", err)
			r.logTurn(s, turn, phase, msg, "", nil, procureagent.OutcomeError, err)
			return procureagent.OutcomeError, transportError("send message", err)
		}

		s.transcript = append(s.transcript, procureagent.Turn{Index: turn, Phase: phase, Sent: msg, Reply: reply})
		s.offer.Turns = turn + 1
		s.offer.LastVendorMessage = reply

		cls := r.classify(ctx, s, reply)
		s.last = cls
		if cls.ExtractedPrice != nil && *cls.ExtractedPrice > 0 {
			s.offer.Price = *cls.ExtractedPrice
		}

		var outcome procureagent.Outcome
		outcome, s.firm = NextOutcome(cls, s.firm, s.offer.Turns, r.maxTurns)
		r.logTurn(s, turn, phase, msg, reply, &cls, outcome, nil)

		slog.Info("SESSION: turn complete",
			"vendor_id", s.vendor.ID,
			"turn", turn,
			"phase", phase,
			"sentiment", cls.Sentiment,
			"action", cls.SuggestedAction,
			"firm_streak", s.firm,
		)

		if outcome != "" {
			return outcome, nil
		}
	}
}

// NextOutcome applies the termination rules in priority order. turns is the number of
// completed exchanges. It returns the terminal outcome, or "" to continue, and the updated
// consecutive-firm counter.
func NextOutcome(cls procureagent.ReplyClassification, firm, turns, maxTurns int) (procureagent.Outcome, int) {
	if cls.Sentiment == procureagent.SentimentDealAgreed {
		return procureagent.OutcomeDealAgreed, firm
	}
	if cls.Sentiment == procureagent.SentimentRefused || cls.SuggestedAction == procureagent.ActionWalkAway {
		return procureagent.OutcomeRefused, firm
	}
	if cls.Sentiment == procureagent.SentimentFirm {
		firm++
		if firm >= stallAfterFirmReplies {
			return procureagent.OutcomeStalled, firm
		}
	} else {
		firm = 0
	}
	if turns >= maxTurns {
		return procureagent.OutcomeExhausted, firm
	}
	return "", firm
}

func (r *SessionRunner) compose(ctx context.Context, s *session, turn int, phase procureagent.Phase) string {
	if turn == 0 {
		if opening := SanitizeOpening(s.plan.OpeningMessage); opening != "" {
			return opening
		}
		return fallbackOpening(s.vendor, s.order)
	}

	msg, err := r.capability.GenerateMessage(ctx, procureagent.MessageRequest{
		Vendor:      s.vendor,
		Order:       s.order,
		Plan:        s.plan,
		Phase:       phase,
		Tactics:     Tactics(phase),
		Constraints: Constraints(s.order, s.plan),
		History:     s.transcript,
		Last:        s.last,
	})
	if err == nil {
		msg = strings.TrimSpace(msg)
	}
	if err != nil || msg == "" {
		slog.Warn("SESSION: message generation failed, using follow-up", "vendor_id", s.vendor.ID, "turn", turn, "error", err)
		return followUp(s.order, phase)
	}
	return msg
}

func (r *SessionRunner) classify(ctx context.Context, s *session, reply string) procureagent.ReplyClassification {
	cls, err := r.capability.ClassifyReply(ctx, procureagent.ClassifyRequest{
		Reply:   reply,
		Vendor:  s.vendor,
		Order:   s.order,
		Plan:    s.plan,
		History: s.transcript,
	})
	if err != nil {
		slog.Warn("SESSION: classification failed, treating as neutral", "vendor_id", s.vendor.ID, "error", err)
		return procureagent.NeutralClassification()
	}
	if cls.Sentiment == "" {
		cls.Sentiment = procureagent.SentimentNeutral
	}
	if cls.SuggestedAction == "" {
		cls.SuggestedAction = procureagent.ActionContinue
	}
	return cls
}

// finalize runs the authoritative extraction over the full transcript.
func (r *SessionRunner) finalize(ctx context.Context, s *session) {
	ext, err := r.capability.ExtractDeal(ctx, procureagent.ExtractRequest{
		Vendor:     s.vendor,
		Order:      s.order,
		Transcript: s.transcript,
	})
	if err != nil {
		slog.Warn("SESSION: deal extraction failed, recording no deal", "vendor_id", s.vendor.ID, "error", err)
		ext = procureagent.DealExtraction{DealStatus: string(procureagent.StatusNoDeal)}
	}
	ApplyExtraction(&s.offer, ext, s.plan)
}

// ApplyExtraction overwrites the deal terms of offer with the extraction result.
// A final price above the plan's walk-away marks the offer walked away.
func ApplyExtraction(offer *procureagent.OfferSnapshot, ext procureagent.DealExtraction, plan procureagent.StrategyPlan) {
	offer.Price = 0
	offer.FinalPrice = nil
	if ext.FinalPrice != nil && *ext.FinalPrice > 0 {
		offer.Price = *ext.FinalPrice
		offer.FinalPrice = ext.FinalPrice
	}
	offer.ListPrice = ext.ListPrice
	offer.BundledItems = ext.BundledItems
	offer.Summary = ext.Summary
	offer.Status = procureagent.ParseOfferStatus(ext.DealStatus)
	if ext.DeliveryDays != nil {
		offer.DeliveryDays = ext.DeliveryDays
	}
	if ext.PaymentTerms != "" {
		offer.PaymentTerms = ext.PaymentTerms
	}
	if w := plan.PriceTargets.WalkAway; w > 0 && offer.Price > w && offer.Status != procureagent.StatusNoDeal {
		offer.Status = procureagent.StatusWalkedAway
	}
}

func (r *SessionRunner) logTurn(s *session, turn int, phase procureagent.Phase, sent, reply string, cls *procureagent.ReplyClassification, outcome procureagent.Outcome, err error) {
	entry := procureagent.TurnLog{
		VendorID:       s.vendor.ID,
		ConversationID: s.offer.ConversationID,
		Turn:           turn,
		Phase:          phase,
		Timestamp:      time.Now(),
		Sent:           sent,
		Reply:          reply,
		Classification: cls,
		Outcome:        outcome,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if lerr := r.logger.LogTurn(entry); lerr != nil {
		slog.Warn("SESSION: transcript log failed", "vendor_id", s.vendor.ID, "error", lerr)
	}
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, procureagent.ErrTransport, err)
}

// SanitizeOpening drops email-style subject lines and markdown emphasis.
func SanitizeOpening(msg string) string {
	lines := strings.Split(msg, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "subject:") {
			continue
		}
		kept = append(kept, strings.ReplaceAll(line, "**", ""))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Tactics are the phase-specific negotiation moves handed to message generation.
func Tactics(phase procureagent.Phase) []string {
	switch phase {
	case procureagent.PhaseOpening:
		return []string{
			"anchor below your true target price",
			"express surprise at the quoted price",
		}
	case procureagent.PhaseTrade:
		return []string{
			"trade concessions such as volume commitment or delivery flexibility for price movement",
			"offer to split the difference when the gap is small",
		}
	default:
		return []string{
			"make one small additional ask",
			"explicitly confirm the final price, quantity, delivery and payment terms",
		}
	}
}

// Constraints are the rules a generated message must never break.
func Constraints(order procureagent.OrderRequirement, plan procureagent.StrategyPlan) []string {
	return []string{
		"never invent facts that are not part of the order",
		fmt.Sprintf("never change the requested quantity of %d units of %s", order.Quantity.Preferred, order.Item),
		fmt.Sprintf("never agree to a total price above %.2f %s", plan.PriceTargets.WalkAway, plan.PriceTargets.Currency),
		"never accept the first offer outright",
	}
}

func followUp(order procureagent.OrderRequirement, phase procureagent.Phase) string {
	if phase == procureagent.PhaseClose {
		return fmt.Sprintf("Thank you. To wrap up, can you confirm your final total price, delivery time and payment terms for %d units of %s?", order.Quantity.Preferred, order.Item)
	}
	return fmt.Sprintf("Thank you for your response. Is there any flexibility in your pricing for %d units of %s?", order.Quantity.Preferred, order.Item)
}
