package procureagent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// VendorDirectory lists the vendor pool, optionally filtered by team id.
type VendorDirectory interface {
	ListVendors(ctx context.Context, teamID string) ([]Vendor, error)
}

// VendorDetailer is implemented by directories that can return the full vendor
// record, including the behavioral profile.
type VendorDetailer interface {
	GetVendor(ctx context.Context, vendorID string) (Vendor, error)
}

// Messenger is the conversation transport with a single vendor.
type Messenger interface {
	CreateConversation(ctx context.Context, vendorID, title string) (string, error)
	SendMessage(ctx context.Context, conversationID, text string) (string, error)
}

// Capability is the text-understanding contract consumed by the negotiation core.
// Implementations may be slow and may fail; callers degrade on error.
type Capability interface {
	MatchVendor(ctx context.Context, req MatchRequest) (MatchResult, error)
	DraftStrategy(ctx context.Context, req StrategyRequest) (StrategyPlan, error)
	ClassifyReply(ctx context.Context, req ClassifyRequest) (ReplyClassification, error)
	ExtractDeal(ctx context.Context, req ExtractRequest) (DealExtraction, error)
	GenerateMessage(ctx context.Context, req MessageRequest) (string, error)
}

// DocumentSource loads vendor catalogs and price lists by filename.
type DocumentSource interface {
	Load(ctx context.Context, filename string) ([]byte, error)
}

// ReportArchive stores the serialized final report of a run.
type ReportArchive interface {
	Save(ctx context.Context, runID string, data []byte) error
}

// ProgressSink receives best-effort run notifications. Errors are logged by callers, never propagated.
type ProgressSink interface {
	Notify(ctx context.Context, event ProgressEvent) error
}

// EventType names a progress notification.
type EventType string

const (
	EventScreeningComplete  EventType = "screening_complete"
	EventStrategiesComplete EventType = "strategies_complete"
	EventSessionComplete    EventType = "session_complete"
	EventReportReady        EventType = "report_ready"
)

// ProgressEvent is a phase-completion notification.
type ProgressEvent struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	VendorID  string                 `json:"vendor_id,omitempty"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Offer     *OfferSnapshot         `json:"offer,omitempty"`
	Report    *FinalComparisonReport `json:"report,omitempty"`
}

// Quantity holds the acceptable quantity range of an order.
type Quantity struct {
	Min       int `json:"min" yaml:"min"`
	Max       int `json:"max" yaml:"max"`
	Preferred int `json:"preferred" yaml:"preferred"`
}

// Requirements splits order requirements into must-haves and nice-to-haves.
type Requirements struct {
	Mandatory []string `json:"mandatory" yaml:"mandatory"`
	Optional  []string `json:"optional" yaml:"optional"`
}

// OrderRequirement is the structured purchase intent. It is created once and never mutated.
type OrderRequirement struct {
	Item         string       `json:"item" yaml:"item"`
	Quantity     Quantity     `json:"quantity" yaml:"quantity"`
	Budget       float64      `json:"budget" yaml:"budget"`
	Currency     string       `json:"currency" yaml:"currency"`
	Requirements Requirements `json:"requirements" yaml:"requirements"`
	Urgency      string       `json:"urgency" yaml:"urgency"`
}

// Validate checks the order before any vendor is contacted.
func (o OrderRequirement) Validate() error {
	var problems []string
	if strings.TrimSpace(o.Item) == "" {
		problems = append(problems, "item is empty")
	}
	if !(o.Budget > 0) {
		problems = append(problems, fmt.Sprintf("budget must be positive (got %v)", o.Budget))
	}
	if o.Quantity.Preferred <= 0 {
		problems = append(problems, fmt.Sprintf("preferred quantity must be positive (got %d)", o.Quantity.Preferred))
	}
	if o.Quantity.Min < 0 {
		problems = append(problems, fmt.Sprintf("minimum quantity must not be negative (got %d)", o.Quantity.Min))
	}
	if o.Quantity.Max > 0 && o.Quantity.Max < o.Quantity.Min {
		problems = append(problems, fmt.Sprintf("maximum quantity %d is below minimum %d", o.Quantity.Max, o.Quantity.Min))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// QuantityString renders the quantity range for prompts and messages.
func (o OrderRequirement) QuantityString() string {
	return fmt.Sprintf("%d-%d units (preferred: %d)", o.Quantity.Min, o.Quantity.Max, o.Quantity.Preferred)
}

// DocumentRef points at a vendor catalog or price list.
type DocumentRef struct {
	Filename  string `json:"filename" yaml:"filename"`
	MediaType string `json:"media_type,omitempty" yaml:"media_type,omitempty"`
}

// Document is a loaded vendor document attached to a screening request.
type Document struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Vendor is a supplier from the directory. MatchedProductID is set once by screening.
type Vendor struct {
	ID                string        `json:"id" yaml:"id"`
	Name              string        `json:"name" yaml:"name"`
	Description       string        `json:"description" yaml:"description"`
	BehavioralProfile string        `json:"behavioral_profile" yaml:"behavioral_profile"`
	Categories        []string      `json:"categories,omitempty" yaml:"categories,omitempty"`
	Rating            float64       `json:"rating,omitempty" yaml:"rating,omitempty"`
	Documents         []DocumentRef `json:"documents,omitempty" yaml:"documents,omitempty"`
	MatchedProductID  string        `json:"matched_product_id,omitempty" yaml:"-"`
}

// ScreeningResult is the VendorScreener verdict for one vendor.
type ScreeningResult struct {
	VendorID         string `json:"vendor_id"`
	Suitable         bool   `json:"suitable"`
	MatchedProductID string `json:"matched_product_id,omitempty"`
	Reasoning        string `json:"reasoning"`
	Err              string `json:"error,omitempty"`
}

// PriceTargets are the negotiation price levels for one vendor.
type PriceTargets struct {
	Anchor   float64 `json:"anchor"`
	Target   float64 `json:"target"`
	WalkAway float64 `json:"walk_away"`
	Currency string  `json:"currency"`
}

// StrategyPlan is the per-vendor negotiation configuration. Read-only once built.
type StrategyPlan struct {
	VendorID        string       `json:"vendor_id"`
	Objective       string       `json:"objective"`
	PriceTargets    PriceTargets `json:"price_targets"`
	Tone            string       `json:"tone"`
	Approach        string       `json:"approach"`
	Arguments       []string     `json:"arguments"`
	Concessions     []string     `json:"concessions"`
	OpeningMessage  string       `json:"opening_message"`
	Assumptions     []string     `json:"assumptions"`
	BehavioralNotes string       `json:"behavioral_notes,omitempty"`
	Fallback        bool         `json:"fallback,omitempty"`
}

// Check reports why a drafted plan is unusable, or nil.
func (p StrategyPlan) Check() error {
	t := p.PriceTargets
	switch {
	case !(t.Anchor > 0) || !(t.Target > 0) || !(t.WalkAway > 0):
		return fmt.Errorf("price targets must be positive")
	case t.Anchor > t.WalkAway || t.Target > t.WalkAway:
		return fmt.Errorf("anchor %.2f and target %.2f must not exceed walk-away %.2f", t.Anchor, t.Target, t.WalkAway)
	case strings.TrimSpace(p.OpeningMessage) == "":
		return fmt.Errorf("opening message is empty")
	}
	return nil
}

// OfferStatus is the normalized deal status of a vendor offer.
type OfferStatus string

const (
	StatusInProgress OfferStatus = "in_progress"
	StatusFinalized  OfferStatus = "finalized"
	StatusWalkedAway OfferStatus = "walked_away"
	StatusNoDeal     OfferStatus = "no_deal"
)

// ParseOfferStatus normalizes free-form status text, defaulting to no_deal.
func ParseOfferStatus(s string) OfferStatus {
	switch OfferStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusInProgress:
		return StatusInProgress
	case StatusFinalized:
		return StatusFinalized
	case StatusWalkedAway:
		return StatusWalkedAway
	default:
		return StatusNoDeal
	}
}

// Outcome is the terminal state of a negotiation session.
type Outcome string

const (
	OutcomeDealAgreed Outcome = "DEAL_AGREED"
	OutcomeRefused    Outcome = "REFUSED"
	OutcomeStalled    Outcome = "STALLED"
	OutcomeExhausted  Outcome = "EXHAUSTED"
	OutcomeError      Outcome = "ERROR"
)

// OfferSnapshot is the best-known terms from one vendor. It is mutated only by the
// owning session and frozen once the session is terminal.
type OfferSnapshot struct {
	VendorID          string      `json:"vendor_id"`
	VendorName        string      `json:"vendor_name"`
	ConversationID    string      `json:"conversation_id,omitempty"`
	Price             float64     `json:"price"`
	Currency          string      `json:"currency"`
	DeliveryDays      *int        `json:"delivery_days,omitempty"`
	PaymentTerms      string      `json:"payment_terms,omitempty"`
	Status            OfferStatus `json:"status"`
	Summary           string      `json:"summary"`
	BundledItems      []string    `json:"bundled_items,omitempty"`
	ListPrice         *float64    `json:"list_price,omitempty"`
	FinalPrice        *float64    `json:"final_price,omitempty"`
	Turns             int         `json:"turns"`
	Outcome           Outcome     `json:"outcome,omitempty"`
	LastVendorMessage string      `json:"last_vendor_message,omitempty"`
}

// Valid reports whether the offer carries a usable price.
func (o OfferSnapshot) Valid() bool { return o.Price > 0 }

// Turn is one exchange in a session transcript.
type Turn struct {
	Index int    `json:"index"`
	Phase Phase  `json:"phase"`
	Sent  string `json:"sent"`
	Reply string `json:"reply"`
}

// Phase is the session phase derived from the turn index.
type Phase string

const (
	PhaseOpening Phase = "OPENING"
	PhaseTrade   Phase = "TRADE"
	PhaseClose   Phase = "CLOSE"
)

// PhaseForTurn selects the negotiation phase purely from the turn index.
func PhaseForTurn(turn int) Phase {
	switch {
	case turn <= 0:
		return PhaseOpening
	case turn <= 5:
		return PhaseTrade
	default:
		return PhaseClose
	}
}

// Sentiment is the classified stance of a vendor reply.
type Sentiment string

const (
	SentimentFlexible   Sentiment = "flexible"
	SentimentFirm       Sentiment = "firm"
	SentimentDealAgreed Sentiment = "deal_agreed"
	SentimentRefused    Sentiment = "refused"
	SentimentInfoNeeded Sentiment = "info_needed"
	SentimentNeutral    Sentiment = "neutral"
)

// Action is the classifier's suggested next move.
type Action string

const (
	ActionContinue Action = "continue"
	ActionAccept   Action = "accept"
	ActionWalkAway Action = "walk_away"
	ActionClarify  Action = "clarify"
)

// MatchRequest asks whether a vendor can fulfil the order.
type MatchRequest struct {
	Vendor    Vendor
	Order     OrderRequirement
	Documents []Document
}

// MatchResult is the capability's screening answer.
type MatchResult struct {
	Suitable  bool   `json:"suitable"`
	ProductID string `json:"product_id,omitempty"`
	Reasoning string `json:"reasoning"`
}

// StrategyRequest asks the capability to draft a plan for one vendor.
type StrategyRequest struct {
	Vendor Vendor
	Order  OrderRequirement
}

// ClassifyRequest carries a vendor reply and the context needed to read it.
type ClassifyRequest struct {
	Reply   string
	Vendor  Vendor
	Order   OrderRequirement
	Plan    StrategyPlan
	History []Turn
}

// ReplyClassification is the capability's reading of a vendor reply.
type ReplyClassification struct {
	Sentiment       Sentiment `json:"sentiment"`
	SuggestedAction Action    `json:"suggested_action"`
	ExtractedPrice  *float64  `json:"extracted_price,omitempty"`
}

// NeutralClassification is used when classification fails.
func NeutralClassification() ReplyClassification {
	return ReplyClassification{Sentiment: SentimentNeutral, SuggestedAction: ActionContinue}
}

// ExtractRequest carries the complete transcript of a terminal session.
type ExtractRequest struct {
	Vendor     Vendor
	Order      OrderRequirement
	Transcript []Turn
}

// DealExtraction is the authoritative reading of a finished negotiation.
type DealExtraction struct {
	FinalPrice   *float64 `json:"final_price,omitempty"`
	ListPrice    *float64 `json:"list_price,omitempty"`
	BundledItems []string `json:"bundled_items"`
	Summary      string   `json:"summary"`
	DealStatus   string   `json:"deal_status"`
	DeliveryDays *int     `json:"delivery_days,omitempty"`
	PaymentTerms string   `json:"payment_terms,omitempty"`
}

// MessageRequest is the context used to draft the next outbound message.
type MessageRequest struct {
	Vendor      Vendor
	Order       OrderRequirement
	Plan        StrategyPlan
	Phase       Phase
	Tactics     []string
	Constraints []string
	History     []Turn
	Last        ReplyClassification
}

// Benchmarks are market-wide statistics over valid offers.
type Benchmarks struct {
	BestPrice     float64 `json:"best_price"`
	MedianPrice   float64 `json:"median_price"`
	SpreadPercent float64 `json:"spread_percent"`
	TotalVendors  int     `json:"total_vendors"`
}

// Ranking places one vendor in the market order.
type Ranking struct {
	VendorID   string  `json:"vendor_id"`
	VendorName string  `json:"vendor_name"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Price      float64 `json:"price"`
	Reason     string  `json:"reason"`
}

// PressureLevel hints how hard to push a vendor.
type PressureLevel string

const (
	PressureLow    PressureLevel = "low"
	PressureMedium PressureLevel = "medium"
	PressureHigh   PressureLevel = "high"
)

// VendorOverride is per-vendor guidance derived from the market position.
type VendorOverride struct {
	PressureLevel       PressureLevel `json:"pressure_level"`
	SuggestedMove       string        `json:"suggested_move"`
	WalkawayRecommended bool          `json:"walkaway_recommended"`
	ReferencePrice      float64       `json:"reference_price"`
}

// MarketAnalysis is always derived from an offer set, never edited.
type MarketAnalysis struct {
	Benchmarks      Benchmarks                `json:"benchmarks"`
	Rankings        []Ranking                 `json:"rankings"`
	VendorOverrides map[string]VendorOverride `json:"vendor_overrides"`
	Summary         string                    `json:"summary"`
}

// VendorComparison is one row of the final report.
type VendorComparison struct {
	VendorID    string      `json:"vendor_id"`
	VendorName  string      `json:"vendor_name"`
	Rank        int         `json:"rank"`
	Score       float64     `json:"score"`
	Price       float64     `json:"price"`
	DeltaToBest float64     `json:"delta_to_best"`
	Status      OfferStatus `json:"status"`
	Summary     string      `json:"summary"`
}

// NoRecommendation is the recommended vendor id when no valid offer exists.
const NoRecommendation = "none"

// FinalComparisonReport is the ranked, justified recommendation of a run.
type FinalComparisonReport struct {
	RunID                 string             `json:"run_id,omitempty"`
	RecommendedVendorID   string             `json:"recommended_vendor_id"`
	RecommendedVendorName string             `json:"recommended_vendor_name"`
	Reason                string             `json:"reason"`
	Comparisons           []VendorComparison `json:"comparisons"`
	NoOffer               []string           `json:"no_offer,omitempty"`
	MarketSummary         string             `json:"market_summary"`
	HumanAction           string             `json:"human_action"`
}
