package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"procureagent"
)

func ptr[T any](v T) *T { return &v }

func arduinoOrder() procureagent.OrderRequirement {
	return procureagent.OrderRequirement{
		Item:     "Arduino boards",
		Quantity: procureagent.Quantity{Min: 100, Max: 200, Preferred: 150},
		Budget:   3000,
		Currency: "USD",
	}
}

func testPlan(vendorID string) procureagent.StrategyPlan {
	return procureagent.StrategyPlan{
		VendorID:       vendorID,
		PriceTargets:   procureagent.PriceTargets{Anchor: 2100, Target: 2400, WalkAway: 2850, Currency: "USD"},
		Tone:           "professional",
		OpeningMessage: "Hello, we need 150 Arduino boards. What is your best price?",
	}
}

func cls(s procureagent.Sentiment, a procureagent.Action) procureagent.ReplyClassification {
	return procureagent.ReplyClassification{Sentiment: s, SuggestedAction: a}
}

// fakeCapability scripts classifications per vendor; everything else is overridable.
type fakeCapability struct {
	mu sync.Mutex

	match    func(req procureagent.MatchRequest) (procureagent.MatchResult, error)
	draft    func(req procureagent.StrategyRequest) (procureagent.StrategyPlan, error)
	extract  func(req procureagent.ExtractRequest) (procureagent.DealExtraction, error)
	generate func(req procureagent.MessageRequest) (string, error)

	script      map[string][]procureagent.ReplyClassification
	classifyErr map[string]error
	classified  map[string]int

	generated []procureagent.MessageRequest
	extracted int
}

func newFakeCapability() *fakeCapability {
	return &fakeCapability{
		script:      map[string][]procureagent.ReplyClassification{},
		classifyErr: map[string]error{},
		classified:  map[string]int{},
	}
}

func (f *fakeCapability) MatchVendor(_ context.Context, req procureagent.MatchRequest) (procureagent.MatchResult, error) {
	if f.match != nil {
		return f.match(req)
	}
	return procureagent.MatchResult{Suitable: true, ProductID: "P-" + req.Vendor.ID, Reasoning: "matches"}, nil
}

func (f *fakeCapability) DraftStrategy(_ context.Context, req procureagent.StrategyRequest) (procureagent.StrategyPlan, error) {
	if f.draft != nil {
		return f.draft(req)
	}
	return testPlan(req.Vendor.ID), nil
}

// ClassifyReply walks the vendor's script, repeating the last entry once exhausted.
// Vendors without a script are always flexible.
func (f *fakeCapability) ClassifyReply(_ context.Context, req procureagent.ClassifyRequest) (procureagent.ReplyClassification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := req.Vendor.ID
	if err := f.classifyErr[id]; err != nil {
		return procureagent.ReplyClassification{}, err
	}
	script := f.script[id]
	n := f.classified[id]
	f.classified[id]++
	if len(script) == 0 {
		return cls(procureagent.SentimentFlexible, procureagent.ActionContinue), nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n], nil
}

func (f *fakeCapability) ExtractDeal(_ context.Context, req procureagent.ExtractRequest) (procureagent.DealExtraction, error) {
	f.mu.Lock()
	f.extracted++
	f.mu.Unlock()
	if f.extract != nil {
		return f.extract(req)
	}
	return procureagent.DealExtraction{
		FinalPrice: ptr(2500.0),
		ListPrice:  ptr(3000.0),
		Summary:    "150 boards for $2500",
		DealStatus: "finalized",
	}, nil
}

func (f *fakeCapability) GenerateMessage(_ context.Context, req procureagent.MessageRequest) (string, error) {
	f.mu.Lock()
	f.generated = append(f.generated, req)
	f.mu.Unlock()
	if f.generate != nil {
		return f.generate(req)
	}
	return fmt.Sprintf("%s message %d", req.Phase, len(req.History)), nil
}

// fakeMessenger echoes a numbered reply and can fail create or a given send.
type fakeMessenger struct {
	mu sync.Mutex

	createErr map[string]error
	failSend  map[string]int // vendor id -> zero-based send index that fails
	sendErr   error

	creates int
	sent    map[string][]string
	vendor  map[string]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		createErr: map[string]error{},
		failSend:  map[string]int{},
		sendErr:   errors.New("connection reset"),
		sent:      map[string][]string{},
		vendor:    map[string]string{},
	}
}

func (m *fakeMessenger) CreateConversation(ctx context.Context, vendorID, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.createErr[vendorID]; err != nil {
		return "", err
	}
	conv := "conv-" + vendorID
	m.vendor[conv] = vendorID
	return conv, nil
}

func (m *fakeMessenger) SendMessage(ctx context.Context, conversationID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	vendorID := m.vendor[conversationID]
	if at, ok := m.failSend[vendorID]; ok && len(m.sent[conversationID]) == at {
		return "", m.sendErr
	}
	m.sent[conversationID] = append(m.sent[conversationID], text)
	return fmt.Sprintf("reply %d from %s", len(m.sent[conversationID]), vendorID), nil
}

func (m *fakeMessenger) contacts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

type fakeDirectory struct {
	vendors []procureagent.Vendor
	err     error
	calls   int
}

func (d *fakeDirectory) ListVendors(context.Context, string) ([]procureagent.Vendor, error) {
	d.calls++
	return d.vendors, d.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []procureagent.ProgressEvent
	err    error
}

func (s *recordingSink) Notify(_ context.Context, e procureagent.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) types() []procureagent.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]procureagent.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}
