package capability

import (
	"context"

	"procureagent"
)

// LLM is the model transport an Adapter drives.
type LLM interface {
	Structured(ctx context.Context, p Prompt, docs []procureagent.Document, tool Tool, v any) error
	Text(ctx context.Context, p Prompt) (string, error)
}

// Adapter answers screening, strategy, classification, extraction and drafting
// requests on top of an LLM, tracing every call under one tracer name.
type Adapter struct {
	llm        LLM
	tracerName string
	filterDocs func([]procureagent.Document) []procureagent.Document
}

type AdapterOption func(*Adapter)

// WithDocumentFilter drops vendor documents the model cannot read before screening.
func WithDocumentFilter(f func([]procureagent.Document) []procureagent.Document) AdapterOption {
	return func(a *Adapter) {
		a.filterDocs = f
	}
}

func NewAdapter(llm LLM, tracerName string, opts ...AdapterOption) *Adapter {
	a := &Adapter{llm: llm, tracerName: tracerName}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) MatchVendor(ctx context.Context, req procureagent.MatchRequest) (procureagent.MatchResult, error) {
	if a.filterDocs != nil {
		req.Documents = a.filterDocs(req.Documents)
	}
	var answer MatchAnswer
	err := Traced(ctx, a.tracerName, "MatchVendor", func(ctx context.Context) error {
		p := MatchPrompt(req, len(req.Documents) > 0)
		return a.llm.Structured(ctx, p, req.Documents, MatchTool(), &answer)
	})
	if err != nil {
		return procureagent.MatchResult{}, err
	}
	return answer.Result(), nil
}

func (a *Adapter) DraftStrategy(ctx context.Context, req procureagent.StrategyRequest) (procureagent.StrategyPlan, error) {
	var answer StrategyAnswer
	err := Traced(ctx, a.tracerName, "DraftStrategy", func(ctx context.Context) error {
		return a.llm.Structured(ctx, StrategyPrompt(req), nil, StrategyTool(), &answer)
	})
	if err != nil {
		return procureagent.StrategyPlan{}, err
	}
	return answer.Plan(req.Vendor.ID), nil
}

func (a *Adapter) ClassifyReply(ctx context.Context, req procureagent.ClassifyRequest) (procureagent.ReplyClassification, error) {
	var answer ClassifyAnswer
	err := Traced(ctx, a.tracerName, "ClassifyReply", func(ctx context.Context) error {
		return a.llm.Structured(ctx, ClassifyPrompt(req), nil, ClassifyTool(), &answer)
	})
	if err != nil {
		return procureagent.ReplyClassification{}, err
	}
	return answer.Classification(), nil
}

func (a *Adapter) ExtractDeal(ctx context.Context, req procureagent.ExtractRequest) (procureagent.DealExtraction, error) {
	var answer DealAnswer
	err := Traced(ctx, a.tracerName, "ExtractDeal", func(ctx context.Context) error {
		return a.llm.Structured(ctx, ExtractPrompt(req), nil, ExtractTool(), &answer)
	})
	if err != nil {
		return procureagent.DealExtraction{}, err
	}
	return answer.Extraction(), nil
}

func (a *Adapter) GenerateMessage(ctx context.Context, req procureagent.MessageRequest) (string, error) {
	var text string
	err := Traced(ctx, a.tracerName, "GenerateMessage", func(ctx context.Context) error {
		var err error
		text, err = a.llm.Text(ctx, MessagePrompt(req))
		return err
	})
	return text, err
}
