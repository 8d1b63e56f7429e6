package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"procureagent"
	"procureagent/notify"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"
)

type mockDoer struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Status: "200 OK", Body: io.NopCloser(bytes.NewBufferString("ok"))}
}

type mockPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return m.err
}

type sinkFunc func(context.Context, procureagent.ProgressEvent) error

func (f sinkFunc) Notify(ctx context.Context, e procureagent.ProgressEvent) error { return f(ctx, e) }

func sessionEvent() procureagent.ProgressEvent {
	return procureagent.ProgressEvent{
		Type:      procureagent.EventSessionComplete,
		RunID:     "run-1",
		VendorID:  "v1",
		Message:   "session finished",
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Offer: &procureagent.OfferSnapshot{
			VendorID:   "v1",
			VendorName: "Acme Supply",
			Price:      2450,
			Status:     procureagent.StatusFinalized,
			Outcome:    procureagent.OutcomeDealAgreed,
			Turns:      4,
			Summary:    "100 chairs for $2450.00",
		},
	}
}

func TestWebhookSink(t *testing.T) {
	tests := []struct {
		name    string
		doFunc  func(req *http.Request) (*http.Response, error)
		wantErr error
	}{
		{
			name: "success",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return okResponse(), nil
			},
		},
		{
			name: "failure status",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway", Body: io.NopCloser(bytes.NewBufferString(""))}, nil
			},
			wantErr: fmt.Errorf("failed to post message: 502 Bad Gateway"),
		},
		{
			name: "do error",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("network error")
			},
			wantErr: errors.New("network error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := notify.NewWebhookSink("http://hooks.local/progress", &mockDoer{doFunc: tt.doFunc})
			err := sink.Notify(context.Background(), sessionEvent())
			should.Equal(t, tt.wantErr, err)
		})
	}
}

func TestWebhookSinkPayload(t *testing.T) {
	var got procureagent.ProgressEvent
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		should.Equal(t, http.MethodPost, req.Method)
		should.Equal(t, "application/json", req.Header.Get("Content-Type"))
		must.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		return okResponse(), nil
	}}

	err := notify.NewWebhookSink("http://hooks.local/progress", doer).Notify(context.Background(), sessionEvent())
	must.NoError(t, err)
	should.Equal(t, procureagent.EventSessionComplete, got.Type)
	should.Equal(t, "run-1", got.RunID)
	must.NotNil(t, got.Offer)
	should.Equal(t, 2450.0, got.Offer.Price)
}

func TestSlackSink(t *testing.T) {
	report := &procureagent.FinalComparisonReport{
		RunID:                 "run-1",
		RecommendedVendorID:   "v1",
		RecommendedVendorName: "Acme Supply",
		Reason:                "Lowest price with fast delivery.",
		Comparisons: []procureagent.VendorComparison{
			{VendorID: "v1", VendorName: "Acme Supply", Rank: 1, Score: 0.91, Price: 2450, Status: procureagent.StatusFinalized},
			{VendorID: "v2", VendorName: "Globex", Rank: 2, Score: 0.7, Price: 2700, DeltaToBest: 10.2, Status: procureagent.StatusInProgress},
		},
		NoOffer:     []string{"Initech"},
		HumanAction: "Confirm the Acme Supply order.",
	}

	tests := []struct {
		name      string
		event     procureagent.ProgressEvent
		wantPost  bool
		wantTexts []string
	}{
		{
			name:      "report ready",
			event:     procureagent.ProgressEvent{Type: procureagent.EventReportReady, RunID: "run-1", Report: report},
			wantPost:  true,
			wantTexts: []string{"Recommended: *Acme Supply*", "2. Globex: $2700.00", "No offer: Initech", "_Next step: Confirm the Acme Supply order._"},
		},
		{
			name:      "session complete",
			event:     sessionEvent(),
			wantPost:  true,
			wantTexts: []string{"*Acme Supply* ended: DEAL_AGREED after 4 turns"},
		},
		{
			name:  "screening skipped",
			event: procureagent.ProgressEvent{Type: procureagent.EventScreeningComplete, RunID: "run-1"},
		},
		{
			name:  "report event without report",
			event: procureagent.ProgressEvent{Type: procureagent.EventReportReady, RunID: "run-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			posted := false
			doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
				posted = true
				must.NoError(t, json.NewDecoder(req.Body).Decode(&body))
				return okResponse(), nil
			}}

			sink := notify.NewSlackSink(notify.NewSlackClient("http://slack.com/webhook", doer), "#procurement")
			must.NoError(t, sink.Notify(context.Background(), tt.event))
			should.Equal(t, tt.wantPost, posted)
			if !tt.wantPost {
				return
			}
			should.Equal(t, "#procurement", body["channel"])
			for _, want := range tt.wantTexts {
				should.Contains(t, body["text"], want)
			}
		})
	}
}

func TestFormatReportNoRecommendation(t *testing.T) {
	text := notify.FormatReport(procureagent.FinalComparisonReport{
		RunID:               "run-2",
		RecommendedVendorID: procureagent.NoRecommendation,
		Reason:              "No vendor produced a valid offer.",
	})
	should.Equal(t, "*Procurement run run-2*\nNo recommendation: No vendor produced a valid offer.", text)
}

func TestNATSSink(t *testing.T) {
	pub := &mockPublisher{}
	sink := notify.NewNATSSink(pub, "procurement.progress")

	must.NoError(t, sink.Notify(context.Background(), sessionEvent()))
	must.Len(t, pub.subjects, 1)
	should.Equal(t, "procurement.progress.session_complete", pub.subjects[0])

	var got procureagent.ProgressEvent
	must.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	should.Equal(t, "v1", got.VendorID)

	pub.err = errors.New("nats: connection closed")
	should.EqualError(t, sink.Notify(context.Background(), sessionEvent()), "nats: connection closed")

	// A sink without its own connection has nothing to drain.
	sink.Close()
}

func TestMulti(t *testing.T) {
	var calls int
	ok := sinkFunc(func(context.Context, procureagent.ProgressEvent) error { calls++; return nil })
	failing := sinkFunc(func(context.Context, procureagent.ProgressEvent) error { calls++; return errors.New("boom") })

	err := notify.Multi{ok, failing, ok}.Notify(context.Background(), sessionEvent())
	should.EqualError(t, err, "boom")
	should.Equal(t, 3, calls)

	should.NoError(t, notify.Multi{}.Notify(context.Background(), sessionEvent()))
	should.NoError(t, notify.Nop{}.Notify(context.Background(), sessionEvent()))
}

func TestNew(t *testing.T) {
	doer := &mockDoer{doFunc: func(*http.Request) (*http.Response, error) { return okResponse(), nil }}

	tests := []struct {
		name     string
		cfg      procureagent.NotifyConfig
		wantType any
		wantLen  int
	}{
		{
			name:     "nothing configured",
			cfg:      procureagent.NotifyConfig{},
			wantType: notify.Nop{},
		},
		{
			name:     "webhook only",
			cfg:      procureagent.NotifyConfig{WebhookURL: "http://hooks.local"},
			wantType: &notify.WebhookSink{},
		},
		{
			name:     "webhook and slack",
			cfg:      procureagent.NotifyConfig{WebhookURL: "http://hooks.local", SlackWebhookURL: "http://slack.com/webhook"},
			wantType: notify.Multi{},
			wantLen:  2,
		},
		{
			name:     "unreachable nats keeps the webhook",
			cfg:      procureagent.NotifyConfig{WebhookURL: "http://hooks.local", NATSURL: "nats://127.0.0.1:1", NATSSubject: "procurement.progress"},
			wantType: &notify.WebhookSink{},
		},
		{
			name:     "unreachable nats alone",
			cfg:      procureagent.NotifyConfig{NATSURL: "nats://127.0.0.1:1"},
			wantType: notify.Nop{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, closeFn := notify.New(tt.cfg, doer)
			must.NotNil(t, sink)
			must.NotNil(t, closeFn)
			defer closeFn()

			should.IsType(t, tt.wantType, sink)
			if multi, ok := sink.(notify.Multi); ok {
				should.Len(t, multi, tt.wantLen)
			}
			should.NoError(t, sink.Notify(context.Background(), sessionEvent()))
		})
	}
}
