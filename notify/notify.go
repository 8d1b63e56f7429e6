// Package notify delivers run progress events to webhooks, Slack and NATS.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"procureagent"
)

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, procureagent.ProgressEvent) error { return nil }

// Multi fans an event out to every sink and joins their errors.
type Multi []procureagent.ProgressSink

func (m Multi) Notify(ctx context.Context, event procureagent.ProgressEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the sinks enabled in cfg and a close function for the ones holding a
// connection (NATS). A sink that cannot connect is logged and left out.
func New(cfg procureagent.NotifyConfig, httpClient procureagent.HTTPClient) (procureagent.ProgressSink, func()) {
	var sinks Multi
	closeFn := func() {}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, httpClient))
	}
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, NewSlackSink(NewSlackClient(cfg.SlackWebhookURL, httpClient), cfg.SlackChannel))
	}
	if cfg.NATSURL != "" {
		ns, err := ConnectNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			slog.Warn("SETUP: NATS progress sink disabled", "url", cfg.NATSURL, "error", err)
		} else {
			sinks = append(sinks, ns)
			closeFn = ns.Close
		}
	}

	switch len(sinks) {
	case 0:
		return Nop{}, closeFn
	case 1:
		return sinks[0], closeFn
	default:
		return sinks, closeFn
	}
}
