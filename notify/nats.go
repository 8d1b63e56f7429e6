package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"procureagent"

	"github.com/nats-io/nats.go"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event as JSON on <subject>.<event type>.
type NATSSink struct {
	pub     publisher
	subject string
	conn    *nats.Conn
}

func NewNATSSink(pub publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: subject}
}

func ConnectNATS(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("procure-agent"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	s := NewNATSSink(nc, subject)
	s.conn = nc
	return s, nil
}

func (s *NATSSink) Notify(_ context.Context, event procureagent.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.subject+"."+string(event.Type), data)
}

// Close flushes pending events and closes the connection, if the sink owns one.
func (s *NATSSink) Close() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Drain(); err != nil {
		slog.Warn("ORCHESTRATOR: NATS drain failed", "error", err)
	}
}
