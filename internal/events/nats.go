// Package events relays pipeline events to external transports.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/dusk-indust/foresight/internal/pipeline"
)

// subjectPrefix is the root of the event subject hierarchy. Subjects take
// the form foresight.forecast.<forecast-id>.<event-kind>.
const subjectPrefix = "foresight.forecast"

// Publisher relays pipeline events onto NATS subjects so external consumers
// can follow forecast progress without polling.
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials the NATS server at url and returns a Publisher. With an
// empty url the default NATS port on localhost is used.
func Connect(url string, logger *zap.Logger) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(url, nats.Name("foresight"))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// Sink returns a function suitable for Reporter.AddSink. Publish failures
// are logged and dropped; event delivery is best-effort.
func (p *Publisher) Sink() func(pipeline.Event) {
	return func(event pipeline.Event) {
		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.Warn("marshal event", zap.Error(err))
			return
		}
		subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, event.ForecastID, event.Kind)
		if err := p.conn.Publish(subject, payload); err != nil {
			p.logger.Warn("publish event",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}
}

// Close drains the connection, flushing buffered publishes.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
