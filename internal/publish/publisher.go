// Package publish streams domain events to NATS JetStream for downstream
// consumers (dashboards, notification fan-out, analytics).
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"YieldLedger/internal/event"
)

const (
	// StreamName holds every ledger event.
	StreamName = "YIELD_LEDGER_EVENTS"

	// SubjectPrefix is completed with the event type, e.g.
	// yield.ledger.events.loan_created.
	SubjectPrefix = "yield.ledger.events."
)

// wireEnvelope is the published JSON shape. The payload is embedded raw so
// consumers can decode it against the event_type without a second pass.
type wireEnvelope struct {
	Sequence  int64           `json:"sequence"`
	EventType string          `json:"event_type"`
	Owner     string          `json:"owner"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher drains the publish channel into JetStream. Publishing is
// best-effort by contract: the engine already dropped events when this
// channel was full, and a failed publish here is logged, not retried.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan event.Envelope
	logger    zerolog.Logger
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan event.Envelope, logger zerolog.Logger) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		logger:    logger,
	}
}

// EnsureStream creates the event stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// Run publishes envelopes until ctx is cancelled or the channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			p.publish(ctx, env)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env event.Envelope) {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		p.logger.Error().Err(err).Int64("sequence", env.Sequence).Msg("marshal payload")
		return
	}
	data, err := json.Marshal(wireEnvelope{
		Sequence:  env.Sequence,
		EventType: env.EventType.Subject(),
		Owner:     env.Owner,
		Timestamp: env.Timestamp,
		Payload:   payload,
	})
	if err != nil {
		p.logger.Error().Err(err).Int64("sequence", env.Sequence).Msg("marshal envelope")
		return
	}

	subject := SubjectPrefix + env.EventType.Subject()
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.logger.Warn().Err(err).
			Int64("sequence", env.Sequence).
			Str("subject", subject).
			Msg("publish failed, event not delivered")
	}
}

// Connect establishes a NATS connection and returns a JetStream context.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
