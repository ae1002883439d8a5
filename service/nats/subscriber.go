package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Subscriber streams withdrawal events out of JetStream.
type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// SubscribeOptions selects which events a subscription receives.
type SubscribeOptions struct {
	// WithdrawalID limits the subscription to one withdrawal; empty means all.
	WithdrawalID string
	// Replay delivers retained events first instead of only new ones.
	Replay bool
}

// NewSubscriber connects to NATS for consuming withdrawal events.
func NewSubscriber(natsURL string, logger *slog.Logger) (*Subscriber, error) {
	nc, err := Connect(natsURL, "solwithdraw-subscriber")
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &Subscriber{nc: nc, js: js, logger: logger}, nil
}

// Subscribe creates an ephemeral ordered consumer and returns a channel of
// decoded events. The channel is closed when ctx is done.
func (s *Subscriber) Subscribe(ctx context.Context, opts SubscribeOptions) (<-chan *WithdrawalStatusEvent, error) {
	filter := StreamSubjects
	if opts.WithdrawalID != "" {
		filter = WithdrawalSubject(opts.WithdrawalID)
	}
	deliver := jetstream.DeliverNewPolicy
	if opts.Replay {
		deliver = jetstream.DeliverAllPolicy
	}

	cons, err := s.js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{filter},
		DeliverPolicy:  deliver,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	out := make(chan *WithdrawalStatusEvent, 10)
	// guards out against sends racing the close below
	var mu sync.Mutex
	closed := false

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var event WithdrawalStatusEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			s.logger.Warn("dropping malformed withdrawal event",
				"subject", msg.Subject(),
				"error", err,
			)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- &event:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out, nil
}

// Close closes the connection to NATS.
func (s *Subscriber) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}
