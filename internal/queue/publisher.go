package queue

import (
	"context"
	"fmt"

	"github.com/iliyamo/concert-reservation/internal/config"
	"github.com/iliyamo/concert-reservation/internal/logger"
)

// Publisher delivers events to a broker.  Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.  It is used when EVENTS_BROKER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// NewPublisher builds the publisher selected by cfg.Broker.
func NewPublisher(cfg config.EventsConfig, log *logger.Logger) (Publisher, error) {
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		return NewRabbitPublisher(cfg.RabbitURL, cfg.Queue, log), nil
	case config.BrokerKafka:
		kp, err := NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return nil, err
		}
		return kp, nil
	case config.BrokerNone, "":
		return NopPublisher{}, nil
	}
	return nil, fmt.Errorf("unknown events broker %q", cfg.Broker)
}
