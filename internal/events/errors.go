package events

import "errors"

var (
	// ErrPublisherClosed is returned when trying to publish on a closed publisher
	ErrPublisherClosed = errors.New("publisher is closed")

	// ErrNoBrokers is returned when Kafka is needed but no brokers are configured
	ErrNoBrokers = errors.New("no kafka brokers configured")

	// ErrUnroutedEvent is returned for an event type with no topic mapping
	ErrUnroutedEvent = errors.New("no topic configured for event type")
)
