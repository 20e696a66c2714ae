package eventbus

import (
	"testing"
)

// NopPublisher is a publisher that swallows all events, for tests and for
// setups without a message bus.
type NopPublisher struct{}

func (n NopPublisher) Publish(topic string, data any) error {
	return nil
}

func (n NopPublisher) CreateTopic(topic string) error {
	return nil
}

func (n NopPublisher) Stop() {
}

func InitTestPublisher(t *testing.T) *NSQClient {
	t.Helper()
	return &NSQClient{
		Publisher: NopPublisher{},
	}
}
