package kafka

import (
	"github.com/segmentio/kafka-go"
)

// NewReader builds a group reader with manual offset commits; the
// consumer commits only after an event is fully handled.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}
