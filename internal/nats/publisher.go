package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher announces calendar changes on JetStream. It satisfies
// calendar.Notifier.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishCalendarChange publishes a calendar change on aical.calendar.{type}.
// The event id and change type form the message id, so a retried publish
// inside the stream's duplicate window is stored once.
func (p *Publisher) PublishCalendarChange(ctx context.Context, change CalendarChange) error {
	subject := fmt.Sprintf("%s.%s", SubjectCalendarPrefix, change.Type)
	return p.publish(ctx, subject, change, change.EventID.String()+"."+change.Type)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any, msgID string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(msgID))
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
