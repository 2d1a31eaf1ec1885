package messaging

import (
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/learnhub/completion-core/internal/domain/shared"
)

// Metadata keys set on every outgoing message.
const (
	MetadataEventType     = "event_type"
	MetadataAggregateID   = "aggregate_id"
	MetadataCorrelationID = "correlation_id"
)

// TopicPrefix namespaces every topic this service publishes to.
const TopicPrefix = "completion_"

// PoisonTopic receives messages that exhausted their retries.
const PoisonTopic = TopicPrefix + "poison"

// TopicFor maps an event type to its topic. Dots are not allowed in
// JetStream stream names, so they are replaced.
func TopicFor(eventType shared.EventType) string {
	return TopicPrefix + strings.ReplaceAll(string(eventType), ".", "_")
}

type decodeFunc func(data []byte) (shared.Event, error)

func decodeAs[T shared.Event]() decodeFunc {
	return func(data []byte) (shared.Event, error) {
		var ev T
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
}

var registry = map[shared.EventType]decodeFunc{
	shared.EventCourseCompleted:     decodeAs[shared.CourseCompletedEvent](),
	shared.EventCertificateIssued:   decodeAs[shared.CertificateIssuedEvent](),
	shared.EventAssessmentSubmitted: decodeAs[shared.AssessmentSubmittedEvent](),
	shared.EventEnrollmentCreated:   decodeAs[shared.EnrollmentCreatedEvent](),
}

// Marshal encodes an event as a Watermill message. The message UUID is the
// event id so redeliveries keep the same identity.
func Marshal(event shared.Event) (*message.Message, error) {
	if event == nil {
		return nil, ErrNilEvent
	}
	if _, ok := registry[event.EventType()]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotSupported, event.EventType())
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}

	msg := message.NewMessage(event.EventID(), payload)
	msg.Metadata.Set(MetadataEventType, string(event.EventType()))
	msg.Metadata.Set(MetadataAggregateID, event.AggregateID())
	if c, ok := event.(interface{ Correlation() string }); ok && c.Correlation() != "" {
		msg.Metadata.Set(MetadataCorrelationID, c.Correlation())
	}
	return msg, nil
}

// Unmarshal decodes a message produced by Marshal back into the concrete
// event value.
func Unmarshal(msg *message.Message) (shared.Event, error) {
	eventType := shared.EventType(msg.Metadata.Get(MetadataEventType))
	decode, ok := registry[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEventNotSupported, eventType)
	}

	ev, err := decode(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}
	return ev, nil
}
