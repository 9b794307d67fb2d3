package models

import (
	"errors"
	"fmt"
)

const (
	EnvelopeSchemaVersion = 1

	EventMessageCreated = "message.created"
)

var ErrUnknownEvent = errors.New("unknown envelope event")

// Envelope is the tagged schema crossing the broker. Both the producer and
// the consumer validate it, so a malformed payload can never make it from
// one side to the other silently.
type Envelope struct {
	SchemaVersion int         `json:"schema_version"`
	Event         string      `json:"event"`
	Message       ChatMessage `json:"message"`
}

// NewMessageEnvelope wraps a message for publication.
func NewMessageEnvelope(msg ChatMessage) Envelope {
	return Envelope{
		SchemaVersion: EnvelopeSchemaVersion,
		Event:         EventMessageCreated,
		Message:       msg,
	}
}

// Validate checks schema version, event tag and the embedded message.
func (e Envelope) Validate(maxBodyBytes int) error {
	if e.SchemaVersion != EnvelopeSchemaVersion {
		return fmt.Errorf("unsupported schema version %d", e.SchemaVersion)
	}
	if e.Event != EventMessageCreated {
		return ErrUnknownEvent
	}
	return e.Message.Validate(maxBodyBytes)
}
