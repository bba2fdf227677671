package events

import (
	"context"

	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/ports"
)

// LogPublisher hands logical engine events to the notification
// collaborator by writing them to the structured log, which the
// delivery pipeline tails. The engine itself never sends user-visible
// messages.
type LogPublisher struct {
	logger *logger.Logger
}

// NewLogPublisher creates a new log-backed event publisher
func NewLogPublisher(l *logger.Logger) ports.EventPublisher {
	return &LogPublisher{logger: l.WithComponent("events")}
}

func (p *LogPublisher) Publish(_ context.Context, event ports.Event) {
	p.logger.LogEngineEvent(event.Type, event.ParticipantID.String(), event.Payload)
}
