package pubsub

import (
	"context"
	"time"
)

type Broadcaster interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Health(ctx context.Context) error
}

// Sent after an event log has been (re)written for a period
type LogSaved struct {
	Level       string    `json:"level"`
	Key         string    `json:"key"`
	TotalEvents int       `json:"total_events"`
	Entities    int       `json:"entities"`
	Inputs      int       `json:"inputs"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Noop is used when no broker is configured
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }
func (Noop) Health(context.Context) error                       { return nil }
