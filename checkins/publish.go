/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package checkins

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is where check-in events are published.
const DefaultSubject = "sticky.checkins"

// Event announces a check-in. The photo is left out.
type Event struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Day         string    `json:"day"`
	Game        string    `json:"game"`
	Mood        string    `json:"mood"`
	SeedHash    string    `json:"seed_hash"`
	Streak      int       `json:"streak"`
	GroupsDone  []string  `json:"groups_done,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ChallengeID string    `json:"challenge_id,omitempty"`
}

// Publisher sends check-in events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// NATSPublisher publishes events as JSON on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject, name string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject events go to.
func (p *NATSPublisher) Subject() string { return p.subject }

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}

// Close flushes pending events and disconnects.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
