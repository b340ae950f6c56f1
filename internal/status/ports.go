package status

import (
	"context"
	"errors"
	"time"
)

type Side string

// Status values are persisted as-is.
type Status string

const (
	StatusOpen   Status = "LIBERADO"
	StatusClosed Status = "FECHADO"
)

var (
	ErrStorage  = errors.New("status storage")
	ErrDelivery = errors.New("message delivery")
)

// Record is one immutable row of status_history.
type Record struct {
	ID         int64
	Entity     Side
	Status     Status
	RecordedAt time.Time
}

// Message is the part of an inbound chat event the service acts on.
type Message struct {
	ChatID      string
	Text        string
	PushName    string
	MessageType string
}

// Outbound delivers text into a chat through the gateway.
type Outbound interface {
	SendText(ctx context.Context, number string, text string) error
}

// Repo is the append-only status log.
type Repo interface {
	RecordStatus(ctx context.Context, entity Side, status Status) error
	// LatestRecord returns the newest record, or an OPEN record with a zero
	// RecordedAt when the entity was never written.
	LatestRecord(ctx context.Context, entity Side) (Record, error)
}

type Service interface {
	HandleIncoming(ctx context.Context, msg *Message) error
}
