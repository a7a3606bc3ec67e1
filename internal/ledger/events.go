package ledger

import (
	"Bondr/internal/address"
	"Bondr/internal/logger"
)

// EventKind names a ledger notification.
type EventKind string

const (
	EventEscrowCreated     EventKind = "escrow_created"
	EventEscrowReleased    EventKind = "escrow_released"
	EventApprovalAdded     EventKind = "approval_added"
	EventEscrowClaimed     EventKind = "escrow_claimed"
	EventGroupLinked       EventKind = "group_linked"
	EventGroupReset        EventKind = "group_reset"
	EventMilestoneReached  EventKind = "milestone_reached"
	EventBadgeInitialized  EventKind = "badge_initialized"
	EventBadgeUpdated      EventKind = "badge_updated"
	EventCredentialIssued  EventKind = "credential_issued"
	EventRemittanceCreated EventKind = "remittance_created"
	EventRemittanceSettled EventKind = "remittance_settled"
	EventMintCreated       EventKind = "mint_created"
	EventTokensMinted      EventKind = "tokens_minted"
)

// Event is published after the operation that raised it commits.
// Fields that do not apply to a kind are left zero.
type Event struct {
	Kind       EventKind       `json:"kind"`
	Address    address.Address `json:"address"`
	Actor      address.Key     `json:"actor"`
	Amount     uint64          `json:"amount,omitempty"`
	Count      uint64          `json:"count,omitempty"`
	Milestone  Milestone       `json:"milestone,omitempty"`
	Tier       string          `json:"tier,omitempty"`
	Credential string          `json:"credential,omitempty"`
}

// Sink receives committed events.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish calls f(ev).
func (f SinkFunc) Publish(ev Event) {
	f(ev)
}

// LogSink writes events to the global logger.
type LogSink struct{}

// Publish logs ev at info level.
func (LogSink) Publish(ev Event) {
	args := []any{"kind", ev.Kind, "address", ev.Address.Short(), "actor", ev.Actor.Short()}

	if ev.Amount != 0 {
		args = append(args, "amount", ev.Amount)
	}
	if ev.Milestone != "" {
		args = append(args, "milestone", ev.Milestone, "count", ev.Count)
	}
	if ev.Tier != "" {
		args = append(args, "tier", ev.Tier)
	}

	logger.Info("ledger event", args...)
}
