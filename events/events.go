package events

import (
	"context"
	"sync"
	"time"

	"betboard/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange      EventType = "balance_change"
	EventTypeEventCreated       EventType = "event_created"
	EventTypeEventStateChange   EventType = "event_state_change"
	EventTypeStakePlaced        EventType = "stake_placed"
	EventTypeCoefficientChanged EventType = "coefficient_changed"
	EventTypeEventFinished      EventType = "event_finished"
	EventTypeDepositReconciled  EventType = "deposit_reconciled"
)

// AllEventTypes lists every event type emitted on the bus
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChange,
		EventTypeEventCreated,
		EventTypeEventStateChange,
		EventTypeStakePlaced,
		EventTypeCoefficientChanged,
		EventTypeEventFinished,
		EventTypeDepositReconciled,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	Username        string                 `json:"username"`
	OldBalance      decimal.Decimal        `json:"old_balance"`
	NewBalance      decimal.Decimal        `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    decimal.Decimal        `json:"change_amount"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// EventCreatedEvent is emitted when a creator opens a new betting event
type EventCreatedEvent struct {
	EventID     int64           `json:"event_id"`
	Title       string          `json:"title"`
	Creator     string          `json:"creator"`
	Budget      decimal.Decimal `json:"budget"`
	ActionCount int             `json:"action_count"`
}

func (e EventCreatedEvent) Type() EventType {
	return EventTypeEventCreated
}

// EventStateChangeEvent represents an open/closed or public/private transition
type EventStateChangeEvent struct {
	EventID  int64  `json:"event_id"`
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
}

func (e EventStateChangeEvent) Type() EventType {
	return EventTypeEventStateChange
}

// StakePlacedEvent represents an admitted participation
type StakePlacedEvent struct {
	EventID         int64           `json:"event_id"`
	ActionID        int64           `json:"action_id"`
	ParticipationID int64           `json:"participation_id"`
	Username        string          `json:"username"`
	Stake           decimal.Decimal `json:"stake"`
	PotentialWin    decimal.Decimal `json:"potential_win"`
}

func (e StakePlacedEvent) Type() EventType {
	return EventTypeStakePlaced
}

// CoefficientChangedEvent represents a manual coefficient update on an action
type CoefficientChangedEvent struct {
	EventID        int64   `json:"event_id"`
	ActionID       int64   `json:"action_id"`
	OldCoefficient float64 `json:"old_coefficient"`
	NewCoefficient float64 `json:"new_coefficient"`
}

func (e CoefficientChangedEvent) Type() EventType {
	return EventTypeCoefficientChanged
}

// EventFinishedEvent is emitted once an event has been settled
type EventFinishedEvent struct {
	EventID         int64           `json:"event_id"`
	Title           string          `json:"title"`
	Creator         string          `json:"creator"`
	WinningActionID int64           `json:"winning_action_id"`
	WinningLabel    string          `json:"winning_label"`
	WinnerCount     int             `json:"winner_count"`
	LoserCount      int             `json:"loser_count"`
	TotalPayout     decimal.Decimal `json:"total_payout"`
	Refund          decimal.Decimal `json:"refund"`
	RunID           string          `json:"run_id"`
}

func (e EventFinishedEvent) Type() EventType {
	return EventTypeEventFinished
}

// DepositReconciledEvent represents a bank transaction credited or debited to a user
type DepositReconciledEvent struct {
	ExternalID string          `json:"external_id"`
	Username   string          `json:"username"`
	Amount     decimal.Decimal `json:"amount"`
}

func (e DepositReconciledEvent) Type() EventType {
	return EventTypeDepositReconciled
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	inflight sync.WaitGroup
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll registers the handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		b.inflight.Add(1)
		go func(h Handler, handlerIndex int) {
			defer b.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Drain waits for running handlers to return, giving up after timeout.
// It reports whether every handler finished.
func (b *Bus) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus after commit.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns the events buffered so far
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Handlers outlive the transaction context
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
