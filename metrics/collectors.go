package metrics

import (
	"context"

	"betboard/events"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors tracks domain activity observed on the event bus
type Collectors struct {
	BusEvents      *prometheus.CounterVec
	StakesPlaced   prometheus.Counter
	StakedAmount   prometheus.Counter
	EventsCreated  prometheus.Counter
	EventsFinished prometheus.Counter
	Payouts        prometheus.Counter
	Refunds        prometheus.Counter
	BankTransfers  *prometheus.CounterVec
}

// NewCollectors creates the collectors and registers them with reg
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		BusEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betboard_bus_events_total",
			Help: "Domain events delivered on the bus by type",
		}, []string{"type"}),
		StakesPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betboard_stakes_placed_total",
			Help: "Admitted participations",
		}),
		StakedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betboard_staked_amount_total",
			Help: "Sum of admitted stakes",
		}),
		EventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betboard_events_created_total",
			Help: "Betting events created",
		}),
		EventsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betboard_events_finished_total",
			Help: "Betting events settled",
		}),
		Payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betboard_payout_amount_total",
			Help: "Sum of winnings paid at settlement",
		}),
		Refunds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betboard_refund_amount_total",
			Help: "Sum of unspent budget returned to creators",
		}),
		BankTransfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betboard_bank_transfers_total",
			Help: "Reconciled bank statement items by direction",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		c.BusEvents,
		c.StakesPlaced,
		c.StakedAmount,
		c.EventsCreated,
		c.EventsFinished,
		c.Payouts,
		c.Refunds,
		c.BankTransfers,
	)

	return c
}

// Subscribe attaches the collectors to every event type on the bus
func (c *Collectors) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(c.Observe)
}

// Observe updates the collectors for one event
func (c *Collectors) Observe(_ context.Context, e events.Event) {
	c.BusEvents.WithLabelValues(string(e.Type())).Inc()

	switch ev := e.(type) {
	case events.StakePlacedEvent:
		c.StakesPlaced.Inc()
		c.StakedAmount.Add(ev.Stake.InexactFloat64())
	case events.EventCreatedEvent:
		c.EventsCreated.Inc()
	case events.EventFinishedEvent:
		c.EventsFinished.Inc()
		c.Payouts.Add(ev.TotalPayout.InexactFloat64())
		if ev.Refund.IsPositive() {
			c.Refunds.Add(ev.Refund.InexactFloat64())
		}
	case events.DepositReconciledEvent:
		direction := "deposit"
		if ev.Amount.IsNegative() {
			direction = "withdrawal"
		}
		c.BankTransfers.WithLabelValues(direction).Inc()
	}
}
