package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"betboard/bankfeed"
	"betboard/cache"
	"betboard/config"
	"betboard/database"
	"betboard/events"
	"betboard/messaging"
	"betboard/metrics"
	"betboard/notify"
	"betboard/repository"
	"betboard/service"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// ErrBankFeedDisabled is returned by deposit commands without a bank token
var ErrBankFeedDisabled = errors.New("bank feed is not configured (set MONOBANK_TOKEN)")

// App wires configuration, storage, integrations and services
type App struct {
	DB            *database.DB
	Bus           *events.Bus
	Events        service.EventService
	Participation service.ParticipationService
	Stats         service.StatsService
	Deposits      service.DepositService

	closers []func()
}

// NewApp connects to the database and optional integrations and builds the services
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	app := &App{
		DB:  db,
		Bus: events.NewBus(),
	}
	app.closers = append(app.closers, db.Close)

	var oddsCache service.OddsCache
	if cfg.RedisEnabled() {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Warn("Odds cache unavailable, continuing without it")
		} else {
			oddsCache = cache.NewRedisOddsCache(rdb, cfg.OddsCacheTTL)
			app.closers = append(app.closers, func() { _ = rdb.Close() })
			log.WithField("addr", cfg.RedisAddr).Info("Odds cache connected")
		}
	}

	app.wireIntegrations(cfg)

	uowFactory := repository.NewUnitOfWorkFactory(db, app.Bus)
	settlement := service.NewSettlementService(uowFactory, oddsCache)
	app.Events = service.NewEventService(uowFactory, settlement, oddsCache)
	app.Participation = service.NewParticipationService(uowFactory, oddsCache)
	app.Stats = service.NewStatsService(uowFactory)

	if cfg.BankFeedEnabled() {
		accounts := bankfeed.NewAccountCache(cfg.BankAccountTTL, time.Now)
		feed := bankfeed.NewMonobankClient(cfg.MonobankAPIURL, cfg.MonobankToken, cfg.BankHTTPTimeout, accounts)
		app.Deposits = service.NewDepositService(uowFactory, feed, service.DepositConfig{
			DepositWindow:  cfg.DepositWindow,
			WithdrawWindow: cfg.WithdrawWindow,
		}, time.Now)
	}

	return app, nil
}

// wireIntegrations subscribes metrics, broker forwarding and announcements to the bus
func (a *App) wireIntegrations(cfg *config.Config) {
	metrics.NewCollectors(prometheus.DefaultRegisterer).Subscribe(a.Bus)

	var sinks []messaging.Sink
	if cfg.NATSEnabled() {
		nc, err := messaging.ConnectNATS(cfg.NATSServers)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, events will not be forwarded there")
		} else {
			sinks = append(sinks, messaging.NewNATSPublisher(nc, cfg.NATSSubjectPrefix))
			a.closers = append(a.closers, func() {
				if err := nc.Drain(); err != nil {
					nc.Close()
				}
			})
		}
	}
	if cfg.KafkaEnabled() {
		writer := messaging.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, messaging.NewKafkaPublisher(writer))
		a.closers = append(a.closers, func() {
			if err := writer.Close(); err != nil {
				log.WithError(err).Warn("Failed to close kafka writer")
			}
		})
	}
	messaging.NewForwarder(sinks...).Subscribe(a.Bus)

	if cfg.DiscordEnabled() {
		session, err := notify.NewDiscordSession(cfg.DiscordToken)
		if err != nil {
			log.WithError(err).Warn("Discord unavailable, announcements disabled")
		} else {
			notify.NewDiscordAnnouncer(session, cfg.DiscordChannelID).Subscribe(a.Bus)
			a.closers = append(a.closers, func() { _ = session.Close() })
		}
	}
}

// Close waits briefly for pending event handlers, then releases resources in reverse order
func (a *App) Close() {
	if a.Bus != nil && !a.Bus.Drain(5*time.Second) {
		log.Warn("Event handlers still running at shutdown")
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
