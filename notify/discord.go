package notify

import (
	"context"
	"fmt"
	"time"

	"betboard/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordAnnouncer posts event announcements to a Discord channel
type DiscordAnnouncer struct {
	session   embedSender
	channelID string
	now       func() time.Time
}

// NewDiscordSession opens a bot session with the token
func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open discord session: %w", err)
	}
	return session, nil
}

// NewDiscordAnnouncer creates an announcer posting to channelID
func NewDiscordAnnouncer(session embedSender, channelID string) *DiscordAnnouncer {
	return &DiscordAnnouncer{
		session:   session,
		channelID: channelID,
		now:       time.Now,
	}
}

// Subscribe attaches the announcer to created and finished events
func (a *DiscordAnnouncer) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeEventCreated, a.Handle)
	bus.Subscribe(events.EventTypeEventFinished, a.Handle)
}

// Handle posts an announcement for supported events; others are ignored
func (a *DiscordAnnouncer) Handle(_ context.Context, e events.Event) {
	var embed *discordgo.MessageEmbed
	var eventID int64

	switch ev := e.(type) {
	case events.EventCreatedEvent:
		embed = CreatedEventEmbed(ev, a.now())
		eventID = ev.EventID
	case events.EventFinishedEvent:
		embed = FinishedEventEmbed(ev, a.now())
		eventID = ev.EventID
	default:
		return
	}

	if _, err := a.session.ChannelMessageSendEmbed(a.channelID, embed); err != nil {
		log.WithFields(log.Fields{
			"eventID":   eventID,
			"eventType": e.Type(),
			"channelID": a.channelID,
			"error":     err,
		}).Error("Failed to post announcement")
		return
	}

	log.WithFields(log.Fields{
		"eventID":   eventID,
		"eventType": e.Type(),
	}).Info("Posted announcement")
}
