package notify

import (
	"fmt"
	"time"

	"betboard/events"

	"github.com/bwmarrin/discordgo"
)

const (
	colorSuccess = 0x57F287
	colorInfo    = 0x5865F2
)

// FinishedEventEmbed renders the settlement summary of an event
func FinishedEventEmbed(e events.EventFinishedEvent, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: fmt.Sprintf("Winning outcome: **%s**", e.WinningLabel),
		Color:       colorSuccess,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Event ID: %d • Run %s", e.EventID, e.RunID),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Winners", Value: fmt.Sprintf("%d", e.WinnerCount), Inline: true},
			{Name: "Losers", Value: fmt.Sprintf("%d", e.LoserCount), Inline: true},
			{Name: "Total Payout", Value: formatAmount(e.TotalPayout), Inline: true},
		},
	}

	if e.Refund.IsPositive() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Refunded to " + e.Creator,
			Value:  formatAmount(e.Refund),
			Inline: true,
		})
	}

	return embed
}

// CreatedEventEmbed renders the announcement of a newly created event
func CreatedEventEmbed(e events.EventCreatedEvent, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: fmt.Sprintf("New event by **%s** with %d outcomes", e.Creator, e.ActionCount),
		Color:       colorInfo,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Event ID: %d", e.EventID),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Budget", Value: formatAmount(e.Budget), Inline: true},
		},
	}
}
