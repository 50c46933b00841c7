package cmd

import (
	"betboard/models"

	"github.com/spf13/cobra"
)

func newStatsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show user and event statistics",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "user <username>",
		Short: "Show a user's stakes and created events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				stats, err := app.Stats.UserStats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printUserStats(opts.printer(cmd), stats)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "event <event-id>",
		Short: "Analyze the stakes placed on an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID("event-id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				analysis, err := app.Stats.EventAnalysis(cmd.Context(), eventID)
				if err != nil {
					return err
				}
				return printEventAnalysis(opts.printer(cmd), analysis)
			})
		},
	})

	return cmd
}

func printUserStats(p *printer, s *models.UserStats) error {
	if p.format == "json" {
		created := make([]map[string]any, 0, len(s.CreatedEvents))
		for _, c := range s.CreatedEvents {
			created = append(created, map[string]any{
				"id":             c.Event.ID,
				"title":          c.Event.Title,
				"state":          c.Event.State(),
				"initial_budget": c.InitialBudget.StringFixed(2),
			})
		}
		return p.json(map[string]any{
			"username":       s.User.Username,
			"balance":        s.User.Balance.StringFixed(2),
			"participations": len(s.Participations),
			"total_staked":   s.TotalStaked.StringFixed(2),
			"total_won":      s.TotalWon.StringFixed(2),
			"created_events": created,
		})
	}

	p.line("%s: balance %s", s.User.Username, s.User.Balance.StringFixed(2))
	p.line("  %d stakes, staked %s, won %s", len(s.Participations), s.TotalStaked.StringFixed(2), s.TotalWon.StringFixed(2))
	for _, c := range s.CreatedEvents {
		p.line("  created #%d %s [%s] initial budget %s", c.Event.ID, c.Event.Title, c.Event.State(), c.InitialBudget.StringFixed(2))
	}
	return nil
}

func printEventAnalysis(p *printer, a *models.EventAnalysis) error {
	if p.format == "json" {
		return p.json(map[string]any{
			"event":          newEventView(a.Detail),
			"participations": len(a.Participations),
			"total_staked":   a.TotalStaked.StringFixed(2),
			"suggestions":    a.Suggestions,
		})
	}

	if err := p.event(a.Detail); err != nil {
		return err
	}
	p.line("  %d stakes totalling %s", len(a.Participations), a.TotalStaked.StringFixed(2))
	if len(a.Suggestions) == 0 {
		p.line("  no stakes yet, no suggestions")
		return nil
	}
	return p.suggestions(a.Suggestions)
}
