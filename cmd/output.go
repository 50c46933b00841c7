package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"betboard/models"
)

// printer renders command results as text or JSON
type printer struct {
	format string
	w      io.Writer
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

type actionView struct {
	ID          int64   `json:"id"`
	Label       string  `json:"label"`
	Coefficient float64 `json:"coefficient"`
}

type eventView struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Creator     string       `json:"creator"`
	State       string       `json:"state"`
	Public      bool         `json:"public"`
	Budget      string       `json:"budget"`
	StakeLimit  string       `json:"stake_limit"`
	PlayerLimit int          `json:"player_limit"`
	Actions     []actionView `json:"actions"`
}

func newEventView(d *models.EventDetail) eventView {
	v := eventView{
		ID:          d.Event.ID,
		Title:       d.Event.Title,
		Creator:     d.Event.Creator,
		State:       string(d.Event.State()),
		Public:      d.Event.IsPublic,
		Budget:      d.Event.Budget.StringFixed(2),
		StakeLimit:  d.Event.StakeLimit.StringFixed(2),
		PlayerLimit: d.Event.PlayerLimit,
		Actions:     make([]actionView, 0, len(d.Actions)),
	}
	for _, a := range d.Actions {
		v.Actions = append(v.Actions, actionView{ID: a.ID, Label: a.Label, Coefficient: a.Coefficient})
	}
	return v
}

func (p *printer) event(d *models.EventDetail) error {
	v := newEventView(d)
	if p.format == "json" {
		return p.json(v)
	}

	visibility := "public"
	if !v.Public {
		visibility = "private"
	}
	p.line("#%d %s [%s, %s] by %s", v.ID, v.Title, v.State, visibility, v.Creator)
	p.line("  budget %s, stake limit %s, players %d", v.Budget, v.StakeLimit, v.PlayerLimit)
	for _, a := range v.Actions {
		p.line("  - %d %s x%.2f", a.ID, a.Label, a.Coefficient)
	}
	return nil
}

func (p *printer) events(details []*models.EventDetail) error {
	if p.format == "json" {
		views := make([]eventView, 0, len(details))
		for _, d := range details {
			views = append(views, newEventView(d))
		}
		return p.json(views)
	}

	if len(details) == 0 {
		p.line("no events")
		return nil
	}
	for _, d := range details {
		p.line("#%d %s [%s] budget %s, %d outcomes",
			d.Event.ID, d.Event.Title, d.Event.State(), d.Event.Budget.StringFixed(2), len(d.Actions))
	}
	return nil
}

func (p *printer) suggestions(s []models.SuggestedCoefficient) error {
	if p.format == "json" {
		return p.json(s)
	}
	for _, c := range s {
		p.line("%d %-20s staked %10s  current x%.2f  suggested x%.2f",
			c.ActionID, c.Label, c.Staked.StringFixed(2), c.Current, c.Suggested)
	}
	return nil
}

type settlementView struct {
	EventID       int64    `json:"event_id"`
	WinningAction string   `json:"winning_action"`
	Winners       []string `json:"winners"`
	Losers        []string `json:"losers"`
	TotalPayout   string   `json:"total_payout"`
	Refund        string   `json:"refund"`
	RunID         string   `json:"run_id"`
}

func (p *printer) settlement(r *models.SettlementResult) error {
	v := settlementView{
		EventID:       r.Event.ID,
		WinningAction: r.WinningAction.Label,
		Winners:       []string{},
		Losers:        []string{},
		TotalPayout:   r.TotalPayout.StringFixed(2),
		Refund:        r.Refund.StringFixed(2),
		RunID:         r.RunID,
	}
	for _, w := range r.Winners {
		v.Winners = append(v.Winners, w.Username)
	}
	for _, l := range r.Losers {
		v.Losers = append(v.Losers, l.Username)
	}

	if p.format == "json" {
		return p.json(v)
	}
	p.line("event #%d finished, winner %q", v.EventID, v.WinningAction)
	p.line("  winners: %s", strings.Join(v.Winners, ", "))
	p.line("  losers:  %s", strings.Join(v.Losers, ", "))
	p.line("  payout %s, refund %s (run %s)", v.TotalPayout, v.Refund, v.RunID)
	return nil
}

func (p *printer) participation(pt *models.Participation) error {
	if p.format == "json" {
		return p.json(map[string]any{
			"id":            pt.ID,
			"event_id":      pt.EventID,
			"action_id":     pt.ActionID,
			"username":      pt.Username,
			"stake":         pt.Stake.StringFixed(2),
			"potential_win": pt.PotentialWin.StringFixed(2),
		})
	}
	p.line("participation #%d: %s staked %s on action %d, potential win %s",
		pt.ID, pt.Username, pt.Stake.StringFixed(2), pt.ActionID, pt.PotentialWin.StringFixed(2))
	return nil
}

func (p *printer) report(kind string, r *models.ReconcileReport) error {
	if p.format == "json" {
		return p.json(map[string]any{
			"kind":       kind,
			"fetched":    r.Fetched,
			"applied":    r.Applied,
			"duplicates": r.Duplicates,
			"unmatched":  r.Unmatched,
			"rejected":   r.Rejected,
			"total":      r.Total.StringFixed(2),
		})
	}
	p.line("%s: fetched %d, applied %d, duplicates %d, unmatched %d, rejected %d, total %s",
		kind, r.Fetched, r.Applied, r.Duplicates, r.Unmatched, r.Rejected, r.Total.StringFixed(2))
	return nil
}

func (p *printer) ok(msg string, args ...any) error {
	if p.format == "json" {
		return p.json(map[string]string{"status": "ok", "message": fmt.Sprintf(msg, args...)})
	}
	p.line(msg, args...)
	return nil
}
