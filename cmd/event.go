package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"betboard/models"
	"betboard/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newEventCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage betting events",
	}

	cmd.AddCommand(newEventCreateCommand(opts))
	cmd.AddCommand(newEventShowCommand(opts))
	cmd.AddCommand(newEventListCommand(opts))
	cmd.AddCommand(newEventTransitionCommand(opts, "open", "Accept new stakes", service.EventService.SetOpen))
	cmd.AddCommand(newEventTransitionCommand(opts, "close", "Stop accepting stakes", service.EventService.SetClosed))
	cmd.AddCommand(newEventTransitionCommand(opts, "public", "Make the event public", service.EventService.SetPublic))
	cmd.AddCommand(newEventPrivateCommand(opts))
	cmd.AddCommand(newEventFinishCommand(opts))
	cmd.AddCommand(newEventSuggestCommand(opts))
	cmd.AddCommand(newEventCoefficientCommand(opts))

	return cmd
}

func newEventCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		params      service.CreateEventParams
		budget      string
		stakeLimit  string
		private     bool
		actionSpecs []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event and hold its budget from the creator",
		Example: `  betboard event create --title "Final" --creator alice --budget 500 \
    --stake-limit 50 --player-limit 20 --action "Team A=1.8" --action "Team B=2.1"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if params.Budget, err = parseAmount("budget", budget); err != nil {
				return err
			}
			if params.StakeLimit, err = parseAmount("stake-limit", stakeLimit); err != nil {
				return err
			}
			for _, spec := range actionSpecs {
				action, err := parseActionSpec(spec)
				if err != nil {
					return err
				}
				params.Actions = append(params.Actions, action)
			}
			params.IsPublic = !private

			return opts.withApp(cmd, func(app *App) error {
				detail, err := app.Events.Create(cmd.Context(), params)
				if err != nil {
					return err
				}
				return opts.printer(cmd).event(detail)
			})
		},
	}

	cmd.Flags().StringVar(&params.Title, "title", "", "event title")
	cmd.Flags().StringVar(&params.Creator, "creator", "", "username funding the budget")
	cmd.Flags().StringVar(&budget, "budget", "", "budget held from the creator")
	cmd.Flags().StringVar(&stakeLimit, "stake-limit", "", "maximum single stake")
	cmd.Flags().IntVar(&params.PlayerLimit, "player-limit", 0, "maximum distinct players")
	cmd.Flags().BoolVar(&private, "private", false, "create a private event")
	cmd.Flags().StringVar(&params.Password, "password", "", "password for a private event")
	cmd.Flags().StringArrayVar(&actionSpecs, "action", nil, `outcome as "label=coefficient", repeatable`)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("budget")
	_ = cmd.MarkFlagRequired("stake-limit")

	return cmd
}

func newEventShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show an event with its outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID("event-id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				detail, err := app.Events.GetEvent(cmd.Context(), eventID)
				if err != nil {
					return err
				}
				return opts.printer(cmd).event(detail)
			})
		},
	}
}

func newEventListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				details, err := app.Events.ListEvents(cmd.Context())
				if err != nil {
					return err
				}
				return opts.printer(cmd).events(details)
			})
		},
	}
}

type transitionFunc func(s service.EventService, ctx context.Context, eventID int64) error

func newEventTransitionCommand(opts *RootOptions, use, short string, transition transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <event-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID("event-id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := transition(app.Events, cmd.Context(), eventID); err != nil {
					return err
				}
				return opts.printer(cmd).ok("event #%d: %s", eventID, use)
			})
		},
	}
}

func newEventPrivateCommand(opts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "private <event-id>",
		Short: "Make the event private behind a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID("event-id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Events.SetPrivate(cmd.Context(), eventID, password); err != nil {
					return err
				}
				return opts.printer(cmd).ok("event #%d: private", eventID)
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password required to join")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newEventFinishCommand(opts *RootOptions) *cobra.Command {
	var (
		label    string
		actionID int64
	)

	cmd := &cobra.Command{
		Use:   "finish <event-id>",
		Short: "Settle the event with the winning outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID("event-id", args[0])
			if err != nil {
				return err
			}
			if (label == "") == (actionID == 0) {
				return fmt.Errorf("exactly one of --label or --action-id is required")
			}

			return opts.withApp(cmd, func(app *App) error {
				ctx := cmd.Context()
				var (
					result *models.SettlementResult
					err    error
				)
				if actionID != 0 {
					result, err = app.Events.SetFinishedByAction(ctx, eventID, actionID)
				} else {
					result, err = app.Events.SetFinished(ctx, eventID, label)
				}
				if err != nil {
					return err
				}
				return opts.printer(cmd).settlement(result)
			})
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "label of the winning outcome")
	cmd.Flags().Int64Var(&actionID, "action-id", 0, "id of the winning outcome")

	return cmd
}

func newEventSuggestCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <event-id>",
		Short: "Suggest coefficients from the current stake distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID("event-id", args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				suggestions, err := app.Events.SuggestCoefficients(cmd.Context(), eventID)
				if err != nil {
					return err
				}
				return opts.printer(cmd).suggestions(suggestions)
			})
		},
	}
}

func newEventCoefficientCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "coefficient <action-id> <value>",
		Short: "Overwrite the coefficient of an outcome",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actionID, err := parseID("action-id", args[0])
			if err != nil {
				return err
			}
			coefficient, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid coefficient %q: %w", args[1], err)
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Events.UpdateCoefficient(cmd.Context(), actionID, coefficient); err != nil {
					return err
				}
				return opts.printer(cmd).ok("action #%d: coefficient %.2f", actionID, coefficient)
			})
		},
	}
}

// parseActionSpec parses "label=coefficient"; the label may itself contain '='
func parseActionSpec(spec string) (service.ActionParams, error) {
	idx := strings.LastIndex(spec, "=")
	if idx <= 0 || idx == len(spec)-1 {
		return service.ActionParams{}, fmt.Errorf("invalid action %q: expected label=coefficient", spec)
	}
	coefficient, err := strconv.ParseFloat(strings.TrimSpace(spec[idx+1:]), 64)
	if err != nil {
		return service.ActionParams{}, fmt.Errorf("invalid coefficient in action %q: %w", spec, err)
	}
	return service.ActionParams{Label: spec[:idx], Coefficient: coefficient}, nil
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return amount, nil
}
