package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"betboard/database"
	"betboard/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const eventColumns = `e.event_id, e.title, e.budget, e.initial_budget, e.stake_limit, e.player_limit,
	e.is_open, e.is_finished, e.is_public, e.password, e.creator, e.created_at, e.finished_at`

const actionColumns = `a.action_id, a.event_id, a.label, a.coefficient, a.display_order, a.created_at`

// EventRepository implements the EventRepository interface
type EventRepository struct {
	q queryable
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{q: db.Pool}
}

// newEventRepositoryWithTx creates a new event repository with a transaction
func newEventRepositoryWithTx(tx queryable) *EventRepository {
	return &EventRepository{q: tx}
}

func eventScanTargets(event *models.Event, password **string) []any {
	return []any{
		&event.ID,
		&event.Title,
		&event.Budget,
		&event.InitialBudget,
		&event.StakeLimit,
		&event.PlayerLimit,
		&event.IsOpen,
		&event.IsFinished,
		&event.IsPublic,
		password,
		&event.Creator,
		&event.CreatedAt,
		&event.FinishedAt,
	}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var event models.Event
	var password *string
	if err := row.Scan(eventScanTargets(&event, &password)...); err != nil {
		return nil, err
	}
	event.Password = stringValue(password)
	return &event, nil
}

// Create persists an event and its actions, assigning identifiers in place
func (r *EventRepository) Create(ctx context.Context, event *models.Event, actions []*models.Action) error {
	query := `
		INSERT INTO events
		(title, budget, initial_budget, stake_limit, player_limit, is_open, is_finished, is_public, password, creator)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING event_id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		event.Title,
		event.Budget,
		event.InitialBudget,
		event.StakeLimit,
		event.PlayerLimit,
		event.IsOpen,
		event.IsFinished,
		event.IsPublic,
		nullableString(event.Password),
		event.Creator,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	actionQuery := `
		INSERT INTO actions (event_id, label, coefficient, display_order)
		VALUES ($1, $2, $3, $4)
		RETURNING action_id, created_at
	`
	for i, action := range actions {
		action.EventID = event.ID
		action.DisplayOrder = int16(i)
		err := r.q.QueryRow(ctx, actionQuery,
			action.EventID,
			action.Label,
			action.Coefficient,
			action.DisplayOrder,
		).Scan(&action.ID, &action.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create action %q for event %d: %w", action.Label, event.ID, err)
		}
	}

	return nil
}

// GetByID retrieves an event without its actions
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.event_id = $1`

	event, err := scanEvent(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return event, nil
}

// GetByIDForUpdate retrieves an event and locks the row until the transaction ends
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.event_id = $1 FOR UPDATE`

	event, err := scanEvent(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock event %d: %w", id, err)
	}
	return event, nil
}

// GetDetail retrieves an event with its actions in display order
func (r *EventRepository) GetDetail(ctx context.Context, id int64) (*models.EventDetail, error) {
	query := `
		SELECT ` + eventColumns + `, ` + actionColumns + `
		FROM events e
		LEFT JOIN actions a ON a.event_id = e.event_id
		WHERE e.event_id = $1
		ORDER BY a.display_order, a.action_id
	`

	rows, err := r.q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event detail %d: %w", id, err)
	}

	details, err := collectDetails(rows)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, nil
	}
	return details[0], nil
}

// ListDetails returns every event with its actions, newest first
func (r *EventRepository) ListDetails(ctx context.Context) ([]*models.EventDetail, error) {
	query := `
		SELECT ` + eventColumns + `, ` + actionColumns + `
		FROM events e
		LEFT JOIN actions a ON a.event_id = e.event_id
		ORDER BY e.created_at DESC, e.event_id DESC, a.display_order, a.action_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return collectDetails(rows)
}

// collectDetails folds joined event/action rows into details, preserving row order
func collectDetails(rows pgx.Rows) ([]*models.EventDetail, error) {
	defer rows.Close()

	var details []*models.EventDetail
	byID := make(map[int64]*models.EventDetail)

	for rows.Next() {
		var event models.Event
		var password *string
		var (
			actionID     *int64
			eventID      *int64
			label        *string
			coefficient  *float64
			displayOrder *int16
			createdAt    *time.Time
		)

		targets := append(eventScanTargets(&event, &password),
			&actionID, &eventID, &label, &coefficient, &displayOrder, &createdAt)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Password = stringValue(password)

		detail, ok := byID[event.ID]
		if !ok {
			detail = &models.EventDetail{Event: &event}
			byID[event.ID] = detail
			details = append(details, detail)
		}

		if actionID == nil {
			continue
		}
		detail.Actions = append(detail.Actions, &models.Action{
			ID:           *actionID,
			EventID:      *eventID,
			Label:        *label,
			Coefficient:  *coefficient,
			DisplayOrder: *displayOrder,
			CreatedAt:    *createdAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return details, nil
}

// GetByCreator returns the events created by a user, newest first
func (r *EventRepository) GetByCreator(ctx context.Context, username string) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events e
		WHERE e.creator = $1
		ORDER BY e.created_at DESC, e.event_id DESC
	`

	rows, err := r.q.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by creator %s: %w", username, err)
	}
	defer rows.Close()

	var result []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		result = append(result, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return result, nil
}

// GetAction retrieves a single action
func (r *EventRepository) GetAction(ctx context.Context, actionID int64) (*models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions a WHERE a.action_id = $1`

	var action models.Action
	err := r.q.QueryRow(ctx, query, actionID).Scan(
		&action.ID,
		&action.EventID,
		&action.Label,
		&action.Coefficient,
		&action.DisplayOrder,
		&action.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action %d: %w", actionID, err)
	}
	return &action, nil
}

// UpdateBudget sets the event budget
func (r *EventRepository) UpdateBudget(ctx context.Context, eventID int64, budget decimal.Decimal) error {
	return r.execOne(ctx, "update budget",
		`UPDATE events SET budget = $1 WHERE event_id = $2`, budget, eventID)
}

// SetOpen toggles whether the event accepts participations
func (r *EventRepository) SetOpen(ctx context.Context, eventID int64, open bool) error {
	return r.execOne(ctx, "set open",
		`UPDATE events SET is_open = $1 WHERE event_id = $2`, open, eventID)
}

// SetVisibility toggles public/private. Public events never keep a password.
func (r *EventRepository) SetVisibility(ctx context.Context, eventID int64, public bool, password string) error {
	if public {
		password = ""
	}
	return r.execOne(ctx, "set visibility",
		`UPDATE events SET is_public = $1, password = $2 WHERE event_id = $3`,
		public, nullableString(password), eventID)
}

// MarkFinished sets the terminal finished flag and closes the event
func (r *EventRepository) MarkFinished(ctx context.Context, eventID int64, finishedAt time.Time) error {
	return r.execOne(ctx, "mark finished",
		`UPDATE events SET is_finished = TRUE, is_open = FALSE, finished_at = $1 WHERE event_id = $2`,
		finishedAt, eventID)
}

// UpdateCoefficient overwrites an action's coefficient
func (r *EventRepository) UpdateCoefficient(ctx context.Context, actionID int64, coefficient float64) error {
	result, err := r.q.Exec(ctx,
		`UPDATE actions SET coefficient = $1 WHERE action_id = $2`, coefficient, actionID)
	if err != nil {
		return fmt.Errorf("failed to update coefficient of action %d: %w", actionID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("action %d not found", actionID)
	}
	return nil
}

func (r *EventRepository) execOne(ctx context.Context, op string, query string, args ...any) error {
	eventID := args[len(args)-1]
	result, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s for event %v: %w", op, eventID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event %v not found", eventID)
	}
	return nil
}
