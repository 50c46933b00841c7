package repository

import (
	"context"
	"fmt"

	"betboard/database"
	"betboard/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const participationColumns = `p.participation_id, p.action_id, a.event_id, p.username, p.stake,
	p.potential_win, p.has_won, p.created_at`

// ParticipationRepository implements the ParticipationRepository interface
type ParticipationRepository struct {
	q queryable
}

// NewParticipationRepository creates a new participation repository
func NewParticipationRepository(db *database.DB) *ParticipationRepository {
	return &ParticipationRepository{q: db.Pool}
}

// newParticipationRepositoryWithTx creates a new participation repository with a transaction
func newParticipationRepositoryWithTx(tx queryable) *ParticipationRepository {
	return &ParticipationRepository{q: tx}
}

// Create inserts a participation
func (r *ParticipationRepository) Create(ctx context.Context, participation *models.Participation) error {
	query := `
		INSERT INTO participations (action_id, username, stake, potential_win)
		VALUES ($1, $2, $3, $4)
		RETURNING participation_id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		participation.ActionID,
		participation.Username,
		participation.Stake,
		participation.PotentialWin,
	).Scan(&participation.ID, &participation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create participation for %s: %w", participation.Username, err)
	}
	return nil
}

// GetByEvent returns all participations on an event's actions in placement order
func (r *ParticipationRepository) GetByEvent(ctx context.Context, eventID int64) ([]*models.Participation, error) {
	query := `
		SELECT ` + participationColumns + `
		FROM participations p
		JOIN actions a ON a.action_id = p.action_id
		WHERE a.event_id = $1
		ORDER BY p.participation_id
	`

	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participations for event %d: %w", eventID, err)
	}
	return collectParticipations(rows)
}

// GetByUser returns all participations of a user, newest first
func (r *ParticipationRepository) GetByUser(ctx context.Context, username string) ([]*models.Participation, error) {
	query := `
		SELECT ` + participationColumns + `
		FROM participations p
		JOIN actions a ON a.action_id = p.action_id
		WHERE p.username = $1
		ORDER BY p.created_at DESC, p.participation_id DESC
	`

	rows, err := r.q.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get participations for user %s: %w", username, err)
	}
	return collectParticipations(rows)
}

func collectParticipations(rows pgx.Rows) ([]*models.Participation, error) {
	defer rows.Close()

	var participations []*models.Participation
	for rows.Next() {
		var p models.Participation
		err := rows.Scan(
			&p.ID,
			&p.ActionID,
			&p.EventID,
			&p.Username,
			&p.Stake,
			&p.PotentialWin,
			&p.HasWon,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		participations = append(participations, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participations: %w", err)
	}

	return participations, nil
}

// StakeTotals returns the summed stake per action of an event. Actions
// without stakes are absent from the map.
func (r *ParticipationRepository) StakeTotals(ctx context.Context, eventID int64) (map[int64]decimal.Decimal, error) {
	query := `
		SELECT p.action_id, SUM(p.stake)
		FROM participations p
		JOIN actions a ON a.action_id = p.action_id
		WHERE a.event_id = $1
		GROUP BY p.action_id
	`

	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum stakes for event %d: %w", eventID, err)
	}
	defer rows.Close()

	totals := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var actionID int64
		var total decimal.Decimal
		if err := rows.Scan(&actionID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan stake total: %w", err)
		}
		totals[actionID] = total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stake totals: %w", err)
	}

	return totals, nil
}

// CountPlayers returns the number of distinct users staking on an event
func (r *ParticipationRepository) CountPlayers(ctx context.Context, eventID int64) (int, error) {
	query := `
		SELECT COUNT(DISTINCT p.username)
		FROM participations p
		JOIN actions a ON a.action_id = p.action_id
		WHERE a.event_id = $1
	`

	var count int
	if err := r.q.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players for event %d: %w", eventID, err)
	}
	return count, nil
}

// HasParticipated reports whether a user already staked on an event
func (r *ParticipationRepository) HasParticipated(ctx context.Context, eventID int64, username string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM participations p
			JOIN actions a ON a.action_id = p.action_id
			WHERE a.event_id = $1 AND p.username = $2
		)
	`

	var exists bool
	if err := r.q.QueryRow(ctx, query, eventID, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check participation of %s in event %d: %w", username, eventID, err)
	}
	return exists, nil
}

// SetOutcomes marks participations on the winning action as won and the rest as lost
func (r *ParticipationRepository) SetOutcomes(ctx context.Context, eventID int64, winningActionID int64) error {
	query := `
		UPDATE participations p
		SET has_won = (p.action_id = $2)
		FROM actions a
		WHERE a.action_id = p.action_id AND a.event_id = $1
	`

	if _, err := r.q.Exec(ctx, query, eventID, winningActionID); err != nil {
		return fmt.Errorf("failed to set outcomes for event %d: %w", eventID, err)
	}
	return nil
}
