package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmhautala/sportsreg/internal/model"
)

// EventRepo provides access to events and the players a checkout may
// register for them. Player CRUD itself lives in another application;
// this repository only validates references.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts an event. On success the event's ID is populated.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (name, starts_on, registration_due, fee_cents) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		e.Name, e.StartsOn.Format("2006-01-02"), e.RegistrationDue.Format("2006-01-02"), e.FeeCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID loads an event. Returns ErrEventNotFound when absent.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT id, name, starts_on, registration_due, fee_cents, created_at FROM events WHERE id = ?`
	var e model.Event
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.Name, &e.StartsOn, &e.RegistrationDue, &e.FeeCents, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns all events, soonest first.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, starts_on, registration_due, fee_cents, created_at FROM events ORDER BY starts_on`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.StartsOn, &e.RegistrationDue, &e.FeeCents, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// ValidatePlayers checks that every player id exists and belongs to the
// user. Returns ErrForbidden when any player is missing or owned by
// someone else.
func (r *EventRepo) ValidatePlayers(ctx context.Context, userID uint64, playerIDs []uint64) error {
	if len(playerIDs) == 0 {
		return ErrConflict
	}
	placeholders := make([]string, len(playerIDs))
	args := make([]interface{}, 0, len(playerIDs)+1)
	for i, id := range playerIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, userID)
	q := `SELECT COUNT(*) FROM players WHERE id IN (` + strings.Join(placeholders, ",") + `) AND user_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return err
	}
	if n != len(playerIDs) {
		return ErrForbidden
	}
	return nil
}
