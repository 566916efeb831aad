package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	appLog "askcoach/internal/log"
	"askcoach/internal/model"
)

// ErrNotFound is returned when an event id does not resolve.
var ErrNotFound = errors.New("event not found")

const eventColumns = `id, start_datetime_local, venue_name, address,
	COALESCE(field_number, ''), COALESCE(parking_notes, ''), COALESCE(opponent, ''),
	COALESCE(arrival_minutes_before, 45), is_active`

// ListActive returns all active events in ascending start-time order.
// Rows whose start timestamp fails to parse are logged and skipped rather
// than failing the whole list.
func (s *Store) ListActive(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE is_active = 1
		ORDER BY start_datetime_local ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := s.scanEvent(rows)
		if err != nil {
			appLog.Error("skipping unreadable event row", err)
			continue
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetByID returns the event with the given id regardless of its active
// flag, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (model.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events WHERE id = ?`, id)

	ev, err := s.scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %d: %w", id, err)
	}
	return ev, nil
}

// CreateEvent inserts a new event and returns its id.
func (s *Store) CreateEvent(ctx context.Context, ev model.Event) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			start_datetime_local, venue_name, address, field_number,
			parking_notes, opponent, arrival_minutes_before, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.formatStart(ev.Start), ev.VenueName, ev.Address,
		nullable(ev.FieldNumber), nullable(ev.ParkingNotes), nullable(ev.Opponent),
		arrivalOrDefault(ev.ArrivalMinutesBefore), boolToInt(ev.Active))
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	return res.LastInsertId()
}

// UpdateEvent overwrites all editable fields of the event with id ev.ID.
func (s *Store) UpdateEvent(ctx context.Context, ev model.Event) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET start_datetime_local = ?, venue_name = ?, address = ?,
			field_number = ?, parking_notes = ?, opponent = ?,
			arrival_minutes_before = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		s.formatStart(ev.Start), ev.VenueName, ev.Address,
		nullable(ev.FieldNumber), nullable(ev.ParkingNotes), nullable(ev.Opponent),
		arrivalOrDefault(ev.ArrivalMinutesBefore), boolToInt(ev.Active), ev.ID)
	if err != nil {
		return fmt.Errorf("update event %d: %w", ev.ID, err)
	}
	return nil
}

// SoftDeleteEvent marks the event inactive; it disappears from all
// resolution logic but stays recoverable.
func (s *Store) SoftDeleteEvent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft delete event %d: %w", id, err)
	}
	return nil
}

// HardDeleteEvent removes the row entirely.
func (s *Store) HardDeleteEvent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("hard delete event %d: %w", id, err)
	}
	return nil
}

// UpsertImported inserts or refreshes a game produced by the ICS importer.
// importKey identifies the (source, uid, instance) so repeated imports stay
// idempotent.
func (s *Store) UpsertImported(ctx context.Context, importKey string, ev model.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			start_datetime_local, venue_name, address, field_number,
			parking_notes, opponent, arrival_minutes_before, is_active, import_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(import_key) DO UPDATE SET
			start_datetime_local = excluded.start_datetime_local,
			venue_name = excluded.venue_name,
			address = excluded.address,
			opponent = excluded.opponent,
			updated_at = CURRENT_TIMESTAMP`,
		s.formatStart(ev.Start), ev.VenueName, ev.Address,
		nullable(ev.FieldNumber), nullable(ev.ParkingNotes), nullable(ev.Opponent),
		arrivalOrDefault(ev.ArrivalMinutesBefore), boolToInt(ev.Active), importKey)
	if err != nil {
		return fmt.Errorf("upsert imported event %q: %w", importKey, err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEvent(row rowScanner) (model.Event, error) {
	var (
		ev       model.Event
		startRaw string
		active   int
	)
	if err := row.Scan(&ev.ID, &startRaw, &ev.VenueName, &ev.Address,
		&ev.FieldNumber, &ev.ParkingNotes, &ev.Opponent,
		&ev.ArrivalMinutesBefore, &active); err != nil {
		return model.Event{}, err
	}

	start, err := s.parseStart(startRaw)
	if err != nil {
		return model.Event{}, err
	}
	ev.Start = start
	ev.Active = active != 0
	return ev, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func arrivalOrDefault(minutes int) int {
	if minutes <= 0 {
		return 45
	}
	return minutes
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
