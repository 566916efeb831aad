package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appLog "askcoach/internal/log"
	"askcoach/internal/model"
)

// GetPendingChoice returns the pending choice for (user, group), or
// (nil, nil) when there is none or it has already expired. Expired rows
// are treated as absent here and physically removed by SweepExpired.
func (s *Store) GetPendingChoice(ctx context.Context, userID, groupID string, now time.Time) (*model.PendingChoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pending_intent, candidate_event_ids, expires_at
		FROM pending_choices
		WHERE user_id = ? AND group_id = ? AND expires_at > ?`,
		userID, groupID, formatExpiry(now))

	var (
		intentTag  string
		idsJSON    string
		expiresRaw string
	)
	err := row.Scan(&intentTag, &idsJSON, &expiresRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending choice: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(idsJSON), &ids); err != nil {
		return nil, fmt.Errorf("decode candidate ids: %w", err)
	}

	expires, err := time.Parse(expiryLayout, expiresRaw)
	if err != nil {
		return nil, fmt.Errorf("parse expiry %q: %w", expiresRaw, err)
	}

	return &model.PendingChoice{
		UserID:       userID,
		GroupID:      groupID,
		Intent:       model.ParseIntent(intentTag),
		CandidateIDs: ids,
		ExpiresAt:    expires,
	}, nil
}

// SetPendingChoice records a new pending choice, atomically replacing any
// existing one for the same (user, group).
func (s *Store) SetPendingChoice(ctx context.Context, pc model.PendingChoice) error {
	idsJSON, err := json.Marshal(pc.CandidateIDs)
	if err != nil {
		return fmt.Errorf("encode candidate ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pending_choices
		(user_id, group_id, pending_intent, candidate_event_ids, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		pc.UserID, pc.GroupID, pc.Intent.String(), string(idsJSON), formatExpiry(pc.ExpiresAt))
	if err != nil {
		return fmt.Errorf("set pending choice: %w", err)
	}
	return nil
}

// ClearPendingChoice removes the pending choice for (user, group). Missing
// rows are not an error.
func (s *Store) ClearPendingChoice(ctx context.Context, userID, groupID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_choices WHERE user_id = ? AND group_id = ?`,
		userID, groupID)
	if err != nil {
		return fmt.Errorf("clear pending choice: %w", err)
	}
	return nil
}

// SweepExpired deletes all pending choices whose expiry has passed. It only
// ever matches by the expiry predicate, so it is safe to run concurrently
// with handling for other (user, group) keys.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_choices WHERE expires_at <= ?`, formatExpiry(now))
	if err != nil {
		return fmt.Errorf("sweep expired pending choices: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		appLog.Debug("swept expired pending choices", "count", n)
	}
	return nil
}
