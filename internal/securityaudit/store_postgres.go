package securityaudit

import (
	"context"
	"database/sql"
	"fmt"

	"conclave/pkg/domain"
)

// PostgresStore persists the trail in postgres. Selected when a database URL
// is configured; the memory store serves otherwise.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts one event. Idempotent via ON CONFLICT DO NOTHING so a
// replayed event never duplicates a row.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO security_events (
			id, kind, at, subject_id, subject_name, actor_id, actor_name, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Kind),
		event.At,
		event.Subject.String(),
		event.SubjectName,
		event.Actor.String(),
		event.ActorName,
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// ListRecent returns the N most recent events, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, kind, at, subject_id, subject_name, actor_id, actor_name, detail
		FROM security_events
		ORDER BY at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			kind    string
			subject string
			actor   string
		)
		err := rows.Scan(
			&event.ID,
			&kind,
			&event.At,
			&subject,
			&event.SubjectName,
			&actor,
			&event.ActorName,
			&event.Detail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		event.Kind = EventKind(kind)
		event.Subject = domain.MemberID(subject)
		event.Actor = domain.MemberID(actor)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security events: %w", err)
	}
	return events, nil
}
