package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is one event awaiting publication. Rows are written in the same
// transaction as the state they describe, so a committed order always
// has its event and an uncommitted one never does.
type Row struct {
	ID          string
	Topic       string
	Key         []byte
	Payload     []byte
	Attempts    int
	CreatedAt   time.Time
	LastAttempt time.Time
}

type Store struct{ DB *pgxpool.Pool }

// Enqueue writes the event inside the caller's transaction.
func (s *Store) Enqueue(ctx context.Context, tx pgx.Tx, topic string, key, payload []byte) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox(id, topic, key, payload)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), topic, key, payload,
	)
	return err
}

func (s *Store) NextBatch(ctx context.Context, limit int) ([]Row, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, topic, key, payload, attempts, created_at,
		       COALESCE(last_attempt_at, created_at)
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Topic, &r.Key, &r.Payload, &r.Attempts, &r.CreatedAt, &r.LastAttempt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = $1`, id)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE outbox SET attempts = attempts + 1, last_attempt_at = now()
		WHERE id = $1`, id)
	return err
}
