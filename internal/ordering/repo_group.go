package ordering

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupClosed   = errors.New("group closed")
)

type GroupRepo struct {
	DB       *pgxpool.Pool
	GroupTTL time.Duration
}

func (r *GroupRepo) ttl() time.Duration {
	if r.GroupTTL > 0 {
		return r.GroupTTL
	}
	return 2 * time.Hour
}

// CreateGroup is idempotent per table: if an active group already exists
// for the (bar, table) pair it is returned with existed=true, so two
// creators racing on the same table converge on one shared tab.
func (r *GroupRepo) CreateGroup(ctx context.Context, name, creatorUserID, barID, tableID string) (Group, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Group{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var g Group
	err = tx.QueryRow(ctx, `
		SELECT id, name, creator_user_id, bar_id, table_id, created_at, expires_at
		FROM groups
		WHERE bar_id = $1 AND table_id = $2 AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`, barID, tableID).
		Scan(&g.ID, &g.Name, &g.CreatorUserID, &g.BarID, &g.TableID, &g.CreatedAt, &g.ExpiresAt)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return Group{}, false, err
		}
		return g, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Group{}, false, err
	}

	now := time.Now().UTC()
	g = Group{
		ID:            uuid.NewString(),
		Name:          name,
		CreatorUserID: creatorUserID,
		BarID:         barID,
		TableID:       tableID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(r.ttl()),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO groups(id, name, creator_user_id, bar_id, table_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, g.Name, g.CreatorUserID, g.BarID, g.TableID, g.CreatedAt, g.ExpiresAt,
	)
	if err != nil {
		return Group{}, false, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO group_members(group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, g.ID, creatorUserID)
	if err != nil {
		return Group{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Group{}, false, err
	}
	return g, false, nil
}

// JoinGroup records the scanner as a member and returns the group's
// (bar, table) context so the joining device lands on the same tab.
func (r *GroupRepo) JoinGroup(ctx context.Context, groupID, userID string) (Group, error) {
	var g Group
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, creator_user_id, bar_id, table_id, created_at, expires_at
		FROM groups WHERE id = $1`, groupID).
		Scan(&g.ID, &g.Name, &g.CreatorUserID, &g.BarID, &g.TableID, &g.CreatedAt, &g.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrGroupNotFound
	}
	if err != nil {
		return Group{}, err
	}
	if time.Now().After(g.ExpiresAt) {
		return Group{}, ErrGroupClosed
	}

	_, err = r.DB.Exec(ctx, `
		INSERT INTO group_members(group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, g.ID, userID)
	if err != nil {
		return Group{}, err
	}
	return g, nil
}
