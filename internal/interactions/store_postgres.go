package interactions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
)

// PostgresStore keeps a namespace's interactions in the <ns>_likes and
// <ns>_comments tables.
type PostgresStore struct {
	pool     *pgxpool.Pool
	likes    string
	comments string
}

func NewPostgresStore(pool *pgxpool.Pool, ns models.Namespace) *PostgresStore {
	return &PostgresStore{
		pool:     pool,
		likes:    pgx.Identifier{string(ns) + "_likes"}.Sanitize(),
		comments: pgx.Identifier{string(ns) + "_comments"}.Sanitize(),
	}
}

func (s *PostgresStore) Load(ctx context.Context) (Likes, Comments, error) {
	likes := Likes{}
	rows, err := s.pool.Query(ctx, `SELECT id, entity_id, user_id, user_email, created_at FROM `+s.likes+` ORDER BY created_at`)
	if err != nil {
		return nil, nil, apperr.Classify("interactions.load_likes", err)
	}
	for rows.Next() {
		var l models.Like
		if err := rows.Scan(&l.ID, &l.EntityID, &l.UserID, &l.UserEmail, &l.CreatedAt); err != nil {
			rows.Close()
			return nil, nil, apperr.Classify("interactions.load_likes", err)
		}
		likes[l.EntityID] = append(likes[l.EntityID], l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, apperr.Classify("interactions.load_likes", err)
	}

	comments := Comments{}
	rows, err = s.pool.Query(ctx, `SELECT id, entity_id, user_id, user_email, user_name, content, is_approved, created_at
		FROM `+s.comments+` ORDER BY created_at`)
	if err != nil {
		return nil, nil, apperr.Classify("interactions.load_comments", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.EntityID, &c.UserID, &c.UserEmail, &c.UserName, &c.Content, &c.IsApproved, &c.CreatedAt); err != nil {
			return nil, nil, apperr.Classify("interactions.load_comments", err)
		}
		comments[c.EntityID] = append(comments[c.EntityID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperr.Classify("interactions.load_comments", err)
	}
	return likes, comments, nil
}

func (s *PostgresStore) AddLike(ctx context.Context, l models.Like) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO `+s.likes+` (id, entity_id, user_id, user_email, created_at)
		VALUES ($1, $2, $3, $4, $5)`, l.ID, l.EntityID, l.UserID, l.UserEmail, l.CreatedAt)
	return apperrOrNil("interactions.add_like", err)
}

func (s *PostgresStore) RemoveLike(ctx context.Context, entityID, likeID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.likes+` WHERE id = $1 AND entity_id = $2`, likeID, entityID)
	return apperrOrNil("interactions.remove_like", err)
}

func (s *PostgresStore) AddComment(ctx context.Context, c models.Comment) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO `+s.comments+`
		(id, entity_id, user_id, user_email, user_name, content, is_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.EntityID, c.UserID, c.UserEmail, c.UserName, c.Content, c.IsApproved, c.CreatedAt)
	return apperrOrNil("interactions.add_comment", err)
}

func (s *PostgresStore) RemoveComment(ctx context.Context, entityID, commentID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.comments+` WHERE id = $1 AND entity_id = $2`, commentID, entityID)
	return apperrOrNil("interactions.remove_comment", err)
}

func (s *PostgresStore) ApproveComment(ctx context.Context, entityID, commentID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE `+s.comments+` SET is_approved = TRUE WHERE id = $1 AND entity_id = $2`, commentID, entityID)
	if err != nil {
		return apperr.Classify("interactions.approve_comment", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("interactions.approve_comment", "comment not found")
	}
	return nil
}

func apperrOrNil(op string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Classify(op, err)
}
