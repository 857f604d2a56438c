package repository

import (
	"context"
	"database/sql"
)

// RequesterRepo provides data access to the requesters table.
type RequesterRepo struct {
	db *sql.DB
}

// NewRequesterRepo returns a new RequesterRepo bound to the provided database.
func NewRequesterRepo(db *sql.DB) *RequesterRepo { return &RequesterRepo{db: db} }

// Upsert creates the requester row if it does not exist yet. The
// operation is idempotent and keyed by the external identity, so
// concurrent booking attempts from the same requester cannot conflict
// here. Existing rows are left untouched.
func (r *RequesterRepo) Upsert(ctx context.Context, id, contact, name string) error {
	const q = `INSERT INTO requesters (id, contact, name) VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE id = id`
	_, err := r.db.ExecContext(ctx, q, id, contact, name)
	return err
}
