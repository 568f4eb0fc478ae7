package store

import (
	"context"

	"workshop-agenda/internal/model"
)

func (s *Store) CreatePending(ctx context.Context, p *model.PendingAppointment) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO pending_appointments (id, date, status, created_by_uid, created_by)
		 VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		p.ID, p.Date, model.StatusPending, p.CreatedBy.UID, p.CreatedBy.Name,
	).Scan(&p.CreatedAt)
}

func (s *Store) GetPending(ctx context.Context, id string) (*model.PendingAppointment, error) {
	p := &model.PendingAppointment{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, date, status, created_by_uid, created_by, created_at
		 FROM pending_appointments WHERE id = $1`, id,
	).Scan(&p.ID, &p.Date, &p.Status, &p.CreatedBy.UID, &p.CreatedBy.Name, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ConvertPending turns a pending reservation into a confirmed event in one tx:
// lock the pending row, insert the event build returns, delete the pending row.
// A second caller for the same id blocks on the lock and then sees ErrNotFound.
func (s *Store) ConvertPending(ctx context.Context, id string, build func(*model.PendingAppointment) (*model.Event, error)) (*model.Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p := &model.PendingAppointment{}
	err = tx.QueryRow(ctx,
		`SELECT id, date, status, created_by_uid, created_by, created_at
		 FROM pending_appointments WHERE id = $1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.Date, &p.Status, &p.CreatedBy.UID, &p.CreatedBy.Name, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	e, err := build(p)
	if err != nil {
		return nil, err
	}
	if err := insertEvent(ctx, tx, e); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pending_appointments WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if err := notify(ctx, tx, OpUpsert, e.ID); err != nil {
		return nil, err
	}
	return e, tx.Commit(ctx)
}
