package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"workshop-agenda/internal/model"
)

const eventCols = `id, title, start_time, end_time, client_name, car_model, license_plate,
	phone, cpf, service_type, observations, services, created_by_uid, created_by,
	status, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e        model.Event
		services []byte
	)
	err := row.Scan(&e.ID, &e.Title, &e.Start, &e.End, &e.ClientName, &e.CarModel,
		&e.LicensePlate, &e.Phone, &e.CPF, &e.ServiceType, &e.Observations, &services,
		&e.CreatedBy.UID, &e.CreatedBy.Name, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(services, &e.Services); err != nil {
		return nil, fmt.Errorf("event %s services: %w", e.ID, err)
	}
	return &e, nil
}

func servicesJSON(items []model.ServiceItem) ([]byte, error) {
	if items == nil {
		items = []model.ServiceItem{}
	}
	return json.Marshal(items)
}

// UpsertEvent writes the whole document. created_at survives a replace.
func (s *Store) UpsertEvent(ctx context.Context, e *model.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertEvent(ctx, tx, e); err != nil {
		return err
	}
	if err := notify(ctx, tx, OpUpsert, e.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertEvent(ctx context.Context, tx pgx.Tx, e *model.Event) error {
	services, err := servicesJSON(e.Services)
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return tx.QueryRow(ctx,
		`INSERT INTO events (`+eventCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   title=EXCLUDED.title, start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time,
		   client_name=EXCLUDED.client_name, car_model=EXCLUDED.car_model,
		   license_plate=EXCLUDED.license_plate, phone=EXCLUDED.phone, cpf=EXCLUDED.cpf,
		   service_type=EXCLUDED.service_type, observations=EXCLUDED.observations,
		   services=EXCLUDED.services, created_by_uid=EXCLUDED.created_by_uid,
		   created_by=EXCLUDED.created_by, status=EXCLUDED.status, updated_at=NOW()
		 RETURNING created_at, updated_at`,
		e.ID, e.Title, e.Start, e.End, e.ClientName, e.CarModel, e.LicensePlate,
		e.Phone, e.CPF, e.ServiceType, e.Observations, services,
		e.CreatedBy.UID, e.CreatedBy.Name, e.Status, e.CreatedAt,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

// PatchEvent updates only the fields set in p and returns the stored row.
func (s *Store) PatchEvent(ctx context.Context, id string, p model.EventPatch) (*model.Event, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.ClientName != nil {
		add("client_name", *p.ClientName)
	}
	if p.CarModel != nil {
		add("car_model", *p.CarModel)
	}
	if p.LicensePlate != nil {
		add("license_plate", *p.LicensePlate)
	}
	if p.Phone != nil {
		add("phone", *p.Phone)
	}
	if p.CPF != nil {
		add("cpf", *p.CPF)
	}
	if p.ServiceType != nil {
		add("service_type", *p.ServiceType)
	}
	if p.Observations != nil {
		add("observations", *p.Observations)
	}
	if p.Services != nil {
		b, err := servicesJSON(*p.Services)
		if err != nil {
			return nil, err
		}
		add("services", b)
	}
	if p.Start != nil {
		add("start_time", *p.Start)
	}
	if p.End != nil {
		add("end_time", *p.End)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if len(sets) == 0 {
		return nil, model.ErrBadPatch
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	args = append(args, id)
	q := `UPDATE events SET ` + strings.Join(sets, ", ") + `, updated_at=NOW()
		 WHERE id=$` + fmt.Sprint(len(args)) + ` RETURNING ` + eventCols
	e, err := scanEvent(tx.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, err
	}
	if err := notify(ctx, tx, OpUpsert, id); err != nil {
		return nil, err
	}
	return e, tx.Commit(ctx)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := notify(ctx, tx, OpDelete, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = $1`, id))
}

// ListEvents returns events starting in [from, to). Zero bounds are open.
func (s *Store) ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	q := `SELECT ` + eventCols + ` FROM events WHERE TRUE`
	var args []any
	if !from.IsZero() {
		args = append(args, from)
		q += fmt.Sprintf(` AND start_time >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		q += fmt.Sprintf(` AND start_time < $%d`, len(args))
	}
	q += ` ORDER BY start_time`

	return s.queryEvents(ctx, q, args...)
}

// ListEventsByPlate returns every event for a vehicle, newest first.
func (s *Store) ListEventsByPlate(ctx context.Context, plate string) ([]model.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventCols+` FROM events WHERE license_plate = $1 ORDER BY start_time DESC`, plate)
}

func (s *Store) queryEvents(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
