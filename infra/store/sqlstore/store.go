// Package sqlstore implements store.Store on database/sql. SQLite, MySQL and
// PostgreSQL are supported through their respective drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/store"
)

// Options tunes the connection pool. Zero values keep driver defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store persists docks, appointments, queue entries and assignment records
// in a relational database.
type Store struct {
	db *sql.DB
	d  dialect
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn using the named dialect and ensures the schema.
func Open(ctx context.Context, dialectName, dsn string, opts Options) (*Store, error) {
	d, err := lookupDialect(dialectName)
	if err != nil {
		return nil, err
	}
	if d.name == MySQL {
		// UPDATE must report matched rows, not changed rows, for the CAS checks.
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: parse mysql dsn: %w", err)
		}
		cfg.ClientFoundRows = true
		dsn = cfg.FormatDSN()
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", d.name, err)
	}
	if d.name == SQLite {
		// a single writer avoids SQLITE_BUSY under concurrent assigns
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", d.name, err)
	}
	s := &Store{db: db, d: d}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return model.NewStorageError("migrate", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the normalized dialect name.
func (s *Store) Dialect() string { return s.d.name }

func (s *Store) exec(ctx context.Context, q sqlExecer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.d.rebind(query), args...)
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) InsertDock(ctx context.Context, d model.Dock) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO docks (id, type, status, current_truck_id, assigned_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, string(d.Type), string(d.Status), truckOrNull(d.CurrentTruckID), toNull(d.AssignedAt))
	return model.NewStorageError("insert dock", err)
}

const dockCols = `id, type, status, current_truck_id, assigned_at`

func scanDock(sc interface{ Scan(...any) error }) (model.Dock, error) {
	var (
		d        model.Dock
		typ, st  string
		truck    sql.NullString
		assigned sql.NullInt64
	)
	if err := sc.Scan(&d.ID, &typ, &st, &truck, &assigned); err != nil {
		return model.Dock{}, err
	}
	d.CurrentTruckID = truck.String
	d.Type = model.DockType(typ)
	d.Status = model.DockStatus(st)
	d.AssignedAt = fromNull(assigned)
	return d, nil
}

func (s *Store) getDock(ctx context.Context, q sqlQuerier, id string) (model.Dock, error) {
	row := q.QueryRowContext(ctx, s.d.rebind(`SELECT `+dockCols+` FROM docks WHERE id = ?`), id)
	d, err := scanDock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dock{}, model.NotFound("dock", id)
	}
	if err != nil {
		return model.Dock{}, model.NewStorageError("get dock", err)
	}
	return d, nil
}

func (s *Store) GetDock(ctx context.Context, id string) (model.Dock, error) {
	return s.getDock(ctx, s.db, id)
}

func (s *Store) ListDocks(ctx context.Context, f store.DockFilter) ([]model.Dock, error) {
	query := `SELECT ` + dockCols + ` FROM docks WHERE 1 = 1`
	var args []any
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, model.NewStorageError("list docks", err)
	}
	defer func() { _ = rows.Close() }()
	res := []model.Dock{}
	for rows.Next() {
		d, err := scanDock(rows)
		if err != nil {
			return nil, model.NewStorageError("list docks", err)
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list docks", err)
	}
	model.SortDocks(res)
	return res, nil
}

func (s *Store) AssignDock(ctx context.Context, req store.AssignRequest) (rec model.AssignmentRecord, ok bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, false, model.NewStorageError("assign dock", err)
	}
	defer func() {
		if err != nil || !ok {
			_ = tx.Rollback()
		}
	}()

	res, err := s.exec(ctx, tx,
		`UPDATE docks SET status = ?, current_truck_id = ?, assigned_at = ? WHERE id = ? AND status = ?`,
		string(model.DockOccupied), req.TruckID, req.At.UnixNano(), req.DockID, string(model.DockAvailable))
	if isUniqueViolation(err) {
		return rec, false, model.TruckDocked(req.DockID, req.TruckID)
	}
	if err != nil {
		return rec, false, model.NewStorageError("assign dock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rec, false, model.NewStorageError("assign dock", err)
	}
	if n == 0 {
		if _, err := s.getDock(ctx, tx, req.DockID); err != nil {
			return rec, false, err
		}
		return rec, false, nil
	}

	rec = model.AssignmentRecord{
		ID:            req.RecordID,
		TruckID:       req.TruckID,
		DockID:        req.DockID,
		AppointmentID: req.AppointmentID,
		AssignedAt:    req.At,
	}
	if _, err = s.exec(ctx, tx,
		`INSERT INTO assignments (id, truck_id, dock_id, appointment_id, assigned_at, departed_at) VALUES (?, ?, ?, ?, ?, NULL)`,
		rec.ID, rec.TruckID, rec.DockID, rec.AppointmentID, rec.AssignedAt.UnixNano()); err != nil {
		return model.AssignmentRecord{}, false, model.NewStorageError("assign dock", err)
	}
	if err = tx.Commit(); err != nil {
		return model.AssignmentRecord{}, false, model.NewStorageError("assign dock", err)
	}
	return rec, true, nil
}

func (s *Store) ReleaseDock(ctx context.Context, dockID, truckID string) (bool, error) {
	query := `UPDATE docks SET status = ?, current_truck_id = NULL, assigned_at = NULL WHERE id = ? AND status = ?`
	args := []any{string(model.DockAvailable), dockID, string(model.DockOccupied)}
	if truckID != "" {
		query += ` AND current_truck_id = ?`
		args = append(args, truckID)
	}
	res, err := s.exec(ctx, s.db, query, args...)
	if err != nil {
		return false, model.NewStorageError("release dock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.NewStorageError("release dock", err)
	}
	if n == 0 {
		if _, err := s.getDock(ctx, s.db, dockID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

const apptCols = `id, truck_id, supplier, dock_id, scheduled_time, status, type,
	actual_arrival_time, loading_start_time, loading_end_time, departure_time`

func scanAppointment(sc interface{ Scan(...any) error }) (model.Appointment, error) {
	var (
		a                          model.Appointment
		scheduled                  int64
		status, typ                string
		arrival, start, end, depar sql.NullInt64
	)
	if err := sc.Scan(&a.ID, &a.TruckID, &a.Supplier, &a.DockID, &scheduled, &status, &typ,
		&arrival, &start, &end, &depar); err != nil {
		return model.Appointment{}, err
	}
	a.ScheduledTime = time.Unix(0, scheduled).UTC()
	a.Status = model.AppointmentStatus(status)
	a.Type = model.AppointmentType(typ)
	a.ActualArrivalTime = fromNull(arrival)
	a.LoadingStartTime = fromNull(start)
	a.LoadingEndTime = fromNull(end)
	a.DepartureTime = fromNull(depar)
	return a, nil
}

func (s *Store) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO appointments (`+apptCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TruckID, a.Supplier, a.DockID, a.ScheduledTime.UnixNano(), string(a.Status), string(a.Type),
		toNull(a.ActualArrivalTime), toNull(a.LoadingStartTime), toNull(a.LoadingEndTime), toNull(a.DepartureTime))
	return model.NewStorageError("insert appointment", err)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT `+apptCols+` FROM appointments WHERE id = ?`), id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Appointment{}, model.NotFound("appointment", id)
	}
	if err != nil {
		return model.Appointment{}, model.NewStorageError("get appointment", err)
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]model.Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE 1 = 1`
	var args []any
	if f.TruckID != "" {
		query += ` AND truck_id = ?`
		args = append(args, f.TruckID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY scheduled_time, id`
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, model.NewStorageError("list appointments", err)
	}
	defer func() { _ = rows.Close() }()
	res := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, model.NewStorageError("list appointments", err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list appointments", err)
	}
	return res, nil
}

func (s *Store) UpdateAppointment(ctx context.Context, a model.Appointment, expected model.AppointmentStatus) (bool, error) {
	res, err := s.exec(ctx, s.db,
		`UPDATE appointments SET truck_id = ?, supplier = ?, dock_id = ?, scheduled_time = ?, status = ?, type = ?,
			actual_arrival_time = ?, loading_start_time = ?, loading_end_time = ?, departure_time = ?
		WHERE id = ? AND status = ?`,
		a.TruckID, a.Supplier, a.DockID, a.ScheduledTime.UnixNano(), string(a.Status), string(a.Type),
		toNull(a.ActualArrivalTime), toNull(a.LoadingStartTime), toNull(a.LoadingEndTime), toNull(a.DepartureTime),
		a.ID, string(expected))
	if err != nil {
		return false, model.NewStorageError("update appointment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.NewStorageError("update appointment", err)
	}
	if n == 0 {
		if _, err := s.GetAppointment(ctx, a.ID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) UpsertQueueEntry(ctx context.Context, e model.QueueEntry) (out model.QueueEntry, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return out, model.NewStorageError("upsert queue entry", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, s.d.rebind(
		`SELECT id, truck_id, arrival_time, appointment_id, type FROM queue_entries WHERE appointment_id = ?`), e.AppointmentID)
	cur, err := scanQueueEntry(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err = s.exec(ctx, tx,
			`INSERT INTO queue_entries (id, truck_id, arrival_time, appointment_id, type) VALUES (?, ?, ?, ?, ?)`,
			e.ID, e.TruckID, e.ArrivalTime.UnixNano(), e.AppointmentID, string(e.Type)); err != nil {
			return out, model.NewStorageError("upsert queue entry", err)
		}
		out = e
	case err != nil:
		return out, model.NewStorageError("upsert queue entry", err)
	default:
		if _, err = s.exec(ctx, tx, `UPDATE queue_entries SET arrival_time = ? WHERE id = ?`,
			e.ArrivalTime.UnixNano(), cur.ID); err != nil {
			return out, model.NewStorageError("upsert queue entry", err)
		}
		cur.ArrivalTime = e.ArrivalTime
		out = cur
	}
	if err = tx.Commit(); err != nil {
		return model.QueueEntry{}, model.NewStorageError("upsert queue entry", err)
	}
	return out, nil
}

func scanQueueEntry(sc interface{ Scan(...any) error }) (model.QueueEntry, error) {
	var (
		e       model.QueueEntry
		arrival int64
		typ     string
	)
	if err := sc.Scan(&e.ID, &e.TruckID, &arrival, &e.AppointmentID, &typ); err != nil {
		return model.QueueEntry{}, err
	}
	e.ArrivalTime = time.Unix(0, arrival).UTC()
	e.Type = model.AppointmentType(typ)
	return e, nil
}

func (s *Store) DeleteQueueEntry(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, s.db, `DELETE FROM queue_entries WHERE id = ?`, id)
	if err != nil {
		return false, model.NewStorageError("delete queue entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.NewStorageError("delete queue entry", err)
	}
	return n > 0, nil
}

func (s *Store) ListQueueEntries(ctx context.Context) ([]model.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, truck_id, arrival_time, appointment_id, type FROM queue_entries ORDER BY arrival_time, id`)
	if err != nil {
		return nil, model.NewStorageError("list queue", err)
	}
	defer func() { _ = rows.Close() }()
	res := []model.QueueEntry{}
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, model.NewStorageError("list queue", err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list queue", err)
	}
	return res, nil
}

func (s *Store) ListAssignments(ctx context.Context, f store.AssignmentFilter) ([]model.AssignmentRecord, error) {
	query := `SELECT id, truck_id, dock_id, appointment_id, assigned_at, departed_at FROM assignments WHERE 1 = 1`
	var args []any
	if f.AppointmentID != "" {
		query += ` AND appointment_id = ?`
		args = append(args, f.AppointmentID)
	}
	if f.OpenOnly {
		query += ` AND departed_at IS NULL`
	}
	query += ` ORDER BY assigned_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, model.NewStorageError("list assignments", err)
	}
	defer func() { _ = rows.Close() }()
	res := []model.AssignmentRecord{}
	for rows.Next() {
		var (
			r        model.AssignmentRecord
			assigned int64
			departed sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.TruckID, &r.DockID, &r.AppointmentID, &assigned, &departed); err != nil {
			return nil, model.NewStorageError("list assignments", err)
		}
		r.AssignedAt = time.Unix(0, assigned).UTC()
		r.DepartedAt = fromNull(departed)
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list assignments", err)
	}
	return res, nil
}

func (s *Store) CloseAssignments(ctx context.Context, appointmentID string, at time.Time) (int, error) {
	res, err := s.exec(ctx, s.db,
		`UPDATE assignments SET departed_at = ? WHERE appointment_id = ? AND departed_at IS NULL`,
		at.UnixNano(), appointmentID)
	if err != nil {
		return 0, model.NewStorageError("close assignments", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, model.NewStorageError("close assignments", err)
	}
	return int(n), nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return model.NewStorageError("delete assignment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.NewStorageError("delete assignment", err)
	}
	if n == 0 {
		return model.NotFound("assignment", id)
	}
	return nil
}

func truckOrNull(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

func toNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
