package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/nextrun/internal/model"
)

// ScheduleStore defines the interface for schedule persistence
type ScheduleStore interface {
	// Save inserts or replaces a scheduled job
	Save(ctx context.Context, job *model.ScheduledJob) error

	// Get retrieves a scheduled job by ID, nil if it does not exist
	Get(ctx context.Context, id string) (*model.ScheduledJob, error)

	// List retrieves all scheduled jobs
	List(ctx context.Context) ([]*model.ScheduledJob, error)

	// Delete removes a scheduled job and reports whether it existed
	Delete(ctx context.Context, id string) (bool, error)

	// RecordTrigger stores a trigger record
	RecordTrigger(ctx context.Context, record *model.TriggerRecord) error

	// ListTriggers retrieves the latest trigger records, optionally for one schedule
	ListTriggers(ctx context.Context, scheduleID string, limit int) ([]*model.TriggerRecord, error)

	// DeleteTriggersBefore deletes trigger records older than the specified time
	DeleteTriggersBefore(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteScheduleStore implements ScheduleStore using SQLite
type SQLiteScheduleStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteScheduleStore opens (or creates) the database at dbPath
func NewSQLiteScheduleStore(logger *zap.Logger, dbPath string) (*SQLiteScheduleStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	store := &SQLiteScheduleStore{
		logger: logger.Named("store"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteScheduleStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			spec TEXT NOT NULL,
			payload TEXT,
			status TEXT NOT NULL,
			last_run_time DATETIME,
			next_run_marker TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trigger_history (
			id TEXT PRIMARY KEY,
			schedule_id TEXT NOT NULL,
			name TEXT NOT NULL,
			marker TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			fired_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_schedules_next_run_marker ON schedules(next_run_marker);
		CREATE INDEX IF NOT EXISTS idx_trigger_history_schedule_id ON trigger_history(schedule_id);
		CREATE INDEX IF NOT EXISTS idx_trigger_history_fired_at ON trigger_history(fired_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Save implements ScheduleStore.Save
func (s *SQLiteScheduleStore) Save(ctx context.Context, job *model.ScheduledJob) error {
	spec, err := json.Marshal(job.Spec)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule spec: %w", err)
	}

	var lastRun sql.NullTime
	if job.LastRunTime != nil {
		lastRun = sql.NullTime{Time: *job.LastRunTime, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedules (
			id, name, spec, payload, status, last_run_time, next_run_marker, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			spec = excluded.spec,
			payload = excluded.payload,
			status = excluded.status,
			last_run_time = excluded.last_run_time,
			next_run_marker = excluded.next_run_marker,
			updated_at = excluded.updated_at`,
		job.ID,
		job.Name,
		string(spec),
		sql.NullString{String: string(job.Payload), Valid: len(job.Payload) > 0},
		job.Status,
		lastRun,
		job.NextRunMarker,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

const scheduleColumns = "id, name, spec, payload, status, last_run_time, next_run_marker, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*model.ScheduledJob, error) {
	job := &model.ScheduledJob{}
	var spec string
	var payload, nextMarker sql.NullString
	var lastRun sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Name,
		&spec,
		&payload,
		&job.Status,
		&lastRun,
		&nextMarker,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(spec), &job.Spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule spec: %w", err)
	}
	if payload.Valid && payload.String != "" {
		job.Payload = json.RawMessage(payload.String)
	}
	if lastRun.Valid {
		t := lastRun.Time
		job.LastRunTime = &t
	}
	if nextMarker.Valid {
		job.NextRunMarker = nextMarker.String
	}
	return job, nil
}

// Get implements ScheduleStore.Get
func (s *SQLiteScheduleStore) Get(ctx context.Context, id string) (*model.ScheduledJob, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", id)
	job, err := scanSchedule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	return job, nil
}

// List implements ScheduleStore.List
func (s *SQLiteScheduleStore) List(ctx context.Context) ([]*model.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+scheduleColumns+" FROM schedules ORDER BY next_run_marker, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var jobs []*model.ScheduledJob
	for rows.Next() {
		job, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return jobs, nil
}

// Delete implements ScheduleStore.Delete
func (s *SQLiteScheduleStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// RecordTrigger implements ScheduleStore.RecordTrigger
func (s *SQLiteScheduleStore) RecordTrigger(ctx context.Context, record *model.TriggerRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trigger_history (
			id, schedule_id, name, marker, status, error, fired_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ScheduleID,
		record.Name,
		record.Marker,
		record.Status,
		sql.NullString{String: record.Error, Valid: record.Error != ""},
		record.FiredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record trigger: %w", err)
	}
	return nil
}

// ListTriggers implements ScheduleStore.ListTriggers
func (s *SQLiteScheduleStore) ListTriggers(ctx context.Context, scheduleID string, limit int) ([]*model.TriggerRecord, error) {
	query := "SELECT id, schedule_id, name, marker, status, error, fired_at FROM trigger_history"
	args := make([]interface{}, 0, 2)
	if scheduleID != "" {
		query += " WHERE schedule_id = ?"
		args = append(args, scheduleID)
	}
	query += " ORDER BY fired_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	defer rows.Close()

	var records []*model.TriggerRecord
	for rows.Next() {
		record := &model.TriggerRecord{}
		var errorStr sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.ScheduleID,
			&record.Name,
			&record.Marker,
			&record.Status,
			&errorStr,
			&record.FiredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}
		if errorStr.Valid {
			record.Error = errorStr.String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// DeleteTriggersBefore implements ScheduleStore.DeleteTriggersBefore
func (s *SQLiteScheduleStore) DeleteTriggersBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM trigger_history WHERE fired_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trigger history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old trigger records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// Close closes the database connection
func (s *SQLiteScheduleStore) Close() error {
	return s.db.Close()
}
