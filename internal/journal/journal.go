// Package journal persists one row per window-open attempt in SQLite.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"widgethost/internal/database"
	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/types"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultRecentLimit  = 20
	maxRecentLimit      = 1000
)

// Recorder writes open attempts for one host session
type Recorder struct {
	service      database.Service
	logger       logging.Logger
	sessionID    string
	writeTimeout time.Duration
	retry        *hosterrors.RetryConfig
}

// Open connects to the journal database described by config and returns a recorder for a new session
func Open(ctx context.Context, config *database.Config, logger logging.Logger) (*Recorder, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	service := database.NewSQLiteService(logger)
	if err := service.Connect(ctx, config); err != nil {
		return nil, err
	}
	// Connect has already migrated when AutoMigrate is set
	if !config.AutoMigrate {
		if err := requireSchema(ctx, service); err != nil {
			service.Close()
			return nil, err
		}
	}

	recorder := NewRecorder(service, logger)

	if config.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -config.RetentionDays)
		removed, err := recorder.Prune(ctx, cutoff)
		switch {
		case err != nil:
			logger.Warn("Failed to prune journal", "error", err.Error())
		case removed > 0:
			logger.Info("Pruned journal", "removed", removed, "retention_days", config.RetentionDays)
			recorder.optimize(ctx)
		}
	}

	return recorder, nil
}

func requireSchema(ctx context.Context, service database.Service) error {
	version, err := service.GetMigrationVersion(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		return hosterrors.New("journal_open",
			fmt.Errorf("journal schema is missing and auto migrate is disabled"), hosterrors.ErrCodeSchema)
	}
	return nil
}

// optimize reclaims space after a prune; failures only cost disk space
func (r *Recorder) optimize(ctx context.Context) {
	start := time.Now()
	if err := r.service.Optimize(ctx); err != nil {
		logging.LogWarning(r.logger, "Failed to optimize journal", err, "journal_optimize", nil)
		return
	}
	logging.LogOperation(r.logger, "journal_optimize", time.Since(start), nil)
}

// NewRecorder wraps a connected service; every recorder gets a fresh session id
func NewRecorder(service database.Service, logger logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Recorder{
		service:      service,
		logger:       logger,
		sessionID:    uuid.NewString(),
		writeTimeout: defaultWriteTimeout,
		retry:        hosterrors.DefaultRetryConfig(),
	}
}

// SessionID identifies the host process that owns this recorder
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// RecordAttempt stores attempt under the recorder's session
func (r *Recorder) RecordAttempt(attempt types.OpenAttempt) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	return r.RecordAttemptContext(ctx, attempt)
}

// RecordAttemptContext is RecordAttempt with a caller-supplied context
func (r *Recorder) RecordAttemptContext(ctx context.Context, attempt types.OpenAttempt) error {
	db := r.service.DB()
	if db == nil {
		return hosterrors.HandleConnectionError("RecordAttempt", "journal not connected")
	}

	args := attempt.Args
	if args == nil {
		args = map[string]string{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return hosterrors.HandleSerializationError("RecordAttempt", attempt.WindowLabel, err)
	}

	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const insert = `INSERT INTO open_attempts
		(session_id, sequence, window_id, window_label, args, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	return hosterrors.WithRetryContext(ctx, r.retry, func() error {
		_, err := db.ExecContext(ctx, insert,
			r.sessionID,
			attempt.Sequence,
			attempt.WindowID,
			attempt.WindowLabel,
			string(argsJSON),
			string(attempt.Status),
			attempt.Error,
			createdAt.UTC(),
		)
		return hosterrors.WrapWithContext("RecordAttempt", err, map[string]string{
			"window_label": attempt.WindowLabel,
		})
	}, "journal_record_attempt")
}

// Recent returns up to limit attempts, newest first
func (r *Recorder) Recent(ctx context.Context, limit int) ([]types.OpenAttempt, error) {
	db := r.service.DB()
	if db == nil {
		return nil, hosterrors.HandleConnectionError("Recent", "journal not connected")
	}

	if limit <= 0 {
		limit = defaultRecentLimit
	}
	limit = min(limit, maxRecentLimit)

	rows, err := db.QueryContext(ctx, `SELECT id, session_id, sequence, window_id, window_label, args, status, error, created_at
		FROM open_attempts
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, hosterrors.Wrap("Recent", err)
	}
	defer rows.Close()

	attempts := make([]types.OpenAttempt, 0, limit)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, hosterrors.Wrap("Recent", err)
	}
	return attempts, nil
}

// Prune deletes attempts created before cutoff and returns how many were removed
func (r *Recorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.service.DB()
	if db == nil {
		return 0, hosterrors.HandleConnectionError("Prune", "journal not connected")
	}

	result, err := db.ExecContext(ctx, "DELETE FROM open_attempts WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, hosterrors.Wrap("Prune", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, hosterrors.Wrap("Prune", err)
	}
	return removed, nil
}

// Status reports connection health and schema version for the host status
func (r *Recorder) Status(ctx context.Context) types.JournalStatus {
	stats := r.service.GetStats()
	status := types.JournalStatus{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
	}

	if err := r.service.Health(ctx); err != nil {
		status.Error = err.Error()
		return status
	}
	version, err := r.service.GetMigrationVersion(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.Healthy = true
	status.MigrationVersion = version
	return status
}

// Close closes the underlying database service
func (r *Recorder) Close() error {
	return r.service.Close()
}

func scanAttempt(rows *sql.Rows) (types.OpenAttempt, error) {
	var (
		attempt  types.OpenAttempt
		argsJSON string
		status   string
	)
	err := rows.Scan(
		&attempt.ID,
		&attempt.SessionID,
		&attempt.Sequence,
		&attempt.WindowID,
		&attempt.WindowLabel,
		&argsJSON,
		&status,
		&attempt.Error,
		&attempt.CreatedAt,
	)
	if err != nil {
		return attempt, hosterrors.Wrap("Recent", err)
	}
	attempt.Status = types.AttemptStatus(status)

	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &attempt.Args); err != nil {
			return attempt, hosterrors.HandleSerializationError("Recent", attempt.WindowLabel,
				fmt.Errorf("decode args of attempt %d: %w", attempt.ID, err))
		}
	}
	return attempt, nil
}
