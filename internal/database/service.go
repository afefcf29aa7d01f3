package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/infrastructure/logging"
)

// SQLiteService implements Service for the open-attempt journal
//
// Lifecycle:
// 1. Create service with NewSQLiteService()
// 2. Connect to database with Connect()
// 3. Run migrations with Migrate() (Connect does this when AutoMigrate is set)
// 4. Close service with Close()
type SQLiteService struct {
	mu              sync.RWMutex
	db              *sql.DB
	config          *Config
	migrationRunner MigrationManager
	logger          logging.Logger
}

var _ Service = (*SQLiteService)(nil)

// NewSQLiteService creates a new SQLite database service
func NewSQLiteService(logger logging.Logger) *SQLiteService {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SQLiteService{
		logger: logger,
	}
}

// Connect opens the database described by config, replacing any existing connection
func (s *SQLiteService) Connect(ctx context.Context, config *Config) error {
	if config == nil {
		return hosterrors.HandleValidationError("Connect", "config", "nil", "database config is required")
	}
	if err := config.Validate(); err != nil {
		return hosterrors.HandleValidationError("Connect", "config", config.Path, err.Error())
	}

	s.mu.Lock()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close existing database connection", "error", err)
		}
		s.db = nil
		s.migrationRunner = nil
	}
	s.mu.Unlock()

	db, err := sql.Open("sqlite3", config.GetConnectionString())
	if err != nil {
		return hosterrors.HandleConnectionError("Connect", fmt.Sprintf("failed to open database: %v", err))
	}

	s.configureConnectionPool(db, config)

	// a freshly started WAL database can report SQLITE_BUSY briefly
	err = hosterrors.WithRetryContext(ctx, hosterrors.DefaultRetryConfig(), func() error {
		return hosterrors.Wrap("Connect", db.PingContext(ctx))
	}, "journal_ping")
	if err != nil {
		db.Close()
		return hosterrors.HandleConnectionError("Connect", fmt.Sprintf("failed to ping database: %v", err))
	}

	s.mu.Lock()
	s.db = db
	s.config = config
	s.migrationRunner = NewMigrationRunner(db, s.logger)
	s.mu.Unlock()

	s.logger.Info("Connected to SQLite database", "path", config.Path)

	if config.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return hosterrors.HandleConnectionError("Close", fmt.Sprintf("failed to close database: %v", err))
	}

	s.db = nil
	s.migrationRunner = nil

	s.logger.Info("Closed SQLite database connection")
	return nil
}

// Migrate runs database migrations using the migration runner
func (s *SQLiteService) Migrate(ctx context.Context) error {
	s.mu.RLock()
	db, runner := s.db, s.migrationRunner
	s.mu.RUnlock()

	if db == nil {
		return hosterrors.HandleConnectionError("Migrate", "database not connected")
	}
	if runner == nil {
		return hosterrors.HandleValidationError("Migrate", "migrationRunner", "nil", "migration runner not initialized")
	}

	if err := runner.ValidateMigrations(); err != nil {
		return hosterrors.WrapWithContext("Migrate", err, map[string]string{
			"phase": "validation",
		})
	}

	if err := runner.RunMigrations(ctx); err != nil {
		return hosterrors.WrapWithContext("Migrate", err, map[string]string{
			"phase": "execution",
		})
	}

	return nil
}

// Health checks the database connection health
func (s *SQLiteService) Health(ctx context.Context) error {
	db := s.DB()
	if db == nil {
		return hosterrors.HandleConnectionError("Health", "database not connected")
	}

	if err := db.PingContext(ctx); err != nil {
		return hosterrors.WrapWithContext("Health", err, map[string]string{
			"phase": "ping",
		})
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return hosterrors.WrapWithContext("Health", err, map[string]string{
			"phase": "query",
		})
	}

	if result != 1 {
		return hosterrors.HandleValidationError("Health", "query_result", fmt.Sprintf("%d", result), "expected result 1")
	}

	return nil
}

// DB returns the underlying connection, or nil when not connected
func (s *SQLiteService) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// GetMigrationVersion returns the current migration version
func (s *SQLiteService) GetMigrationVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	db, runner := s.db, s.migrationRunner
	s.mu.RUnlock()

	if db == nil {
		return 0, hosterrors.HandleConnectionError("GetMigrationVersion", "database not connected")
	}
	if runner == nil {
		return 0, hosterrors.HandleValidationError("GetMigrationVersion", "migrationRunner", "nil", "migration runner not initialized")
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		return 0, hosterrors.Wrap("GetMigrationVersion", err)
	}
	return version, nil
}

// GetStats returns connection pool statistics
func (s *SQLiteService) GetStats() sql.DBStats {
	db := s.DB()
	if db == nil {
		return sql.DBStats{}
	}
	return db.Stats()
}

// Optimize runs ANALYZE and VACUUM
func (s *SQLiteService) Optimize(ctx context.Context) error {
	db := s.DB()
	if db == nil {
		return hosterrors.HandleConnectionError("Optimize", "database not connected")
	}

	if _, err := db.ExecContext(ctx, "ANALYZE"); err != nil {
		return hosterrors.WrapWithContext("Optimize", err, map[string]string{
			"phase": "analyze",
		})
	}

	// ignored on non-WAL databases
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn("wal_checkpoint failed", "error", err)
	}

	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return hosterrors.WrapWithContext("Optimize", err, map[string]string{
			"phase": "vacuum",
		})
	}

	if _, err := db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		s.logger.Warn("PRAGMA optimize failed", "error", err)
	}

	s.logger.Info("Database optimization completed")
	return nil
}

func (s *SQLiteService) configureConnectionPool(db *sql.DB, config *Config) {
	// every connection to ":memory:" opens a separate database
	if config.ForceSingleConnection || config.IsInMemory() {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		s.logger.Debug("Configured SQLite for single connection mode", "path", config.Path)
		return
	}

	if !config.IsWAL() {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		s.logger.Debug("Configured SQLite for single connection mode (non-WAL journal mode)",
			"journalMode", config.JournalMode)
	} else {
		maxConns := min(max(config.MaxConnections, 1), 4)
		idleConns := max(min(config.MaxIdleConns, maxConns), 1)

		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(idleConns)
		s.logger.Debug("Configured SQLite for limited connection pool (WAL mode)",
			"maxOpenConns", maxConns, "maxIdleConns", idleConns)
	}

	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
}
