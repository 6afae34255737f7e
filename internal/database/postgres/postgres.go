package postgres

import (
	"database/sql"
	"fmt"
	"log"
	"notification-service/internal/config"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var DB_Status bool

func ConnectAndCreateDB(cfg config.PostgresConfig) (*sqlx.DB, error) {
	defaultConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	defaultDB, err := sql.Open("postgres", defaultConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres db: %w", err)
	}
	defer defaultDB.Close()

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	err = defaultDB.QueryRow(checkQuery, cfg.DBname).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		createQuery := fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.DBname)
		_, err = defaultDB.Exec(createQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", cfg.DBname, err)
		}
		log.Printf("Database '%s' created successfully", cfg.DBname)
	}

	targetConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBname)

	db, err := sqlx.Connect("postgres", targetConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping target database: %w", err)
	}
	DB_Status = true

	return db, nil
}

func RetryConnectOnFailed(wait_amount time.Duration, db **sqlx.DB, cfg config.PostgresConfig) {
	if DB_Status {
		log.Printf("false database lost connnection alert! abort retry")
		return
	}
	cur_db := *db
	if cur_db != nil {
		if err := cur_db.Ping(); err != nil {
			log.Printf("failed to ping target database: %s, retry db connection\n", err)
		}
	}

	newDB, err := ConnectAndCreateDB(cfg)
	if err == nil {
		*db = newDB
		log.Printf("database retry connection successfully\n")
		return
	}
	log.Printf("failed to retry connect database: %s, next retry in %v\n", err, wait_amount)
	time.Sleep(wait_amount)

	RetryConnectOnFailed(wait_amount, db, cfg)
}

// EnsureSchema creates the tables owned by the notification pipeline. The
// domain graph tables (tasks, projects, memberships) belong to the tracker
// services and are only read here.
func EnsureSchema(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			recipient_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			related_task_id TEXT,
			related_project_id TEXT,
			message TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient
			ON notifications (recipient_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS delivery_jobs (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			payload JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INT NOT NULL DEFAULT 0,
			last_attempt_at TIMESTAMPTZ,
			next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_jobs_claim
			ON delivery_jobs (status, next_attempt_at, created_at)`,
		`CREATE TABLE IF NOT EXISTS push_tokens (
			user_id TEXT PRIMARY KEY,
			token TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
