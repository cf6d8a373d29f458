package sink

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/brightstay/concierge/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(config DatabaseConfig) (*PostgresSink, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	s := &PostgresSink{db: db}
	if err := s.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}
	return s, nil
}

func (s *PostgresSink) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}
	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}
	return nil
}

func (s *PostgresSink) RecordTranscript(ctx context.Context, entry models.TranscriptEntry) error {
	query := `
		INSERT INTO transcripts (session_code, thread_id, message_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.ExecContext(ctx, query,
		entry.SessionCode,
		entry.ThreadID,
		entry.MessageID,
		entry.Role,
		entry.Content,
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("error recording transcript: %v", err)
	}
	return nil
}

func (s *PostgresSink) RecordAction(ctx context.Context, record models.ActionRecord) error {
	query := `
		INSERT INTO action_records (id, session_code, thread_id, category, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.SessionCode,
		record.ThreadID,
		record.Category,
		record.Summary,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("error recording action: %v", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
