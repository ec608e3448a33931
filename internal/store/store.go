// Package store provides read-only access to the dashboard's PostgreSQL
// database: phone-number-to-assistant mappings and assistant
// configuration. The dashboard owns the schema and all writes; this
// subsystem only queries it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Assistant is a conversational agent configuration row.
type Assistant struct {
	ID           string
	Name         string
	Prompt       string
	FirstMessage string
	LLMProvider  string
	LLMModel     string
	Temperature  float64
	MaxTokens    int

	// Optional cal.com scheduling integration.
	CalAPIKey      string
	CalEventTypeID string
	CalTimezone    string
}

// Store is a read-only view over the lookup database.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("lookup store opened")
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InboundAssistantID returns the assistant id configured for an inbound
// number, or "" when no mapping exists.
func (s *Store) InboundAssistantID(ctx context.Context, number string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT inbound_assistant_id
		 FROM phone_numbers
		 WHERE number = $1 AND inbound_assistant_id IS NOT NULL`,
		number,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying phone mapping: %w", err)
	}
	return id, nil
}

// AssistantByID returns an assistant by id, or nil when not found.
func (s *Store) AssistantByID(ctx context.Context, id string) (*Assistant, error) {
	var a Assistant
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name,
		        COALESCE(prompt, ''), COALESCE(first_message, ''),
		        COALESCE(llm_provider, ''), COALESCE(llm_model, ''),
		        COALESCE(temperature, 0), COALESCE(max_tokens, 0),
		        COALESCE(cal_api_key, ''), COALESCE(cal_event_type_id, ''),
		        COALESCE(cal_timezone, '')
		 FROM assistants WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &a.Prompt, &a.FirstMessage,
		&a.LLMProvider, &a.LLMModel, &a.Temperature, &a.MaxTokens,
		&a.CalAPIKey, &a.CalEventTypeID, &a.CalTimezone)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying assistant: %w", err)
	}
	return &a, nil
}
