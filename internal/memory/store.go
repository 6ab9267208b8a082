package memory

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is the History backed by the dialogue_memory table.
type Store struct {
	DB *sql.DB
}

// NewStore wraps an open database whose schema has been initialized.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Record appends an exchange. Recording the same (user, response) pair again
// is a no-op that reports AlreadyPresent.
func (s *Store) Record(ctx context.Context, userMessage, modelResponse string) (RecordResult, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO dialogue_memory (user_message, model_response, hash) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		userMessage, modelResponse, ContentHash(userMessage, modelResponse),
	)
	if err != nil {
		return 0, fmt.Errorf("record exchange: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("record exchange rows affected: %w", err)
	}
	if n == 0 {
		return AlreadyPresent, nil
	}
	return Inserted, nil
}

// Recent returns the most recent `limit` exchanges, ordered chronologically
// (oldest first).
func (s *Store) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	// SQLite treats a negative LIMIT as unbounded.
	if limit <= 0 {
		return []Exchange{}, nil
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, COALESCE(user_message, ''), COALESCE(model_response, ''), COALESCE(hash, '')
		 FROM dialogue_memory ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent exchanges: %w", err)
	}
	defer rows.Close()

	results := make([]Exchange, 0, limit)
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.SequenceID, &ex.UserMessage, &ex.ModelResponse, &ex.ContentHash); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		results = append(results, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}
