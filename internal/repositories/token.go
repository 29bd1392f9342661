package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotskill/internal/shared"
	"golang.org/x/oauth2"
)

// TokenRepository persists OAuth tokens per user key.
//
// Saving appends a row and prunes the user's older rows, so the newest token always wins.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save stores tok as the current token for user.
func (r *TokenRepository) Save(ctx context.Context, user string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidArgument)
	}

	payload, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO token_cache (user, token, created_at) VALUES (?, ?, ?)`,
		user, string(payload), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get token id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM token_cache WHERE user = ? AND id < ?`, user, id); err != nil {
		return fmt.Errorf("failed to prune tokens: %w", err)
	}

	return tx.Commit()
}

// Latest returns the newest token stored for user, or [shared.ErrTokenNotFound].
func (r *TokenRepository) Latest(ctx context.Context, user string) (*oauth2.Token, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT token FROM token_cache WHERE user = ? ORDER BY id DESC LIMIT 1`, user,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w for user %q", shared.ErrTokenNotFound, user)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(payload), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &tok, nil
}

// Delete removes every token stored for user.
func (r *TokenRepository) Delete(ctx context.Context, user string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM token_cache WHERE user = ?`, user); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}
