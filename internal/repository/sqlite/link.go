package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/anilink/internal/apperror"
	"github.com/sakif/anilink/internal/model"
	"github.com/sakif/anilink/internal/repository"
)

// compile-time check that *DB implements repository.LinkRepository
var _ repository.LinkRepository = (*DB)(nil)

const selectLinkColumns = `SELECT id, external_id, username, created_at FROM user_links`

// Create inserts a new link and reads it back inside one transaction.
//
// TRANSACTION FLOW:
//  1. BeginTx pins one pooled connection for the whole unit of work
//  2. INSERT the row
//  3. SELECT the newest row (ORDER BY id DESC). SQLite allows one writer at a
//     time and our transaction holds the write lock after the INSERT, so the
//     newest row is the one we just wrote.
//  4. Commit
//
// The deferred Rollback is a no-op after a successful Commit and undoes the
// INSERT on every other exit path, so a failed Create leaves nothing behind.
func (db *DB) Create(ctx context.Context, externalID int64, username string) (*model.UserLink, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperror.Storage("creating link", fmt.Errorf("sqlite: beginning transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_links (external_id, username, created_at) VALUES (?, ?, ?)`,
		externalID,
		username,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, apperror.Storage("creating link",
			fmt.Errorf("sqlite: inserting link (externalID=%d): %w", externalID, err))
	}

	link, err := scanLink(tx.QueryRowContext(ctx, selectLinkColumns+` ORDER BY id DESC LIMIT 1`))
	if err != nil {
		return nil, apperror.Storage("creating link", fmt.Errorf("sqlite: reading back link: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.Storage("creating link", fmt.Errorf("sqlite: committing link: %w", err))
	}

	return link, nil
}

// FindByExternalID returns the newest link for externalID.
//
// sql.ErrNoRows is not a failure here: it just means the account was never
// linked, so it comes back as found=false with a nil error.
func (db *DB) FindByExternalID(ctx context.Context, externalID int64) (*model.UserLink, bool, error) {
	link, err := scanLink(db.conn.QueryRowContext(ctx,
		selectLinkColumns+` WHERE external_id = ? ORDER BY id DESC LIMIT 1`,
		externalID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperror.Storage("finding link",
			fmt.Errorf("sqlite: finding link (externalID=%d): %w", externalID, err))
	}

	return link, true, nil
}

func scanLink(row interface{ Scan(dest ...any) error }) (*model.UserLink, error) {
	var link model.UserLink
	if err := row.Scan(
		&link.ID,
		&link.ExternalID,
		&link.Username,
		&link.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &link, nil
}
