package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ----------------------------------------
// Bots
// ----------------------------------------

// CreateBot inserts a bot and returns its id.
func (d *Database) CreateBot(ctx context.Context, b Bot) (int64, error) {
	res, err := d.DB.ExecContext(ctx, `
		INSERT INTO bots (name, is_active, is_signal_encrypted)
		VALUES (?, ?, ?)
	`, b.Name, b.IsActive, b.IsSignalEncrypted)
	if err != nil {
		return 0, fmt.Errorf("insert bot: %w", err)
	}
	return res.LastInsertId()
}

// GetBot returns a bot by id, soft-deleted bots included.
func (d *Database) GetBot(ctx context.Context, id int64) (*Bot, error) {
	var (
		b       Bot
		deleted sql.NullTime
	)
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, name, is_active, is_signal_encrypted, created_at, deleted_at
		FROM bots WHERE id = ?
	`, id).Scan(&b.ID, &b.Name, &b.IsActive, &b.IsSignalEncrypted, &b.CreatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query bot: %w", err)
	}
	b.DeletedAt = timePtr(deleted)
	return &b, nil
}

// ListBots returns bots that have not been soft-deleted.
func (d *Database) ListBots(ctx context.Context) ([]Bot, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, name, is_active, is_signal_encrypted, created_at
		FROM bots WHERE deleted_at IS NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query bots: %w", err)
	}
	defer rows.Close()

	var bots []Bot
	for rows.Next() {
		var b Bot
		if err := rows.Scan(&b.ID, &b.Name, &b.IsActive, &b.IsSignalEncrypted, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bot: %w", err)
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

// SetBotActive toggles whether a bot's webhooks are accepted.
func (d *Database) SetBotActive(ctx context.Context, id int64, active bool) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE bots SET is_active = ? WHERE id = ? AND deleted_at IS NULL`, active, id)
	if err != nil {
		return fmt.Errorf("update bot: %w", err)
	}
	return requireRow(res)
}

// SoftDeleteBot marks a bot deleted; its webhooks are rejected from then on.
func (d *Database) SoftDeleteBot(ctx context.Context, id int64) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE bots SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	return requireRow(res)
}

// ----------------------------------------
// Webhook secrets
// ----------------------------------------

func (d *Database) CreateWebhookSecret(ctx context.Context, botID int64, secret string) (*WebhookSecret, error) {
	res, err := d.DB.ExecContext(ctx, `
		INSERT INTO webhook_secrets (bot_id, webhook_secret) VALUES (?, ?)
	`, botID, secret)
	if err != nil {
		return nil, fmt.Errorf("insert webhook secret: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &WebhookSecret{ID: id, BotID: botID, Secret: secret, CreatedAt: time.Now().UTC()}, nil
}

// GetWebhookSecret returns the record matching secret exactly.
func (d *Database) GetWebhookSecret(ctx context.Context, secret string) (*WebhookSecret, error) {
	var w WebhookSecret
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, bot_id, webhook_secret, created_at
		FROM webhook_secrets WHERE webhook_secret = ?
	`, secret).Scan(&w.ID, &w.BotID, &w.Secret, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query webhook secret: %w", err)
	}
	return &w, nil
}

func (d *Database) ListWebhookSecrets(ctx context.Context, botID int64) ([]WebhookSecret, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, bot_id, webhook_secret, created_at
		FROM webhook_secrets WHERE bot_id = ?
		ORDER BY id
	`, botID)
	if err != nil {
		return nil, fmt.Errorf("query webhook secrets: %w", err)
	}
	defer rows.Close()

	var out []WebhookSecret
	for rows.Next() {
		var w WebhookSecret
		if err := rows.Scan(&w.ID, &w.BotID, &w.Secret, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook secret: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Channels
// ----------------------------------------

// CreateChannel inserts a channel and returns its id.
func (d *Database) CreateChannel(ctx context.Context, c Channel) (int64, error) {
	res, err := d.DB.ExecContext(ctx, `
		INSERT INTO channels (name, label, bot_id, is_predefined_indicator, indicator_keywords_mapper)
		VALUES (?, ?, ?, ?, ?)
	`, strings.TrimSpace(c.Name), c.Label, c.BotID, c.IsPredefinedIndicator, nullString(c.KeywordsMapper))
	if err != nil {
		return 0, fmt.Errorf("insert channel: %w", err)
	}
	return res.LastInsertId()
}

// GetChannel returns the channel of a bot by name.
func (d *Database) GetChannel(ctx context.Context, name string, botID int64) (*Channel, error) {
	var (
		c      Channel
		mapper sql.NullString
	)
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, name, label, bot_id, is_predefined_indicator, indicator_keywords_mapper, created_at
		FROM channels WHERE name = ? AND bot_id = ?
	`, name, botID).Scan(&c.ID, &c.Name, &c.Label, &c.BotID, &c.IsPredefinedIndicator, &mapper, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query channel: %w", err)
	}
	c.KeywordsMapper = mapper.String
	return &c, nil
}

func (d *Database) ListChannels(ctx context.Context, botID int64) ([]Channel, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, name, label, bot_id, is_predefined_indicator, indicator_keywords_mapper, created_at
		FROM channels WHERE bot_id = ?
		ORDER BY id
	`, botID)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var (
			c      Channel
			mapper sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Label, &c.BotID, &c.IsPredefinedIndicator, &mapper, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		c.KeywordsMapper = mapper.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateChannelMapping replaces a channel's keyword mapping; "" clears it.
func (d *Database) UpdateChannelMapping(ctx context.Context, id int64, mapper string) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE channels SET indicator_keywords_mapper = ? WHERE id = ?`, nullString(mapper), id)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return requireRow(res)
}

// ----------------------------------------
// Webhook log
// ----------------------------------------

// InsertWebhookLogs writes entries in one transaction.
func (d *Database) InsertWebhookLogs(ctx context.Context, entries []WebhookLogEntry) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO webhook_log (request_id, origin, result, kind, reason, tv_signal_id, event_store, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare webhook log insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, nullString(e.RequestID), e.Origin, e.Result, nullString(e.Kind),
			nullString(e.Reason), nullString(e.TVSignalID), nullString(e.EventStore), e.CreatedAt.UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert webhook log: %w", err)
		}
	}
	return tx.Commit()
}

// ListWebhookLog returns the newest entries first.
func (d *Database) ListWebhookLog(ctx context.Context, limit int) ([]WebhookLogEntry, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, request_id, origin, result, kind, reason, tv_signal_id, event_store, created_at
		FROM webhook_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query webhook log: %w", err)
	}
	defer rows.Close()

	var out []WebhookLogEntry
	for rows.Next() {
		var (
			e                                          WebhookLogEntry
			requestID, kind, reason, signalID, storeNm sql.NullString
		)
		if err := rows.Scan(&e.ID, &requestID, &e.Origin, &e.Result, &kind, &reason, &signalID, &storeNm, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook log: %w", err)
		}
		e.RequestID, e.Kind, e.Reason = requestID.String, kind.String, reason.String
		e.TVSignalID, e.EventStore = signalID.String, storeNm.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Users
// ----------------------------------------

// CreateUser inserts a new user row.
func (d *Database) CreateUser(ctx context.Context, u User) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash)
	return err
}

// CountUsers returns the number of registered operators.
func (d *Database) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := d.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// GetUserByEmail returns a user by email or nil if not found.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, strings.ToLower(email))
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
