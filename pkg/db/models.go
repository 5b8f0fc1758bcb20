package db

import (
	"database/sql"
	"time"
)

// Bot is a third-party webhook sender.
type Bot struct {
	ID                int64
	Name              string
	IsActive          bool
	IsSignalEncrypted bool
	CreatedAt         time.Time
	DeletedAt         *time.Time // set when soft-deleted
}

// WebhookSecret authorizes custom-path requests for one bot.
type WebhookSecret struct {
	ID        int64
	BotID     int64
	Secret    string
	CreatedAt time.Time
}

// Channel groups a bot's alerts. KeywordsMapper holds the raw JSON keyword mapping, or ""
// when the channel has none.
type Channel struct {
	ID                    int64
	Name                  string
	Label                 string
	BotID                 int64
	IsPredefinedIndicator bool
	KeywordsMapper        string
	CreatedAt             time.Time
}

// WebhookLogEntry records the outcome of one webhook. Result is "published" or "rejected";
// Kind and Reason are set for rejections only.
type WebhookLogEntry struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Origin     string    `json:"origin"`
	Result     string    `json:"result"`
	Kind       string    `json:"kind,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	TVSignalID string    `json:"tv_signal_id,omitempty"`
	EventStore string    `json:"event_store,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User represents an admin API user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
