package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	database := newTestDB(t)
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("second ApplyMigrations: %v", err)
	}
	if err := database.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestBotLifecycle(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	id, err := database.CreateBot(ctx, Bot{Name: "alerts", IsActive: true, IsSignalEncrypted: true})
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}

	bot, err := database.GetBot(ctx, id)
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if bot.Name != "alerts" || !bot.IsActive || !bot.IsSignalEncrypted || bot.DeletedAt != nil {
		t.Errorf("bot = %+v", bot)
	}

	t.Run("deactivate", func(t *testing.T) {
		if err := database.SetBotActive(ctx, id, false); err != nil {
			t.Fatalf("SetBotActive: %v", err)
		}
		bot, _ := database.GetBot(ctx, id)
		if bot.IsActive {
			t.Error("bot still active")
		}
	})

	t.Run("soft delete", func(t *testing.T) {
		if err := database.SoftDeleteBot(ctx, id); err != nil {
			t.Fatalf("SoftDeleteBot: %v", err)
		}
		bot, err := database.GetBot(ctx, id)
		if err != nil {
			t.Fatalf("GetBot after delete: %v", err)
		}
		if bot.DeletedAt == nil {
			t.Error("DeletedAt not set")
		}
		bots, err := database.ListBots(ctx)
		if err != nil {
			t.Fatalf("ListBots: %v", err)
		}
		if len(bots) != 0 {
			t.Errorf("ListBots returned %d deleted bots", len(bots))
		}
		if err := database.SoftDeleteBot(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete err = %v, want ErrNotFound", err)
		}
	})

	if _, err := database.GetBot(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBot(999) err = %v, want ErrNotFound", err)
	}
}

func TestWebhookSecrets(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	botID, err := database.CreateBot(ctx, Bot{Name: "b", IsActive: true})
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if _, err := database.CreateWebhookSecret(ctx, botID, "s3cret"); err != nil {
		t.Fatalf("CreateWebhookSecret: %v", err)
	}
	if _, err := database.CreateWebhookSecret(ctx, botID, "s3cret"); err == nil {
		t.Error("duplicate secret accepted")
	}

	w, err := database.GetWebhookSecret(ctx, "s3cret")
	if err != nil {
		t.Fatalf("GetWebhookSecret: %v", err)
	}
	if w.BotID != botID || w.Secret != "s3cret" {
		t.Errorf("secret = %+v", w)
	}
	if _, err := database.GetWebhookSecret(ctx, "S3CRET"); !errors.Is(err, ErrNotFound) {
		t.Errorf("lookup is not exact: err = %v", err)
	}

	list, err := database.ListWebhookSecrets(ctx, botID)
	if err != nil || len(list) != 1 {
		t.Errorf("ListWebhookSecrets = %v, %v", list, err)
	}
}

func TestChannels(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	botID, _ := database.CreateBot(ctx, Bot{Name: "b", IsActive: true})
	id, err := database.CreateChannel(ctx, Channel{
		Name:           " default ",
		Label:          "CH_abcdefghij",
		BotID:          botID,
		KeywordsMapper: `{"stop_loss":"sl"}`,
	})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if _, err := database.CreateChannel(ctx, Channel{Name: "plain", Label: "CH_0123456789", BotID: botID}); err != nil {
		t.Fatalf("CreateChannel plain: %v", err)
	}

	ch, err := database.GetChannel(ctx, "default", botID)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if ch.ID != id || ch.KeywordsMapper != `{"stop_loss":"sl"}` {
		t.Errorf("channel = %+v", ch)
	}

	plain, err := database.GetChannel(ctx, "plain", botID)
	if err != nil {
		t.Fatalf("GetChannel plain: %v", err)
	}
	if plain.KeywordsMapper != "" {
		t.Errorf("KeywordsMapper = %q, want empty", plain.KeywordsMapper)
	}

	if _, err := database.GetChannel(ctx, "default", botID+1); !errors.Is(err, ErrNotFound) {
		t.Errorf("channel of another bot: err = %v", err)
	}

	if err := database.UpdateChannelMapping(ctx, id, ""); err != nil {
		t.Fatalf("UpdateChannelMapping: %v", err)
	}
	channels, err := database.ListChannels(ctx, botID)
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(channels) != 2 || channels[0].KeywordsMapper != "" {
		t.Errorf("channels = %+v", channels)
	}
}

func TestUsers(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	if n, err := database.CountUsers(ctx); err != nil || n != 0 {
		t.Fatalf("CountUsers before = %d, %v", n, err)
	}
	if err := database.CreateUser(ctx, User{ID: "u1", Email: "Admin@Example.com", PasswordHash: "hash"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if n, err := database.CountUsers(ctx); err != nil || n != 1 {
		t.Errorf("CountUsers after = %d, %v", n, err)
	}
	u, err := database.GetUserByEmail(ctx, "admin@example.com")
	if err != nil || u == nil || u.ID != "u1" {
		t.Fatalf("GetUserByEmail = %+v, %v", u, err)
	}
	missing, err := database.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("missing user = %+v, %v", missing, err)
	}
}

func TestWebhookLog(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	err := database.InsertWebhookLogs(ctx, []WebhookLogEntry{
		{Origin: "standard", Result: "published", TVSignalID: "abc_5", EventStore: "signal_stream", CreatedAt: at},
		{RequestID: "req-1", Origin: "custom", Result: "rejected", Kind: "authorization", Reason: "Invalid Secret Key", CreatedAt: at},
	})
	if err != nil {
		t.Fatalf("InsertWebhookLogs: %v", err)
	}

	entries, err := database.ListWebhookLog(ctx, 1)
	if err != nil {
		t.Fatalf("ListWebhookLog: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Result != "rejected" || e.RequestID != "req-1" || e.Kind != "authorization" || e.TVSignalID != "" {
		t.Errorf("newest entry = %+v", e)
	}
	if !e.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, at)
	}
}
