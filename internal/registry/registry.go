// Package registry resolves webhook secrets, bots and channels for the signal engine.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"signal-gateway/internal/signal"
	"signal-gateway/pkg/cache"
	"signal-gateway/pkg/db"
)

// Store is the subset of db.Database the registry reads from.
type Store interface {
	GetWebhookSecret(ctx context.Context, secret string) (*db.WebhookSecret, error)
	GetBot(ctx context.Context, id int64) (*db.Bot, error)
	GetChannel(ctx context.Context, name string, botID int64) (*db.Channel, error)
}

// Registry implements signal.Directory over the database with a short-lived cache.
type Registry struct {
	store    Store
	secrets  *cache.ShardedCache[signal.SecretRecord]
	bots     *cache.ShardedCache[signal.BotRecord]
	channels *cache.ShardedCache[signal.ChannelRecord]
	log      zerolog.Logger
	observe  func(time.Duration)
}

var _ signal.Directory = (*Registry)(nil)

// New creates a registry. ttl <= 0 keeps entries until Invalidate.
func New(store Store, ttl time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		store:    store,
		secrets:  cache.New[signal.SecretRecord](ttl),
		bots:     cache.New[signal.BotRecord](ttl),
		channels: cache.New[signal.ChannelRecord](ttl),
		log:      log,
	}
}

// ObserveLookups registers fn to receive the duration of every store round trip.
func (r *Registry) ObserveLookups(fn func(time.Duration)) {
	r.observe = fn
}

func (r *Registry) timed(start time.Time) {
	if r.observe != nil {
		r.observe(time.Since(start))
	}
}

func (r *Registry) LookupSecret(ctx context.Context, secret string) (signal.SecretRecord, error) {
	if rec, ok := r.secrets.Get(secret); ok {
		return rec, nil
	}
	start := time.Now()
	w, err := r.store.GetWebhookSecret(ctx, secret)
	r.timed(start)
	if errors.Is(err, db.ErrNotFound) {
		return signal.SecretRecord{}, signal.Unauthorized("Invalid Secret Key")
	}
	if err != nil {
		return signal.SecretRecord{}, signal.Unexpected(fmt.Errorf("lookup webhook secret: %w", err))
	}
	rec := signal.SecretRecord{BotID: w.BotID, Secret: w.Secret}
	r.secrets.Set(secret, rec)
	return rec, nil
}

// LookupBot returns the bot's flags. A secret pointing at a missing bot is treated as an
// invalid secret.
func (r *Registry) LookupBot(ctx context.Context, id int64) (signal.BotRecord, error) {
	key := strconv.FormatInt(id, 10)
	if rec, ok := r.bots.Get(key); ok {
		return rec, nil
	}
	start := time.Now()
	b, err := r.store.GetBot(ctx, id)
	r.timed(start)
	if errors.Is(err, db.ErrNotFound) {
		r.log.Warn().Int64("bot_id", id).Msg("webhook secret references a missing bot")
		return signal.BotRecord{}, signal.Unauthorized("Invalid Secret Key")
	}
	if err != nil {
		return signal.BotRecord{}, signal.Unexpected(fmt.Errorf("lookup bot: %w", err))
	}
	rec := signal.BotRecord{
		ID:        b.ID,
		Active:    b.IsActive,
		Deleted:   b.DeletedAt != nil,
		Encrypted: b.IsSignalEncrypted,
	}
	r.bots.Set(key, rec)
	return rec, nil
}

func (r *Registry) LookupChannel(ctx context.Context, name string, botID int64) (signal.ChannelRecord, error) {
	key := channelKey(name, botID)
	if rec, ok := r.channels.Get(key); ok {
		return rec, nil
	}
	start := time.Now()
	c, err := r.store.GetChannel(ctx, name, botID)
	r.timed(start)
	if errors.Is(err, db.ErrNotFound) {
		return signal.ChannelRecord{}, signal.NotFound("Channel %s not found!", name)
	}
	if err != nil {
		return signal.ChannelRecord{}, signal.Unexpected(fmt.Errorf("lookup channel: %w", err))
	}
	mapping, err := signal.ParseKeywordMapping([]byte(c.KeywordsMapper))
	if err != nil {
		// A broken stored mapping falls back to the default mapping.
		r.log.Warn().Err(err).Int64("channel_id", c.ID).Msg("ignoring invalid keyword mapping")
		mapping = nil
	}
	rec := signal.ChannelRecord{Name: c.Name, BotID: c.BotID, Mapping: mapping}
	r.channels.Set(key, rec)
	return rec, nil
}

// InvalidateBot drops cached state for a bot after it is changed through the admin API.
func (r *Registry) InvalidateBot(id int64) {
	r.bots.Delete(strconv.FormatInt(id, 10))
}

// InvalidateChannel drops a cached channel after its mapping changes.
func (r *Registry) InvalidateChannel(name string, botID int64) {
	r.channels.Delete(channelKey(name, botID))
}

// Invalidate clears every cached record.
func (r *Registry) Invalidate() {
	r.secrets.Purge()
	r.bots.Purge()
	r.channels.Purge()
}

// Cleanup drops expired entries; main runs it periodically.
func (r *Registry) Cleanup() int {
	return r.secrets.Cleanup() + r.bots.Cleanup() + r.channels.Cleanup()
}

func channelKey(name string, botID int64) string {
	return strconv.FormatInt(botID, 10) + "/" + name
}
