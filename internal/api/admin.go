package api

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"signal-gateway/internal/signal"
	"signal-gateway/pkg/db"
	"signal-gateway/pkg/i18n"
)

const (
	channelLabelPrefix   = "CH_"
	channelLabelLength   = 10
	channelLabelAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// newChannelLabel returns "CH_" followed by random letters and digits.
func newChannelLabel() (string, error) {
	var b strings.Builder
	b.WriteString(channelLabelPrefix)
	size := big.NewInt(int64(len(channelLabelAlphabet)))
	for i := 0; i < channelLabelLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(channelLabelAlphabet[n.Int64()])
	}
	return b.String(), nil
}

type botResponse struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	IsActive          bool      `json:"is_active"`
	IsSignalEncrypted bool      `json:"is_signal_encrypted"`
	CreatedAt         time.Time `json:"created_at"`
}

type secretResponse struct {
	ID        int64     `json:"id"`
	BotID     int64     `json:"bot_id"`
	Secret    string    `json:"webhook_secret"`
	CreatedAt time.Time `json:"created_at"`
}

type channelResponse struct {
	ID                    int64           `json:"id"`
	Name                  string          `json:"name"`
	Label                 string          `json:"label"`
	BotID                 int64           `json:"bot_id"`
	IsPredefinedIndicator bool            `json:"is_predefined_indicator"`
	KeywordsMapper        json.RawMessage `json:"indicator_keywords_mapper"`
	CreatedAt             time.Time       `json:"created_at"`
}

func toChannelResponse(ch db.Channel) channelResponse {
	mapper := json.RawMessage("null")
	if ch.KeywordsMapper != "" {
		mapper = json.RawMessage(ch.KeywordsMapper)
	}
	return channelResponse{
		ID:                    ch.ID,
		Name:                  ch.Name,
		Label:                 ch.Label,
		BotID:                 ch.BotID,
		IsPredefinedIndicator: ch.IsPredefinedIndicator,
		KeywordsMapper:        mapper,
		CreatedAt:             ch.CreatedAt,
	}
}

// botParam resolves :id to a bot that has not been deleted.
func (s *Server) botParam(c *gin.Context) (*db.Bot, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_BOT_ID", "bot id must be an integer")
		return nil, false
	}
	bot, err := s.DB.GetBot(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) || (err == nil && bot.DeletedAt != nil) {
		respondError(c, http.StatusNotFound, "BOT_NOT_FOUND", "bot not found")
		return nil, false
	}
	if err != nil {
		s.internalError(c, err)
		return nil, false
	}
	return bot, true
}

// normalizeMapping validates a keyword mapping and returns its stored form ("" for none).
// Null keywords are kept, so an all-null mapping still overrides the default one.
func normalizeMapping(raw json.RawMessage) (string, error) {
	m, err := signal.ParseKeywordMapping(raw)
	if err != nil || m == nil {
		return "", err
	}
	b, err := json.Marshal(map[string]*string{
		signal.KeyStopLoss:   m.StopLoss,
		signal.KeyTakeProfit: m.TakeProfit,
		signal.KeyEntryPrice: m.EntryPrice,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Server) listBots(c *gin.Context) {
	bots, err := s.DB.ListBots(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	out := make([]botResponse, 0, len(bots))
	for _, b := range bots {
		out = append(out, botResponse{ID: b.ID, Name: b.Name, IsActive: b.IsActive, IsSignalEncrypted: b.IsSignalEncrypted, CreatedAt: b.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createBot(c *gin.Context) {
	var req struct {
		Name              string `json:"name"`
		IsActive          *bool  `json:"is_active"`
		IsSignalEncrypted bool   `json:"is_signal_encrypted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", i18n.M().InvalidPayload)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	active := req.IsActive == nil || *req.IsActive

	ctx := c.Request.Context()
	id, err := s.DB.CreateBot(ctx, db.Bot{Name: req.Name, IsActive: active, IsSignalEncrypted: req.IsSignalEncrypted})
	if err != nil {
		s.internalError(c, err)
		return
	}
	bot, err := s.DB.GetBot(ctx, id)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, botResponse{ID: bot.ID, Name: bot.Name, IsActive: bot.IsActive, IsSignalEncrypted: bot.IsSignalEncrypted, CreatedAt: bot.CreatedAt})
}

func (s *Server) setBotActive(c *gin.Context) {
	bot, ok := s.botParam(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "active is required")
		return
	}
	if err := s.DB.SetBotActive(c.Request.Context(), bot.ID, *req.Active); err != nil {
		s.internalError(c, err)
		return
	}
	s.Registry.InvalidateBot(bot.ID)
	c.JSON(http.StatusOK, gin.H{"id": bot.ID, "is_active": *req.Active})
}

func (s *Server) deleteBot(c *gin.Context) {
	bot, ok := s.botParam(c)
	if !ok {
		return
	}
	if err := s.DB.SoftDeleteBot(c.Request.Context(), bot.ID); err != nil {
		s.internalError(c, err)
		return
	}
	s.Registry.InvalidateBot(bot.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) listSecrets(c *gin.Context) {
	bot, ok := s.botParam(c)
	if !ok {
		return
	}
	secrets, err := s.DB.ListWebhookSecrets(c.Request.Context(), bot.ID)
	if err != nil {
		s.internalError(c, err)
		return
	}
	out := make([]secretResponse, 0, len(secrets))
	for _, w := range secrets {
		out = append(out, secretResponse{ID: w.ID, BotID: w.BotID, Secret: w.Secret, CreatedAt: w.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

// createSecret issues a webhook secret for a bot. Callers may supply their own value.
func (s *Server) createSecret(c *gin.Context) {
	bot, ok := s.botParam(c)
	if !ok {
		return
	}
	var req struct {
		Secret string `json:"webhook_secret"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", i18n.M().InvalidPayload)
			return
		}
	}
	secret := strings.TrimSpace(req.Secret)
	if secret == "" {
		secret = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	ctx := c.Request.Context()
	if _, err := s.DB.GetWebhookSecret(ctx, secret); err == nil {
		respondError(c, http.StatusConflict, "SECRET_EXISTS", "webhook secret already in use")
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		s.internalError(c, err)
		return
	}
	w, err := s.DB.CreateWebhookSecret(ctx, bot.ID, secret)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, secretResponse{ID: w.ID, BotID: w.BotID, Secret: w.Secret, CreatedAt: w.CreatedAt})
}

func (s *Server) listChannels(c *gin.Context) {
	bot, ok := s.botParam(c)
	if !ok {
		return
	}
	channels, err := s.DB.ListChannels(c.Request.Context(), bot.ID)
	if err != nil {
		s.internalError(c, err)
		return
	}
	out := make([]channelResponse, 0, len(channels))
	for _, ch := range channels {
		out = append(out, toChannelResponse(ch))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createChannel(c *gin.Context) {
	bot, ok := s.botParam(c)
	if !ok {
		return
	}
	var req struct {
		Name                  string          `json:"name"`
		IsPredefinedIndicator bool            `json:"is_predefined_indicator"`
		KeywordsMapper        json.RawMessage `json:"indicator_keywords_mapper"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", i18n.M().InvalidPayload)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	mapper, err := normalizeMapping(req.KeywordsMapper)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_MAPPING", "indicator_keywords_mapper must be an object of keyword strings")
		return
	}

	ctx := c.Request.Context()
	if _, err := s.DB.GetChannel(ctx, req.Name, bot.ID); err == nil {
		respondError(c, http.StatusConflict, "CHANNEL_EXISTS", "channel already exists for this bot")
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		s.internalError(c, err)
		return
	}
	label, err := newChannelLabel()
	if err != nil {
		s.internalError(c, err)
		return
	}
	ch := db.Channel{
		Name:                  req.Name,
		Label:                 label,
		BotID:                 bot.ID,
		IsPredefinedIndicator: req.IsPredefinedIndicator,
		KeywordsMapper:        mapper,
	}
	if _, err := s.DB.CreateChannel(ctx, ch); err != nil {
		s.internalError(c, err)
		return
	}
	created, err := s.DB.GetChannel(ctx, req.Name, bot.ID)
	if err != nil {
		s.internalError(c, err)
		return
	}
	s.Registry.InvalidateChannel(created.Name, bot.ID)
	c.JSON(http.StatusCreated, toChannelResponse(*created))
}

func (s *Server) updateChannelMapping(c *gin.Context) {
	bot, ok := s.botParam(c)
	if !ok {
		return
	}
	var req struct {
		KeywordsMapper json.RawMessage `json:"indicator_keywords_mapper"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", i18n.M().InvalidPayload)
		return
	}
	mapper, err := normalizeMapping(req.KeywordsMapper)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_MAPPING", "indicator_keywords_mapper must be an object of keyword strings")
		return
	}

	ctx := c.Request.Context()
	name := strings.TrimSpace(c.Param("name"))
	ch, err := s.DB.GetChannel(ctx, name, bot.ID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "CHANNEL_NOT_FOUND", "Channel "+name+" not found!")
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	if err := s.DB.UpdateChannelMapping(ctx, ch.ID, mapper); err != nil {
		s.internalError(c, err)
		return
	}
	s.Registry.InvalidateChannel(ch.Name, bot.ID)
	ch.KeywordsMapper = mapper
	c.JSON(http.StatusOK, toChannelResponse(*ch))
}

// listWebhookLog returns the most recent webhook outcomes, newest first.
func (s *Server) listWebhookLog(c *gin.Context) {
	var q struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	entries, err := s.DB.ListWebhookLog(c.Request.Context(), q.Limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if entries == nil {
		entries = []db.WebhookLogEntry{}
	}
	c.JSON(http.StatusOK, entries)
}
