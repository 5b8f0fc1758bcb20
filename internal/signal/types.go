// Package signal turns inbound alert payloads into canonical trading signals.
//
// Two origins are supported. The standard path serves the primary structured sender and is
// authorized by the master secret; the custom path serves third-party webhook senders that
// are authorized per bot and may send free text or cipher-encoded JSON. Every function in
// this package is pure apart from the Directory lookups made by Engine.Custom.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Canonical keyword-mapping keys.
const (
	KeyStopLoss   = "stop_loss"
	KeyTakeProfit = "take_profit"
	KeyEntryPrice = "entry_price"
)

// NaN is the sentinel emitted for absent numeric fields.
const NaN = "NaN"

type Event string

const (
	EventOpen     Event = "open"
	EventUpdate   Event = "update"
	EventClose    Event = "close"
	EventCloseAll Event = "close-all"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderMarket is the only order type code produced today.
const OrderMarket = 2

// Hit is the lifecycle status carried by a standard signal: ENTRY, SL or TP1..TP8.
type Hit string

const (
	HitEntry Hit = "ENTRY"
	HitSL    Hit = "SL"
)

// HitTP returns the take-profit hit for target i (1-based).
func HitTP(i int) Hit { return Hit(fmt.Sprintf("TP%d", i)) }

// Unit classes shared by stop-loss and take-profit values.
const (
	UnitCurrency   = "currency"
	UnitPercentage = "percentage"
	UnitRiskReward = "risk_reward"
)

type StopLoss struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type TakeProfit struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// MetaData is copied verbatim from the standard sender.
type MetaData struct {
	Description          any `json:"description"`
	Type                 any `json:"type"`
	BarIndexTimestampUTC any `json:"bar_index_timestamp_utc"`
	BarIndex             any `json:"bar_index"`
}

type Origin int

const (
	OriginStandard Origin = iota
	OriginCustom
)

func (o Origin) String() string {
	if o == OriginCustom {
		return "custom"
	}
	return "standard"
}

// Signal is the canonical record handed to the publish sink.
type Signal struct {
	Origin       Origin
	TVSignalID   string
	TimestampUTC string
	Event        Event
	OrderType    int
	Side         Side
	EntryPrice   string
	StopLoss     StopLoss
	TakeProfit   TakeProfit

	// standard path
	Symbol    string
	Timeframe int
	MetaData  MetaData
	Hit       Hit
	Strategy  int

	// custom path
	WebhookSecret string
	Channel       string
}

// Map renders the wire form consumed downstream. Stop-loss and take-profit are flattened
// into *_type/*_value(s) keys and the timeframe is sent as a string of minutes.
func (s Signal) Map() map[string]any {
	m := map[string]any{
		"tv_signal_id":       s.TVSignalID,
		"timestamp_utc":      s.TimestampUTC,
		"event":              string(s.Event),
		"order_type":         s.OrderType,
		"side":               string(s.Side),
		"entry_price":        s.EntryPrice,
		"stop_loss_type":     s.StopLoss.Type,
		"stop_loss_value":    s.StopLoss.Value,
		"take_profit_type":   s.TakeProfit.Type,
		"take_profit_values": append([]string(nil), s.TakeProfit.Values...),
	}
	switch s.Origin {
	case OriginStandard:
		m["meta_data"] = map[string]any{
			"description":             s.MetaData.Description,
			"type":                    s.MetaData.Type,
			"bar_index_timestamp_utc": s.MetaData.BarIndexTimestampUTC,
			"bar_index":               s.MetaData.BarIndex,
		}
		m["symbol"] = s.Symbol
		m["timeframe"] = fmt.Sprint(s.Timeframe)
		if s.Hit != "" {
			m["hit"] = string(s.Hit)
		} else {
			m["hit"] = nil
		}
		m["strategy"] = s.Strategy
	case OriginCustom:
		m["webhook_secret"] = s.WebhookSecret
		m["channel"] = s.Channel
	}
	return m
}

func (s Signal) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// KeywordMapping translates canonical keys into the sender's own keywords. A nil keyword
// means the sender does not provide that field.
type KeywordMapping struct {
	StopLoss   *string `json:"stop_loss,omitempty" yaml:"stop_loss"`
	TakeProfit *string `json:"take_profit,omitempty" yaml:"take_profit"`
	EntryPrice *string `json:"entry_price,omitempty" yaml:"entry_price"`
}

// DefaultKeywordMapping is used when neither the channel nor the configuration supplies one.
func DefaultKeywordMapping() KeywordMapping {
	sl, tp, entry := "sl", "tp", "entry"
	return KeywordMapping{StopLoss: &sl, TakeProfit: &tp, EntryPrice: &entry}
}

type keyword struct {
	key     string
	keyword string
}

// entries lists the non-null keywords in fixed stop-loss, take-profit, entry order.
func (m KeywordMapping) entries() []keyword {
	out := make([]keyword, 0, 3)
	for _, e := range []struct {
		key string
		kw  *string
	}{
		{KeyStopLoss, m.StopLoss},
		{KeyTakeProfit, m.TakeProfit},
		{KeyEntryPrice, m.EntryPrice},
	} {
		if e.kw != nil {
			out = append(out, keyword{key: e.key, keyword: *e.kw})
		}
	}
	return out
}

// Legacy keys written by older channel editors.
var mappingAliases = map[string]string{
	"stopLossKey":   KeyStopLoss,
	"takeProfitKey": KeyTakeProfit,
	"entryPriceKey": KeyEntryPrice,
}

// ParseKeywordMapping decodes a stored channel mapping. It returns nil when the stored value
// is empty, null or an empty object, meaning the channel supplies no mapping.
func ParseKeywordMapping(raw []byte) (*KeywordMapping, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var kv map[string]*string
	if err := json.Unmarshal(raw, &kv); err != nil {
		return nil, fmt.Errorf("decode keyword mapping: %w", err)
	}
	if len(kv) == 0 {
		return nil, nil
	}
	var m KeywordMapping
	for k, v := range kv {
		if alias, ok := mappingAliases[k]; ok {
			k = alias
		}
		switch k {
		case KeyStopLoss:
			m.StopLoss = v
		case KeyTakeProfit:
			m.TakeProfit = v
		case KeyEntryPrice:
			m.EntryPrice = v
		}
	}
	return &m, nil
}

// Settings is the immutable process-wide configuration the engine reads.
type Settings struct {
	MasterSecret   string
	CipherKey      string
	DefaultMapping KeywordMapping
}

// Request is the transport-neutral view of one inbound webhook call.
type Request struct {
	Query       url.Values
	Body        []byte
	ContentType string
}

type SecretRecord struct {
	BotID  int64
	Secret string
}

type BotRecord struct {
	ID        int64
	Active    bool
	Deleted   bool
	Encrypted bool
}

type ChannelRecord struct {
	Name    string
	BotID   int64
	Mapping *KeywordMapping
}

// Directory resolves the records the custom path depends on. Implementations return
// *Error values of kind Authorization or NotFound for unknown records.
type Directory interface {
	LookupSecret(ctx context.Context, secret string) (SecretRecord, error)
	LookupBot(ctx context.Context, id int64) (BotRecord, error)
	LookupChannel(ctx context.Context, name string, botID int64) (ChannelRecord, error)
}
