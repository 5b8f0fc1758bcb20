package signal

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"signal-gateway/pkg/crypto"
)

// CustomTimeLayout is the timestamp format stamped on custom signals that carry none.
const CustomTimeLayout = "2006-01-02 15:04:05"

// Fields a standard payload must carry verbatim.
var standardRequired = []string{
	"tv_signal_id", "timestamp_utc", "description", "type", "bar_index_timestamp_utc", "bar_index",
}

// Engine assembles canonical signals. It holds only immutable settings and the lookup
// collaborator, so one Engine serves concurrent requests.
type Engine struct {
	settings Settings
	dir      Directory
	now      func() time.Time
	newID    func() string
}

func NewEngine(settings Settings, dir Directory) *Engine {
	return &Engine{
		settings: settings,
		dir:      dir,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Process authorizes a request and routes it to the standard or custom path.
func (e *Engine) Process(ctx context.Context, req Request) (Signal, error) {
	if req.Query == nil || !req.Query.Has("secret_key") {
		return Signal{}, Unauthorized("Invalid Secret Key")
	}
	secret := req.Query.Get("secret_key")

	if e.isMaster(secret) {
		payload, err := decodeObject(req.Body)
		if err != nil {
			return Signal{}, Validation("Request body must be a JSON object.")
		}
		labelID, err := LabelID(req)
		if err != nil {
			return Signal{}, err
		}
		return e.Standard(payload, labelID)
	}
	return e.Custom(ctx, req, secret)
}

func (e *Engine) isMaster(secret string) bool {
	if e.settings.MasterSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(e.settings.MasterSecret)) == 1
}

// OriginOf reports which path Process routes req to.
func (e *Engine) OriginOf(req Request) Origin {
	if req.Query != nil && e.isMaster(req.Query.Get("secret_key")) {
		return OriginStandard
	}
	return OriginCustom
}

// LabelID reads the integer label_id query parameter of a standard request.
func LabelID(req Request) (int, error) {
	if !req.Query.Has("label_id") {
		return 0, Validation("label_id is required as a query parameter.")
	}
	id, err := strconv.Atoi(strings.TrimSpace(req.Query.Get("label_id")))
	if err != nil {
		return 0, Validation("label_id must be a valid integer.")
	}
	return id, nil
}

// Standard builds a signal from the primary sender's payload. Entry price and take-profit
// targets are only read when the payload reports an entry hit.
func (e *Engine) Standard(p map[string]any, labelID int) (Signal, error) {
	hit, _ := StandardHit(p)

	for _, key := range standardRequired {
		if _, ok := p[key]; !ok {
			return Signal{}, Validation("%s is required", key)
		}
	}

	sig := Signal{
		Origin:       OriginStandard,
		TVSignalID:   fmt.Sprintf("%s_%d", stringify(p["tv_signal_id"]), labelID),
		TimestampUTC: stringify(p["timestamp_utc"]),
		MetaData: MetaData{
			Description:          p["description"],
			Type:                 p["type"],
			BarIndexTimestampUTC: p["bar_index_timestamp_utc"],
			BarIndex:             p["bar_index"],
		},
		OrderType: ParseOrderType(p["order_type"]),
		Hit:       hit,
		Strategy:  labelID,
	}

	var err error
	if sig.Side, err = ParseSide(p["side"]); err != nil {
		return Signal{}, err
	}
	if sig.Symbol, err = ParseSymbol(p["symbol"]); err != nil {
		return Signal{}, err
	}
	if sig.Timeframe, err = ParseTimeframe(p["timeframe"]); err != nil {
		return Signal{}, err
	}
	if sig.Event, err = ParseEvent(p["event"]); err != nil {
		return Signal{}, err
	}

	sig.EntryPrice = "0.0"
	if hit == HitEntry {
		if sig.EntryPrice, err = ParseEntryPrice(p["entry"]); err != nil {
			return Signal{}, err
		}
	}
	if sig.StopLoss, err = ParseStopLoss(p["sl"]); err != nil {
		return Signal{}, err
	}

	sig.TakeProfit = TakeProfit{Type: NaN, Values: []string{NaN}}
	if hit == HitEntry {
		slots := make([]any, maxTargets)
		for i := range slots {
			slots[i] = p[fmt.Sprintf("tp%d", i+1)]
		}
		if sig.TakeProfit, err = ParseTakeProfits(slots); err != nil {
			return Signal{}, err
		}
	}
	return sig, nil
}

// Custom builds a signal for a third-party sender identified by its webhook secret.
func (e *Engine) Custom(ctx context.Context, req Request, secret string) (Signal, error) {
	if e.dir == nil {
		return Signal{}, Unexpected(errors.New("no directory configured"))
	}
	rec, err := e.dir.LookupSecret(ctx, secret)
	if err != nil {
		return Signal{}, asSignalError(err)
	}
	bot, err := e.dir.LookupBot(ctx, rec.BotID)
	if err != nil {
		return Signal{}, asSignalError(err)
	}
	if !bot.Active || bot.Deleted {
		return Signal{}, Unauthorized("No bots are active for this hook!")
	}

	channel := ChannelName(req)

	var fields map[string]any
	if bot.Encrypted {
		if fields, err = e.decrypt(req.Body); err != nil {
			return Signal{}, err
		}
	} else {
		ch, err := e.dir.LookupChannel(ctx, channel, bot.ID)
		if err != nil {
			return Signal{}, asSignalError(err)
		}
		mapping := e.settings.DefaultMapping
		if ch.Mapping != nil {
			mapping = *ch.Mapping
		}
		fields = Extract(req.Body, req.Query, mapping)
	}
	fields["channel"] = channel

	return e.reshapeCustom(fields, rec.Secret)
}

// ChannelName picks the channel from the query string, then from a JSON body. Bodies that
// are not JSON objects, and objects without a channel, use "default".
func ChannelName(req Request) string {
	if req.Query != nil && req.Query.Has("channel") {
		return strings.TrimSpace(req.Query.Get("channel"))
	}
	obj, err := decodeObject(req.Body)
	if err != nil {
		return "default"
	}
	v, ok := obj["channel"]
	if !ok || v == nil {
		return "default"
	}
	return strings.TrimSpace(stringify(v))
}

func (e *Engine) decrypt(body []byte) (map[string]any, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, Validation("Request body must be a JSON object.")
	}
	if !truthy(obj["data"]) {
		return nil, Validation("data is required in the request body.")
	}
	ciphertext, ok := obj["data"].(string)
	if !ok {
		return nil, Decode("Encrypted data must be a string.", nil)
	}
	plain, err := crypto.Decrypt(ciphertext, e.settings.CipherKey)
	if err != nil {
		return nil, Decode("Unable to decrypt signal.", err)
	}
	payload, err := decodeObject([]byte(plain))
	if err != nil {
		return nil, Decode("Decrypted signal is not a JSON object.", err)
	}
	return payload, nil
}

func (e *Engine) reshapeCustom(p map[string]any, secret string) (Signal, error) {
	sig := Signal{
		Origin:        OriginCustom,
		TVSignalID:    e.newID(),
		TimestampUTC:  e.now().Format(CustomTimeLayout),
		WebhookSecret: secret,
		OrderType:     ParseOrderType(p["order_type"]),
		Channel:       stringify(p["channel"]),
	}
	if v := p["tv_signal_id"]; v != nil {
		sig.TVSignalID = stringify(v)
	}
	if v := p["timestamp_utc"]; v != nil {
		sig.TimestampUTC = stringify(v)
	}

	var err error
	if sig.Event, err = ParseEvent(p["event"]); err != nil {
		return Signal{}, err
	}
	if sig.Side, err = ParseSide(p["side"]); err != nil {
		return Signal{}, err
	}
	if sig.EntryPrice, err = ParseEntryPrice(p["entry"]); err != nil {
		return Signal{}, err
	}
	if sig.StopLoss, err = ParseStopLoss(p["sl"]); err != nil {
		return Signal{}, err
	}
	if sig.TakeProfit, err = ParseTakeProfit(customTarget(p)); err != nil {
		return Signal{}, err
	}
	return sig, nil
}

// customTarget picks "tp", else "tp<final_tp>" where final_tp falls back to the tp8 value.
func customTarget(p map[string]any) any {
	if truthy(p["tp"]) {
		return p["tp"]
	}
	final := p["final_tp"]
	if !truthy(final) {
		final = p["tp8"]
	}
	return p["tp"+stringify(final)]
}

// asSignalError passes typed errors through and wraps anything else as unexpected.
func asSignalError(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return Unexpected(err)
}
