package signal

import (
	"context"
	"encoding/json"
	"net/url"
	"reflect"
	"testing"
	"time"

	"signal-gateway/pkg/crypto"
)

const (
	testMaster = "master-secret"
	testCipher = "cipher-key"
)

type fakeDirectory struct {
	secrets  map[string]SecretRecord
	bots     map[int64]BotRecord
	channels map[string]ChannelRecord
}

func (d *fakeDirectory) LookupSecret(_ context.Context, secret string) (SecretRecord, error) {
	rec, ok := d.secrets[secret]
	if !ok {
		return SecretRecord{}, Unauthorized("Invalid Secret Key")
	}
	return rec, nil
}

func (d *fakeDirectory) LookupBot(_ context.Context, id int64) (BotRecord, error) {
	bot, ok := d.bots[id]
	if !ok {
		return BotRecord{}, Unauthorized("Invalid Secret Key")
	}
	return bot, nil
}

func (d *fakeDirectory) LookupChannel(_ context.Context, name string, botID int64) (ChannelRecord, error) {
	ch, ok := d.channels[name]
	if !ok || ch.BotID != botID {
		return ChannelRecord{}, NotFound("Channel %s not found!", name)
	}
	return ch, nil
}

func newTestEngine() *Engine {
	mapping := KeywordMapping{StopLoss: strptr("sl"), TakeProfit: strptr("tp")}
	dir := &fakeDirectory{
		secrets: map[string]SecretRecord{
			"plain-secret":     {BotID: 1, Secret: "plain-secret"},
			"encrypted-secret": {BotID: 2, Secret: "encrypted-secret"},
			"inactive-secret":  {BotID: 3, Secret: "inactive-secret"},
			"deleted-secret":   {BotID: 4, Secret: "deleted-secret"},
			"orphan-secret":    {BotID: 99, Secret: "orphan-secret"},
		},
		bots: map[int64]BotRecord{
			1: {ID: 1, Active: true},
			2: {ID: 2, Active: true, Encrypted: true},
			3: {ID: 3, Active: false},
			4: {ID: 4, Active: true, Deleted: true},
		},
		channels: map[string]ChannelRecord{
			"default": {Name: "default", BotID: 1, Mapping: &mapping},
			"plain":   {Name: "plain", BotID: 1},
		},
	}
	e := NewEngine(Settings{
		MasterSecret:   testMaster,
		CipherKey:      testCipher,
		DefaultMapping: DefaultKeywordMapping(),
	}, dir)
	e.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	e.newID = func() string { return "generated-id" }
	return e
}

func request(query string, body string) Request {
	q, _ := url.ParseQuery(query)
	return Request{Query: q, Body: []byte(body)}
}

const standardBody = `{"tv_signal_id":"abc","timestamp_utc":"t","description":"d","type":"x",` +
	`"bar_index_timestamp_utc":"t2","bar_index":1,"side":"buy","symbol":"BTCUSD","timeframe":"1H",` +
	`"event":"open","entry_hit":"1","entry":"30000","sl":"29000","tp1":"31000"}`

func TestProcessStandardEntry(t *testing.T) {
	e := newTestEngine()
	sig, err := e.Process(context.Background(), request("secret_key="+testMaster+"&label_id=5", standardBody))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if sig.Origin != OriginStandard {
		t.Errorf("Origin = %v, want standard", sig.Origin)
	}
	if sig.Side != SideBuy || sig.Symbol != "BTCUSD" || sig.Hit != HitEntry || sig.Strategy != 5 {
		t.Errorf("side/symbol/hit/strategy = %q/%q/%q/%d", sig.Side, sig.Symbol, sig.Hit, sig.Strategy)
	}
	if sig.EntryPrice != "30000.0" {
		t.Errorf("EntryPrice = %q, want 30000.0", sig.EntryPrice)
	}
	if sig.StopLoss != (StopLoss{Type: UnitCurrency, Value: "29000.0"}) {
		t.Errorf("StopLoss = %+v", sig.StopLoss)
	}
	if !reflect.DeepEqual(sig.TakeProfit, TakeProfit{Type: UnitCurrency, Values: []string{"31000.0"}}) {
		t.Errorf("TakeProfit = %+v", sig.TakeProfit)
	}
	if sig.TVSignalID != "abc_5" || sig.Timeframe != 60 || sig.Event != EventOpen || sig.OrderType != OrderMarket {
		t.Errorf("id/timeframe/event/order = %q/%d/%q/%d", sig.TVSignalID, sig.Timeframe, sig.Event, sig.OrderType)
	}

	m := sig.Map()
	if m["timeframe"] != "60" || m["stop_loss_type"] != UnitCurrency || m["hit"] != "ENTRY" {
		t.Errorf("wire form = %v", m)
	}
	meta, _ := m["meta_data"].(map[string]any)
	if meta["bar_index"] != json.Number("1") || meta["description"] != "d" {
		t.Errorf("meta_data = %v", meta)
	}
	if _, ok := m["webhook_secret"]; ok {
		t.Error("standard signal carries webhook_secret")
	}
}

func TestStandardWithoutEntryHit(t *testing.T) {
	p := map[string]any{
		"tv_signal_id": json.Number("123"), "timestamp_utc": "t", "description": "d", "type": "x",
		"bar_index_timestamp_utc": "t2", "bar_index": json.Number("7"),
		"side": "short", "symbol": "ETHUSD", "timeframe": "4H", "event": "invalidated",
		"sl_hit": "1", "sl": "5%", "entry": "2000", "tp1": "10%", "tp2": "5",
	}
	sig, err := newTestEngine().Standard(p, 9)
	if err != nil {
		t.Fatalf("Standard error: %v", err)
	}
	if sig.Hit != HitSL || sig.EntryPrice != "0.0" || sig.TVSignalID != "123_9" {
		t.Errorf("hit/entry/id = %q/%q/%q", sig.Hit, sig.EntryPrice, sig.TVSignalID)
	}
	if !reflect.DeepEqual(sig.TakeProfit, TakeProfit{Type: NaN, Values: []string{NaN}}) {
		t.Errorf("TakeProfit = %+v, want NaN", sig.TakeProfit)
	}
	if sig.StopLoss != (StopLoss{Type: UnitPercentage, Value: "5.0"}) || sig.Event != EventClose || sig.Timeframe != 240 {
		t.Errorf("sl/event/timeframe = %+v/%q/%d", sig.StopLoss, sig.Event, sig.Timeframe)
	}
	if m := sig.Map(); m["hit"] != "SL" {
		t.Errorf("hit = %v", m["hit"])
	}
}

func TestProcessStandardErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		body   string
		kind   Kind
		reason string
	}{
		{"missing secret", "label_id=5", standardBody, KindAuthorization, "Invalid Secret Key"},
		{"missing label", "secret_key=" + testMaster, standardBody, KindValidation, "label_id is required as a query parameter."},
		{"bad label", "secret_key=" + testMaster + "&label_id=five", standardBody, KindValidation, "label_id must be a valid integer."},
		{"not json", "secret_key=" + testMaster + "&label_id=5", "buy now", KindValidation, "Request body must be a JSON object."},
		{"missing bar index", "secret_key=" + testMaster + "&label_id=5", `{"tv_signal_id":"a","timestamp_utc":"t","description":"d","type":"x","bar_index_timestamp_utc":"t2","side":"buy"}`, KindValidation, "bar_index is required"},
		{"bad timeframe", "secret_key=" + testMaster + "&label_id=5", `{"tv_signal_id":"a","timestamp_utc":"t","description":"d","type":"x","bar_index_timestamp_utc":"t2","bar_index":1,"side":"buy","symbol":"X","timeframe":"7H"}`, KindValidation, "Invalid timeframe: 7H"},
		{"mixed take profits", "secret_key=" + testMaster + "&label_id=5", `{"tv_signal_id":"a","timestamp_utc":"t","description":"d","type":"x","bar_index_timestamp_utc":"t2","bar_index":1,"side":"buy","symbol":"X","timeframe":"D","entry_hit":"1","entry":"1","tp1":"10%","tp2":"5"}`, KindValidation, "All take-profits must be of the same type."},
	}
	e := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Process(context.Background(), request(tt.query, tt.body))
			if KindOf(err) != tt.kind || ReasonOf(err) != tt.reason {
				t.Errorf("err = %v, want %s %q", err, tt.kind, tt.reason)
			}
		})
	}
}

func TestProcessCustomFreeText(t *testing.T) {
	e := newTestEngine()
	sig, err := e.Process(context.Background(), request("secret_key=plain-secret", "BUY signal sl=100 tp=110"))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if sig.Origin != OriginCustom || sig.Side != SideBuy || sig.Channel != "default" {
		t.Errorf("origin/side/channel = %v/%q/%q", sig.Origin, sig.Side, sig.Channel)
	}
	if sig.StopLoss != (StopLoss{Type: UnitCurrency, Value: "100.0"}) {
		t.Errorf("StopLoss = %+v", sig.StopLoss)
	}
	if !reflect.DeepEqual(sig.TakeProfit, TakeProfit{Type: UnitCurrency, Values: []string{"110.0"}}) {
		t.Errorf("TakeProfit = %+v", sig.TakeProfit)
	}
	if sig.EntryPrice != NaN || sig.Event != EventOpen {
		t.Errorf("entry/event = %q/%q", sig.EntryPrice, sig.Event)
	}
	if sig.TVSignalID != "generated-id" || sig.TimestampUTC != "2024-01-02 03:04:05" || sig.WebhookSecret != "plain-secret" {
		t.Errorf("id/timestamp/secret = %q/%q/%q", sig.TVSignalID, sig.TimestampUTC, sig.WebhookSecret)
	}

	m := sig.Map()
	if m["channel"] != "default" || m["webhook_secret"] != "plain-secret" {
		t.Errorf("wire form = %v", m)
	}
	if _, ok := m["strategy"]; ok {
		t.Error("custom signal carries strategy")
	}
}

func TestProcessCustomDefaultMapping(t *testing.T) {
	body := `{"side":"long","sl":"10","tp":"20%","entry":"15","channel":" plain "}`
	sig, err := newTestEngine().Process(context.Background(), request("secret_key=plain-secret", body))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if sig.Channel != "plain" || sig.EntryPrice != "15.0" {
		t.Errorf("channel/entry = %q/%q", sig.Channel, sig.EntryPrice)
	}
	if !reflect.DeepEqual(sig.TakeProfit, TakeProfit{Type: UnitPercentage, Values: []string{"20.0"}}) {
		t.Errorf("TakeProfit = %+v", sig.TakeProfit)
	}
}

func TestProcessCustomErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		body   string
		kind   Kind
		reason string
	}{
		{"unknown secret", "secret_key=nope", "buy", KindAuthorization, "Invalid Secret Key"},
		{"unknown bot", "secret_key=orphan-secret", "buy", KindAuthorization, "Invalid Secret Key"},
		{"inactive bot", "secret_key=inactive-secret", "buy", KindAuthorization, "No bots are active for this hook!"},
		{"deleted bot", "secret_key=deleted-secret", "buy", KindAuthorization, "No bots are active for this hook!"},
		{"unknown channel", "secret_key=plain-secret&channel=vip", "buy", KindNotFound, "Channel vip not found!"},
		{"no side", "secret_key=plain-secret", "sl=1 tp=2", KindValidation, "Side is required"},
		{"encrypted without data", "secret_key=encrypted-secret", `{"payload":"x"}`, KindValidation, "data is required in the request body."},
		{"encrypted not json", "secret_key=encrypted-secret", "data=abc", KindValidation, "Request body must be a JSON object."},
	}
	e := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Process(context.Background(), request(tt.query, tt.body))
			if KindOf(err) != tt.kind || ReasonOf(err) != tt.reason {
				t.Errorf("err = %v, want %s %q", err, tt.kind, tt.reason)
			}
		})
	}
}

func encryptedBody(t *testing.T, payload, key string) string {
	t.Helper()
	ciphertext, err := crypto.Encrypt(payload, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, _ := json.Marshal(map[string]string{"data": ciphertext})
	return string(b)
}

func TestProcessCustomEncrypted(t *testing.T) {
	payload := `{"tv_signal_id":"x1","side":"sell","sl":"2%","tp":"3rr","entry":"101.5","event":"update"}`
	body := encryptedBody(t, payload, testCipher)

	sig, err := newTestEngine().Process(context.Background(), request("secret_key=encrypted-secret&channel=alpha", body))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if sig.TVSignalID != "x1" || sig.Side != SideSell || sig.Channel != "alpha" || sig.Event != EventUpdate {
		t.Errorf("id/side/channel/event = %q/%q/%q/%q", sig.TVSignalID, sig.Side, sig.Channel, sig.Event)
	}
	if sig.StopLoss != (StopLoss{Type: UnitPercentage, Value: "2.0"}) || sig.EntryPrice != "101.5" {
		t.Errorf("sl/entry = %+v/%q", sig.StopLoss, sig.EntryPrice)
	}
	if !reflect.DeepEqual(sig.TakeProfit, TakeProfit{Type: UnitRiskReward, Values: []string{"3.0"}}) {
		t.Errorf("TakeProfit = %+v", sig.TakeProfit)
	}
}

func TestProcessCustomEncryptedWrongKey(t *testing.T) {
	body := encryptedBody(t, `{"side":"buy","sl":"1","tp":"2"}`, "other-key")
	_, err := newTestEngine().Process(context.Background(), request("secret_key=encrypted-secret", body))
	if KindOf(err) != KindDecode {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestCustomTargetFallback(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"tp wins", map[string]any{"side": "buy", "tp": "100", "final_tp": "2", "tp2": "120"}, "100.0"},
		{"final tp index", map[string]any{"side": "buy", "final_tp": "2", "tp2": "120"}, "120.0"},
		{"tp8 as index", map[string]any{"side": "buy", "tp8": "3", "tp3": "130"}, "130.0"},
		{"numeric index", map[string]any{"side": "buy", "final_tp": json.Number("4"), "tp4": "140"}, "140.0"},
		{"nothing", map[string]any{"side": "buy"}, NaN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.payload["channel"] = "default"
			sig, err := e.reshapeCustom(tt.payload, "s")
			if err != nil {
				t.Fatalf("reshapeCustom error: %v", err)
			}
			if len(sig.TakeProfit.Values) != 1 || sig.TakeProfit.Values[0] != tt.want {
				t.Errorf("TakeProfit = %+v, want %s", sig.TakeProfit, tt.want)
			}
		})
	}
}

func TestChannelName(t *testing.T) {
	tests := []struct {
		name  string
		query string
		body  string
		want  string
	}{
		{"query wins", "channel=%20vip%20", `{"channel":"other"}`, "vip"},
		{"json body", "", `{"channel":" alerts "}`, "alerts"},
		{"json without channel", "", `{"side":"buy"}`, "default"},
		{"text body", "", "buy now", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChannelName(request(tt.query, tt.body)); got != tt.want {
				t.Errorf("ChannelName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOriginOf(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		query string
		want  Origin
	}{
		{"secret_key=" + testMaster, OriginStandard},
		{"secret_key=plain-secret", OriginCustom},
		{"", OriginCustom},
	}
	for _, tt := range tests {
		if got := e.OriginOf(request(tt.query, "")); got != tt.want {
			t.Errorf("OriginOf(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
