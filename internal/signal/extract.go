package signal

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Keys whose presence marks a JSON body as a wrapper around free text.
var freeTextMarkers = []string{"content", "contents", "message", "text", "body"}

var sideWord = regexp.MustCompile(`(?i)\b(sell|buy|long|short)\b`)

// Fields is the flat result of extraction: event, side, sl, tp and entry.
type Fields map[string]any

// Extract pulls event, side and the mapped indicator values out of a custom-path body.
//
// A JSON object body is read by key. Any other body, and any JSON object carrying one of the
// free-text marker keys, is scanned as text: the side is the first buy/sell/long/short word,
// the event and fallback side come from the query string, and each mapped value is read with
// "<keyword>[:=] <number>". The first textual match wins, so keywords that occur inside other
// words or other keywords (e.g. "tp" inside "stp") can match the wrong value.
func Extract(body []byte, query url.Values, mapping KeywordMapping) Fields {
	entries := mapping.entries()
	values := make(map[string]any, len(entries))
	out := Fields{}

	if obj, err := decodeObject(body); err == nil && !hasFreeTextMarker(obj) {
		out["event"] = obj["event"]
		out["side"] = obj["side"]
		for _, e := range entries {
			values[e.key] = obj[e.keyword]
		}
	} else {
		text := string(body)
		out["event"] = queryValue(query, "event")
		if m := sideWord.FindStringSubmatch(text); m != nil {
			out["side"] = strings.ToLower(m[1])
		} else {
			out["side"] = queryValue(query, "side")
		}
		for _, e := range entries {
			values[e.key] = scanNumber(text, e.keyword)
		}
	}

	out["sl"] = textOrNil(values[KeyStopLoss])
	out["tp"] = textOrNil(values[KeyTakeProfit])
	out["entry"] = textOrNil(values[KeyEntryPrice])
	return out
}

func hasFreeTextMarker(obj map[string]any) bool {
	for _, k := range freeTextMarkers {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func queryValue(q url.Values, key string) any {
	if q == nil || !q.Has(key) {
		return nil
	}
	return q.Get(key)
}

// scanNumber finds "<keyword>:" or "<keyword>=" followed by a number, case-insensitively.
func scanNumber(text, keyword string) any {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword) + `[:=]\s*(\d+\.?\d*)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return f
}

// textOrNil stringifies present values; absent or zero-like values become nil.
func textOrNil(v any) any {
	if !truthy(v) {
		return nil
	}
	return stringify(v)
}
