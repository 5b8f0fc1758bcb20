package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload values are whatever encoding/json produced with UseNumber: nil, bool, string,
// json.Number, []any or map[string]any. Free-text extraction also yields float64.

// truthy mirrors the sender-side notion of "present": nil, false, "", zero numbers and
// empty containers are not.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// stringify renders a payload value as text the way senders expect to read it back.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return FormatFloat(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// decodeObject parses body as a JSON object, keeping numbers as json.Number.
func decodeObject(body []byte) (map[string]any, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	if m == nil {
		return nil, fmt.Errorf("JSON body is not an object")
	}
	return m, nil
}
