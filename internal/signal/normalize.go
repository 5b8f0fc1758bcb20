package signal

import (
	"encoding/json"
	"strings"
)

// ParseEvent canonicalizes an event name. Absent events default to open.
func ParseEvent(v any) (Event, error) {
	if v == nil {
		return EventOpen, nil
	}
	s, _ := v.(string)
	switch strings.ToLower(s) {
	case "open", "formed":
		return EventOpen, nil
	case "update", "updated":
		return EventUpdate, nil
	case "close", "invalidated":
		return EventClose, nil
	case "close-all", "close_all", "close all":
		return EventCloseAll, nil
	}
	return "", Validation("Invalid event value, accepted options (open, update, close, close-all, formed, updated, invalidated)")
}

// ParseOrderType returns the numeric order type. Only market orders exist downstream, so
// every input, including unknown ones, maps to OrderMarket without an error.
func ParseOrderType(v any) int {
	return OrderMarket
}

// ParseSide maps buy/long to buy and sell/short to sell, case-insensitively.
func ParseSide(v any) (Side, error) {
	if v == nil {
		return "", Validation("Side is required")
	}
	s, _ := v.(string)
	switch strings.ToLower(s) {
	case "buy", "long":
		return SideBuy, nil
	case "sell", "short":
		return SideSell, nil
	}
	return "", Validation("Invalid side")
}

func ParseSymbol(v any) (string, error) {
	if v == nil {
		return "", Validation("Symbol is required")
	}
	return stringify(v), nil
}

// ParseTimeframe resolves a timeframe code through the fixed table.
func ParseTimeframe(v any) (int, error) {
	switch v.(type) {
	case nil:
		return 0, Validation("TimeFrame is required")
	case string, json.Number:
		return TimeframeMinutes(stringify(v))
	}
	return 0, Validation("Invalid timeframe: %s", stringify(v))
}

// ParseEntryPrice cleans a string entry price; anything else becomes the NaN sentinel.
func ParseEntryPrice(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return NaN, nil
	}
	return CleanPrice(s)
}

// ParseStopLoss accepts a currency amount or a percentage. Risk-reward stop-losses are
// rejected: any 'r' in the value counts as a risk-reward marker.
func ParseStopLoss(v any) (StopLoss, error) {
	if v == nil {
		return StopLoss{Type: NaN, Value: NaN}, nil
	}
	s, ok := v.(string)
	if !ok {
		return StopLoss{}, Validation("Stop loss is invalid.")
	}
	s = strings.ToLower(s)
	if strings.Contains(s, "r") {
		return StopLoss{}, Validation("Stop loss can't be of type risk reward ratio.")
	}
	if strings.Contains(s, "%") {
		val, err := CleanPrice(strings.ReplaceAll(s, "%", ""))
		if err != nil {
			return StopLoss{}, err
		}
		return StopLoss{Type: UnitPercentage, Value: val}, nil
	}
	val, err := CleanPrice(s)
	if err != nil {
		return StopLoss{}, err
	}
	return StopLoss{Type: UnitCurrency, Value: val}, nil
}

// classifyTarget returns the unit class and cleaned value of one take-profit target.
func classifyTarget(s string) (string, string, error) {
	s = strings.ToLower(s)
	var unit string
	switch {
	case strings.Contains(s, "%"):
		unit = UnitPercentage
		s = strings.ReplaceAll(s, "%", "")
	case strings.Contains(s, "r"):
		unit = UnitRiskReward
		s = strings.ReplaceAll(strings.ReplaceAll(s, "rr", ""), "r", "")
	default:
		unit = UnitCurrency
	}
	val, err := CleanPrice(s)
	if err != nil {
		return "", "", err
	}
	return unit, val, nil
}

// ParseTakeProfits classifies a batch of targets (tp1..tp8). Null slots are skipped and
// exactly one unit class may be used across the batch.
func ParseTakeProfits(slots []any) (TakeProfit, error) {
	byUnit := map[string][]string{}
	for _, slot := range slots {
		if slot == nil {
			continue
		}
		s, ok := slot.(string)
		if !ok {
			return TakeProfit{}, Validation("Take profit values are invalid.")
		}
		unit, val, err := classifyTarget(s)
		if err != nil {
			return TakeProfit{}, err
		}
		byUnit[unit] = append(byUnit[unit], val)
	}
	var used []string
	for _, unit := range []string{UnitPercentage, UnitRiskReward, UnitCurrency} {
		if len(byUnit[unit]) > 0 {
			used = append(used, unit)
		}
	}
	if len(used) != 1 {
		return TakeProfit{}, Validation("All take-profits must be of the same type.")
	}
	return TakeProfit{Type: used[0], Values: byUnit[used[0]]}, nil
}

// ParseTakeProfit classifies the single target sent on the custom path.
func ParseTakeProfit(v any) (TakeProfit, error) {
	if v == nil {
		return TakeProfit{Type: NaN, Values: []string{NaN}}, nil
	}
	s, ok := v.(string)
	if !ok {
		return TakeProfit{}, Validation("Take profit is invalid!")
	}
	unit, val, err := classifyTarget(s)
	if err != nil {
		return TakeProfit{}, err
	}
	return TakeProfit{Type: unit, Values: []string{val}}, nil
}
