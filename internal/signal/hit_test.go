package signal

import "testing"

func TestStandardHit(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    Hit
		ok      bool
	}{
		{"entry", map[string]any{"entry_hit": "1"}, HitEntry, true},
		{"entry any target index", map[string]any{"entry_hit": "8"}, HitEntry, true},
		{"entry beats stop loss", map[string]any{"entry_hit": "2", "sl_hit": "1"}, HitEntry, true},
		{"stop loss", map[string]any{"sl_hit": "1", "tp1_hit": "1"}, HitSL, true},
		{"first take profit", map[string]any{"tp3_hit": "1", "tp5_hit": "1"}, "TP3", true},
		{"invalid entry value", map[string]any{"entry_hit": "9", "tp8_hit": "1"}, "TP8", true},
		{"flags must be strings", map[string]any{"sl_hit": 1}, "", false},
		{"nothing", map[string]any{"sl_hit": "0"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StandardHit(tt.payload)
			if got != tt.want || ok != tt.ok {
				t.Errorf("StandardHit = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestUpdateHit(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    Hit
		ok      bool
	}{
		{"not an update", map[string]any{"event": "open", "sl_hit": "1"}, "", false},
		{"stop loss beats entry", map[string]any{"event": "updated", "entry_hit": "1", "sl_hit": "1"}, HitSL, true},
		{"entry", map[string]any{"event": "updated", "entry_hit": "3"}, HitEntry, true},
		{"take profit overrides", map[string]any{"event": "updated", "sl_hit": "1", "tp2_hit": "1"}, "TP2", true},
		{"existing hit kept", map[string]any{"event": "updated", "hit": "tp4"}, "TP4", true},
		{"nothing", map[string]any{"event": "updated"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UpdateHit(tt.payload)
			if got != tt.want || ok != tt.ok {
				t.Errorf("UpdateHit = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestHitDerivationsDisagree(t *testing.T) {
	p := map[string]any{"event": "updated", "entry_hit": "1", "sl_hit": "1"}
	standard, _ := StandardHit(p)
	update, _ := UpdateHit(p)
	if standard != HitEntry || update != HitSL {
		t.Errorf("StandardHit = %q, UpdateHit = %q; want ENTRY and SL", standard, update)
	}
}
