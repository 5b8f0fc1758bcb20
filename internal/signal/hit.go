package signal

import (
	"fmt"
	"strings"
)

const maxTargets = 8

var entryHitValues = map[string]bool{
	"1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true,
}

func flag(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// StandardHit derives the hit status of a standard payload. Precedence is entry, then
// stop-loss, then the first take-profit target flagged. ok is false when nothing was hit.
func StandardHit(p map[string]any) (Hit, bool) {
	if entryHitValues[flag(p, "entry_hit")] {
		return HitEntry, true
	}
	if flag(p, "sl_hit") == "1" {
		return HitSL, true
	}
	for i := 1; i <= maxTargets; i++ {
		if flag(p, fmt.Sprintf("tp%d_hit", i)) == "1" {
			return HitTP(i), true
		}
	}
	return "", false
}

// UpdateHit is the hit derivation used when post-processing "updated" events. It disagrees
// with StandardHit: stop-loss wins over entry, a flagged take-profit overrides both, and an
// existing "hit" value is kept (upper-cased) when no flag is set. Which order is correct is
// an open product question, so the two are kept apart.
func UpdateHit(p map[string]any) (Hit, bool) {
	if ev, _ := p["event"].(string); ev != "updated" {
		return "", false
	}
	hit, _ := p["hit"].(string)
	if flag(p, "sl_hit") == "1" {
		hit = "sl"
	} else if entryHitValues[flag(p, "entry_hit")] {
		hit = "entry"
	}
	for i := 1; i <= maxTargets; i++ {
		if flag(p, fmt.Sprintf("tp%d_hit", i)) == "1" {
			hit = fmt.Sprintf("tp%d", i)
			break
		}
	}
	if hit == "" {
		return "", false
	}
	return Hit(strings.ToUpper(hit)), true
}
