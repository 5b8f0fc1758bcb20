package signal

import "strings"

// timeframeMinutes is the fixed code table. Keys are upper-case without spaces.
var timeframeMinutes = map[string]int{
	"5":  5,
	"15": 15,
	"30": 30,
	"45": 45,
	"60": 60, "H": 60, "1H": 60,
	"120": 120, "2H": 120,
	"180": 180, "3H": 180,
	"240": 240, "4H": 240,
	"360": 360, "6H": 360,
	"480": 480, "8H": 480,
	"720": 720, "12H": 720,
	"1440": 1440, "D": 1440,
	"2880": 2880, "2D": 2880,
	"4320": 4320, "3D": 4320,
	"10080": 10080, "W": 10080,
	"43200": 43200, "M": 43200,
}

// TimeframeMinutes resolves a timeframe code such as "4H", "d" or "240" to minutes.
func TimeframeMinutes(code string) (int, error) {
	key := strings.ToUpper(strings.ReplaceAll(code, " ", ""))
	if m, ok := timeframeMinutes[key]; ok {
		return m, nil
	}
	return 0, Validation("Invalid timeframe: %s", key)
}
