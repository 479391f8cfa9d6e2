package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	hoursRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*h`)
	minutesRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*m`)
	numberRe  = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseMinutes turns free-text durations ("90", "1h 30m", "45 min", "1.5h")
// into whole minutes. Unparseable text is 0.
func ParseMinutes(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	total := 0.0
	matched := false
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.ParseFloat(m[1], 64)
		total += h * 60
		matched = true
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.ParseFloat(m[1], 64)
		total += mins
		matched = true
	}
	if !matched {
		if n := numberRe.FindString(s); n != "" {
			total, _ = strconv.ParseFloat(n, 64)
		}
	}
	return int(math.Round(total))
}
