package tournament

import (
	"fmt"
	"math"
)

// pairing is one fixture by index into the ordered team list.
type pairing struct {
	home, away int
}

// roundRobin pairs every team with every other once, i<j, in list order.
func roundRobin(n int) []pairing {
	out := make([]pairing, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, pairing{home: i, away: j})
		}
	}
	return out
}

// knockout pairs teams two at a time in list order. With an odd count the
// last team has no opponent and is returned as dropped (-1 otherwise).
func knockout(n int) (pairs []pairing, dropped int) {
	dropped = -1
	for i := 0; i+1 < n; i += 2 {
		pairs = append(pairs, pairing{home: i, away: i + 1})
	}
	if n%2 == 1 {
		dropped = n - 1
	}
	return pairs, dropped
}

// roundLabel names a knockout round by the rounds needed for teamCount teams.
func roundLabel(teamCount int) string {
	if teamCount < 2 {
		return ""
	}
	rounds := int(math.Ceil(math.Log2(float64(teamCount))))
	switch rounds {
	case 1:
		return "Final"
	case 2:
		return "Semi Final"
	case 3:
		return "Quarter Final"
	default:
		return fmt.Sprintf("Round of %d", 1<<rounds)
	}
}
