// Package sport holds the per-sport capacity and duration rules that
// parameterize the admission and session logic.
package sport

import (
	"fmt"
	"strings"
	"time"
)

// Sport names accepted at the API boundary.
const (
	Tennis     = "tennis"
	Pickleball = "pickleball"
	Basketball = "basketball"
)

// Rules captures how one sport uses physical courts.
type Rules struct {
	Name string
	// PlayersPerCourt is the pooled-capacity headcount per physical court.
	// Only meaningful when PoolingEnabled.
	PlayersPerCourt int
	// CourtsPerGroup is how many courts a grouped session claims.
	CourtsPerGroup  int
	SessionDuration time.Duration
	// PoolingEnabled means many players share courts up to PlayersPerCourt
	// rather than one player/group per court.
	PoolingEnabled bool
	// GroupJoinEnabled means a check-in may join an existing group on a
	// court instead of claiming a new one.
	GroupJoinEnabled bool
}

// GameDuration is the average game length used for pooled wait estimates.
const GameDuration = 20 * time.Minute

var rules = map[string]Rules{
	Tennis: {
		Name:             Tennis,
		PlayersPerCourt:  4,
		CourtsPerGroup:   1,
		SessionDuration:  90 * time.Minute,
		GroupJoinEnabled: true,
	},
	Pickleball: {
		Name:            Pickleball,
		PlayersPerCourt: 4,
		CourtsPerGroup:  1,
		SessionDuration: 20 * time.Minute,
		PoolingEnabled:  true,
	},
	Basketball: {
		Name:            Basketball,
		PlayersPerCourt: 10,
		CourtsPerGroup:  1,
		SessionDuration: 60 * time.Minute,
	},
}

// RulesFor returns the rules for a sport name, case-insensitively.
func RulesFor(name string) (Rules, error) {
	r, ok := rules[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Rules{}, fmt.Errorf("unsupported sport: %q", name)
	}
	return r, nil
}

// Supported lists the sport names with configured rules.
func Supported() []string {
	return []string{Tennis, Pickleball, Basketball}
}
