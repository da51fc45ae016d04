// Package boost defines the XP boosts players can buy with coins.
package boost

import (
	"fmt"
	"time"
)

// Type identifies a boost.
type Type string

const (
	XP2x1h  Type = "xp_2x_1h"
	XP2x24h Type = "xp_2x_24h"
	XP3x1h  Type = "xp_3x_1h"
)

// Config holds the configuration for a boost.
type Config struct {
	Type        Type          `json:"type"`
	Name        string        `json:"name"`
	Emoji       string        `json:"emoji"`
	Price       int64         `json:"price"`
	Duration    time.Duration `json:"duration"`
	Multiplier  int64         `json:"multiplier"`
	Description string        `json:"description"`
}

// Catalog contains all boosts for sale.
var Catalog = map[Type]Config{
	XP2x1h: {
		Type:        XP2x1h,
		Name:        "Double XP",
		Emoji:       "⚡",
		Price:       2500,
		Duration:    time.Hour,
		Multiplier:  2,
		Description: "Double XP from every roll for 1 hour",
	},
	XP2x24h: {
		Type:        XP2x24h,
		Name:        "Double XP Day",
		Emoji:       "🌞",
		Price:       25000,
		Duration:    24 * time.Hour,
		Multiplier:  2,
		Description: "Double XP from every roll for 24 hours",
	},
	XP3x1h: {
		Type:        XP3x1h,
		Name:        "Triple XP",
		Emoji:       "🔥",
		Price:       6000,
		Duration:    time.Hour,
		Multiplier:  3,
		Description: "Triple XP from every roll for 1 hour",
	},
}

// All returns every boost in display order.
func All() []Config {
	order := []Type{XP2x1h, XP3x1h, XP2x24h}
	items := make([]Config, 0, len(order))
	for _, t := range order {
		if item, ok := Catalog[t]; ok {
			items = append(items, item)
		}
	}
	return items
}

// Get returns the config for a boost type.
func Get(t Type) (Config, bool) {
	item, ok := Catalog[t]
	return item, ok
}

// Multiplier returns the XP multiplier granted by the running boosts. Boosts
// do not stack; the strongest one applies.
func Multiplier(active []Type) int64 {
	best := int64(1)
	for _, t := range active {
		if item, ok := Catalog[t]; ok && item.Multiplier > best {
			best = item.Multiplier
		}
	}
	return best
}

// FormatDuration returns a short human-readable duration.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}
