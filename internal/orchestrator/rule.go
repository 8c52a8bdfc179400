package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownCategory is returned for an unrecognised sweep category.
var ErrUnknownCategory = errors.New("unknown sweep category")

// Category names what a sweep removes.
type Category string

const (
	// Items removes consumables past their lifetime or on the deny list.
	Items Category = "items"
	// ItemsForce removes every unprotected consumable regardless of age.
	ItemsForce Category = "items-force"
	// Clusters removes consumables in dense groups.
	Clusters Category = "clusters"
	// Monsters removes every hostile creature.
	Monsters Category = "monsters"
)

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Items, ItemsForce, Clusters, Monsters:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Rule is a named recurring sweep. An empty Scopes list targets every scope.
type Rule struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	Scopes     []string      `json:"scopes,omitempty"`
	Categories []Category    `json:"categories"`
	Broadcast  bool          `json:"broadcast"`
}

// DefaultRule is installed when no rules are configured.
func DefaultRule() Rule {
	return Rule{
		Name:       "default",
		Interval:   600 * time.Second,
		Categories: []Category{Items},
		Broadcast:  true,
	}
}
