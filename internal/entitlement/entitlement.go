// Package entitlement maps a caller tier to its daily message quota
// and the chat models it may use.
package entitlement

import (
	"slices"

	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/model"
)

// Tier identifiers.
const (
	TierRegular = "regular"
	TierPremium = "premium"
)

// Entitlements describes what one tier is allowed to do.
type Entitlements struct {
	MaxMessagesPerDay int
	ChatModelIDs      []string
}

// AllowsModel reports whether the tier may use the given chat model.
func (e Entitlements) AllowsModel(modelID string) bool {
	return slices.Contains(e.ChatModelIDs, modelID)
}

// Table resolves tiers to entitlements.
type Table struct {
	tiers map[string]Entitlements
}

// Defaults returns the built-in entitlement table: regular callers get
// 50 messages per day across all supported models; premium callers get
// a higher cap.
func Defaults() *Table {
	all := model.SupportedIDs()
	return &Table{tiers: map[string]Entitlements{
		TierRegular: {MaxMessagesPerDay: 50, ChatModelIDs: all},
		TierPremium: {MaxMessagesPerDay: 500, ChatModelIDs: all},
	}}
}

// FromConfig builds a table from configuration, falling back to the
// defaults for tiers the config does not mention.
func FromConfig(tiers map[string]config.Tier) *Table {
	t := Defaults()
	for name, cfg := range tiers {
		ent := Entitlements{
			MaxMessagesPerDay: cfg.MaxMessagesPerDay,
			ChatModelIDs:      cfg.ChatModels,
		}
		if len(ent.ChatModelIDs) == 0 {
			ent.ChatModelIDs = model.SupportedIDs()
		}
		t.tiers[name] = ent
	}
	return t
}

// Lookup returns the entitlements for a tier. Unknown tiers resolve to
// the regular tier so a bad token claim can never widen access.
func (t *Table) Lookup(tier string) Entitlements {
	if e, ok := t.tiers[tier]; ok {
		return e
	}
	return t.tiers[TierRegular]
}
